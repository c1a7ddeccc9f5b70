// Package boilerplate places the entry point of pyx model (pyx_endpoints.py)
// into projects, from templates embedded in the pyx binary.
package boilerplate

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"gopkg.in/yaml.v3"
)

//go:embed templates
var templates embed.FS

// CatalogFile is the name of catalog in the root of boilerplate tree.
const CatalogFile = "catalog.yaml"

var (
	ErrBoilerplateNotFound = fmt.Errorf("%w: boilerplate is not found", perrors.ErrBoilerplate)
	ErrEntryPointExists    = fmt.Errorf("%w: entry point already exists", perrors.ErrBoilerplate)

	// ErrUnknownFramework is ErrBoilerplateNotFound for frameworks out of the catalog.
	ErrUnknownFramework = fmt.Errorf("%w: framework is not supported", ErrBoilerplateNotFound)
)

type Framework struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
}

// Catalog describes a boilerplate tree.
type Catalog struct {
	// file name of templates in the tree.
	Template string `yaml:"template"`

	// file name of entry point in projects.
	EntryPoint string `yaml:"entrypoint"`

	// directory for categories without their own boilerplates.
	Fallback string `yaml:"fallback"`

	Frameworks []Framework `yaml:"frameworks"`
}

type Provisioner struct {
	fsys    fs.FS
	catalog Catalog
}

// Default returns Provisioner of boilerplates bundled with pyx.
func Default() (*Provisioner, error) {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		return nil, err
	}
	return New(sub)
}

// New returns Provisioner of the boilerplate tree fsys.
//
// fsys should have catalog.yaml at its root.
func New(fsys fs.FS) (*Provisioner, error) {
	buf, err := fs.ReadFile(fsys, CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %w", perrors.ErrBoilerplate, CatalogFile, err)
	}
	cat := Catalog{}
	if err := yaml.Unmarshal(buf, &cat); err != nil {
		return nil, fmt.Errorf("%w: broken %s: %w", perrors.ErrBoilerplate, CatalogFile, err)
	}
	if cat.Template == "" || cat.EntryPoint == "" {
		return nil, fmt.Errorf("%w: %s lacks template or entrypoint", perrors.ErrBoilerplate, CatalogFile)
	}
	return &Provisioner{fsys: fsys, catalog: cat}, nil
}

func (p *Provisioner) Catalog() Catalog {
	return p.catalog
}

// EntryPoint is the file name of the entry point placed into projects.
func (p *Provisioner) EntryPoint() string {
	return p.catalog.EntryPoint
}

// Frameworks returns names of supported frameworks.
func (p *Provisioner) Frameworks() []string {
	names := make([]string, 0, len(p.catalog.Frameworks))
	for _, f := range p.catalog.Frameworks {
		names = append(names, f.Name)
	}
	return names
}

// Locate returns the path (in the boilerplate tree) of the template for
// the category path ("{category}/{subcategory}") and the framework.
//
// The template specific to the category is preferred, and the fallback one is used if missing.
func (p *Provisioner) Locate(categoryPath string, framework string) (string, error) {
	if !slices.Contains(p.Frameworks(), framework) {
		return "", fmt.Errorf("%w: %s", ErrUnknownFramework, framework)
	}

	candidates := []string{}
	if categoryPath != "" {
		candidates = append(candidates, path.Join(categoryPath, framework, p.catalog.Template))
	}
	if p.catalog.Fallback != "" {
		candidates = append(candidates, path.Join(p.catalog.Fallback, framework, p.catalog.Template))
	}

	for _, c := range candidates {
		stat, err := fs.Stat(p.fsys, c)
		if err == nil && stat.Mode().IsRegular() {
			return c, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", perrors.ErrBoilerplate, err)
		}
	}
	return "", fmt.Errorf("%w: for %s/%s", ErrBoilerplateNotFound, categoryPath, framework)
}

// Provision copies the template for the category path and the framework
// into dest directory as the entry point, and returns the path of the entry point.
//
// If the entry point exists already, it does nothing and returns ErrEntryPointExists.
func (p *Provisioner) Provision(categoryPath string, framework string, dest string) (string, error) {
	entrypoint := filepath.Join(dest, p.catalog.EntryPoint)
	if _, err := os.Lstat(entrypoint); err == nil {
		return entrypoint, fmt.Errorf("%w: %s", ErrEntryPointExists, entrypoint)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	tpl, err := p.Locate(categoryPath, framework)
	if err != nil {
		return "", err
	}

	src, err := p.fsys.Open(tpl)
	if err != nil {
		return "", fmt.Errorf("%w: %w", perrors.ErrBoilerplate, err)
	}
	defer src.Close()

	if err := os.MkdirAll(dest, os.FileMode(0755)); err != nil {
		return "", err
	}
	f, err := os.OpenFile(entrypoint, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(0644))
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return entrypoint, fmt.Errorf("%w: %s", ErrEntryPointExists, entrypoint)
		}
		return "", err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(entrypoint)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(entrypoint)
		return "", err
	}
	return entrypoint, nil
}

// ProvisionCategory is Provision for the subcategory with id in the taxonomy.
func (p *Provisioner) ProvisionCategory(cats config.Categories, categoryID int, framework string, dest string) (string, error) {
	categoryPath, err := cats.Resolve(categoryID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBoilerplateNotFound, err)
	}
	return p.Provision(categoryPath, framework, dest)
}
