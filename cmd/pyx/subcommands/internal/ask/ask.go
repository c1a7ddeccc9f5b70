// Package ask has questions shared by `pyx create` and `pyx attach`.
package ask

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/boilerplate"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/wizard"
)

var (
	ErrNoCategories = fmt.Errorf(
		"%w: categories are unknown. Please check your connection to pyx.ai and try again",
		perrors.ErrConfiguration,
	)
	ErrInvalidCategory  = fmt.Errorf("%w: invalid category", perrors.ErrConfiguration)
	ErrInvalidFramework = fmt.Errorf("%w: invalid framework", perrors.ErrConfiguration)
)

func categoryChoices(cats config.Categories) []wizard.Choice {
	choices := make([]wizard.Choice, 0, len(cats))
	for _, c := range cats {
		choices = append(choices, wizard.Choice{Value: strconv.Itoa(c.ID), Label: c.Name})
	}
	return choices
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: not an id: %s", ErrInvalidCategory, s)
	}
	return id, nil
}

// Subcategory asks a category and then a subcategory of that.
//
// Non-empty category or subcategory (ids) are used instead of asking.
// When only subcategory is given, its parent is the category.
func Subcategory(p *wizard.Prompter, cats config.Categories, category string, subcategory string) (config.Category, error) {
	roots := cats.Roots()
	if len(roots) == 0 {
		return config.Category{}, ErrNoCategories
	}

	var root config.Category
	switch {
	case category != "":
		id, err := parseID(category)
		if err != nil {
			return config.Category{}, err
		}
		c, ok := cats.Find(id)
		if !ok || !c.IsRoot() {
			return config.Category{}, fmt.Errorf("%w: %d is not a category", ErrInvalidCategory, id)
		}
		root = c
	case subcategory != "":
		id, err := parseID(subcategory)
		if err != nil {
			return config.Category{}, err
		}
		c, ok := cats.Find(id)
		if !ok || c.IsRoot() {
			return config.Category{}, fmt.Errorf("%w: %d is not a subcategory", ErrInvalidCategory, id)
		}
		if root, ok = cats.Find(*c.ParentID); !ok {
			return config.Category{}, fmt.Errorf("%w: parent of %d is unknown", ErrInvalidCategory, id)
		}
	default:
		ans, err := p.Select("What is the category of your project?", categoryChoices(roots))
		if err != nil {
			return config.Category{}, err
		}
		id, err := parseID(ans.Value)
		if err != nil {
			return config.Category{}, err
		}
		root, _ = cats.Find(id)
	}

	children := cats.Children(&root.ID)
	if subcategory != "" {
		id, err := parseID(subcategory)
		if err != nil {
			return config.Category{}, err
		}
		for _, c := range children {
			if c.ID == id {
				return c, nil
			}
		}
		return config.Category{}, fmt.Errorf(
			"%w: %d is not a subcategory of %s", ErrInvalidCategory, id, root,
		)
	}
	if len(children) == 0 {
		return config.Category{}, fmt.Errorf("%w: %s has no subcategories", ErrInvalidCategory, root)
	}

	ans, err := p.Select("What is the subcategory of your project?", categoryChoices(children))
	if err != nil {
		return config.Category{}, err
	}
	id, err := parseID(ans.Value)
	if err != nil {
		return config.Category{}, err
	}
	sub, _ := cats.Find(id)
	return sub, nil
}

// Framework asks a framework from frameworks. Non-empty framework is used instead of asking.
func Framework(p *wizard.Prompter, frameworks []string, framework string) (string, error) {
	if len(frameworks) == 0 {
		return "", fmt.Errorf("%w: no frameworks in config", ErrInvalidFramework)
	}
	if framework != "" {
		if !slices.Contains(frameworks, framework) {
			return "", fmt.Errorf("%w: %s (one of %v)", ErrInvalidFramework, framework, frameworks)
		}
		return framework, nil
	}

	choices := make([]wizard.Choice, 0, len(frameworks))
	for _, f := range frameworks {
		choices = append(choices, wizard.Choice{Value: f, Label: f})
	}
	ans, err := p.Select("Prepare boilerplate for specific framework", choices)
	if err != nil {
		return "", err
	}
	return ans.Value, nil
}

// AddFramework places the boilerplate of the framework for the subcategory into dest.
//
// Problems on boilerplates are reported to w, and not returned as error.
func AddFramework(
	w io.Writer,
	prov *boilerplate.Provisioner,
	cats config.Categories,
	subcategory int,
	framework string,
	dest string,
) error {
	fmt.Fprintln(w, "Adding framework ...")
	entrypoint, err := prov.ProvisionCategory(cats, subcategory, framework, dest)
	switch {
	case err == nil:
		fmt.Fprintf(w, "%s is placed.\n", entrypoint)
		return nil
	case errors.Is(err, boilerplate.ErrEntryPointExists):
		fmt.Fprintf(w, "Destination %s already exists.\n", entrypoint)
		return nil
	case errors.Is(err, perrors.ErrBoilerplate):
		fmt.Fprintf(w, "Template is not found: %s\n", err)
		return nil
	default:
		return err
	}
}
