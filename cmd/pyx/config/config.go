package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hectane/go-acl"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/config/open"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
)

const (
	DefaultAPIURL = "https://beta.pyx.ai/api/"

	// categories cached in config are refreshed after this interval.
	CacheInterval = time.Hour
)

var (
	ErrConfigInvalid      = fmt.Errorf("%w: pyx config is invalid", perrors.ErrConfiguration)
	ErrCannotCreateConfig = fmt.Errorf("%w: cannot create config file", perrors.ErrConfiguration)
	ErrCannotUpdateConfig = fmt.Errorf("%w: cannot update config file", perrors.ErrConfiguration)
)

func DefaultFrameworks() []string {
	return []string{"pytorch", "onnx", "tensorflow", "gluon"}
}

func DefaultRequiredFields() []string {
	return []string{
		"name", "paper_url", "dataset", "license",
		"description_short", "description_full", "price",
	}
}

// DefaultPath is ~/.pyx/pyx.json
func DefaultPath() (string, error) {
	return kpath.Resolve(filepath.Join("~", ".pyx", "pyx.json"))
}

// Config is user-wide settings and caches of pyx.
type Config struct {
	// base URL of pyx.ai API. It should end with "/".
	APIURL string

	// token issued by pyx.ai. Empty until `pyx auth`.
	UserToken string

	// cached category taxonomy.
	Categories Categories

	// unix time (in seconds) when Categories has been updated.
	LastMetaUpdate float64

	// frameworks which boilerplates are provided for.
	Frameworks []string

	// fields of project descriptor required to publish.
	RequiredFields []string

	// keys not listed above. They are written back as they are.
	extras map[string]json.RawMessage
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		Frameworks:     DefaultFrameworks(),
		RequiredFields: DefaultRequiredFields(),
		extras:         map[string]json.RawMessage{},
	}
}

type configKeys struct {
	APIURL         *string    `json:"api_url,omitempty"`
	APIBaseURL     *string    `json:"api_base_url,omitempty"`
	UserToken      *string    `json:"user_token,omitempty"`
	Categories     Categories `json:"categories,omitempty"`
	LastMetaUpdate *float64   `json:"last_meta_update,omitempty"`
	Frameworks     []string   `json:"frameworks,omitempty"`
	RequiredFields []string   `json:"required_fields,omitempty"`
}

var knownKeys = []string{
	"api_url", "api_base_url", "user_token", "categories",
	"last_meta_update", "frameworks", "required_fields",
}

func (c *Config) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	known := configKeys{}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}

	d := Default()
	switch {
	case known.APIURL != nil && *known.APIURL != "":
		d.APIURL = *known.APIURL
	case known.APIBaseURL != nil && *known.APIBaseURL != "":
		d.APIURL = *known.APIBaseURL
	}
	if known.UserToken != nil {
		d.UserToken = *known.UserToken
	}
	d.Categories = known.Categories
	if known.LastMetaUpdate != nil {
		d.LastMetaUpdate = *known.LastMetaUpdate
	}
	if len(known.Frameworks) != 0 {
		d.Frameworks = known.Frameworks
	}
	if len(known.RequiredFields) != 0 {
		d.RequiredFields = known.RequiredFields
	}

	for _, k := range knownKeys {
		delete(raw, k)
	}
	d.extras = raw

	*c = *d
	return nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range c.extras {
		out[k] = v
	}
	out["api_url"] = c.APIURL
	out["user_token"] = c.UserToken
	out["last_meta_update"] = c.LastMetaUpdate
	out["frameworks"] = c.Frameworks
	out["required_fields"] = c.RequiredFields
	if c.Categories != nil {
		out["categories"] = c.Categories
	}
	return json.Marshal(out)
}

// Verify Config
//
// # Return
//
// nil if it is valid. Otherwise, ErrConfigInvalid error.
func (c *Config) Verify() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("%w: api_url is not URL: %s", ErrConfigInvalid, c.APIURL)
	}
	if err := c.Categories.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return nil
}

// MetaUpdatedAt returns when Categories has been updated.
func (c *Config) MetaUpdatedAt() time.Time {
	sec, frac := math.Modf(c.LastMetaUpdate)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// CategoriesStale tells whether the cached categories should be refreshed at now.
func (c *Config) CategoriesStale(now time.Time) bool {
	if len(c.Categories) == 0 {
		return true
	}
	return CacheInterval <= now.Sub(c.MetaUpdatedAt())
}

// SetCategories replaces cached categories, and records now as the time of update.
//
// Categories violating the taxonomy are rejected and the cache is left unchanged.
func (c *Config) SetCategories(cats Categories, now time.Time) error {
	if err := cats.Verify(); err != nil {
		return err
	}
	c.Categories = cats
	c.LastMetaUpdate = float64(now.UnixNano()) / float64(time.Second)
	return nil
}

// Load config from file.
//
// If the file does not exist, the default config is returned.
func Load(filepath string) (*Config, error) {
	buf, err := os.ReadFile(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return Unmarshal(buf)
}

// Unmarshal config from JSON in byte array.
func Unmarshal(buf []byte) (*Config, error) {
	c := &Config{}
	if err := json.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	return c, nil
}

// Save config to file, as pretty-printed JSON readable only by the current user.
//
// Previous content is kept in "{path}.backup" while writing, and
// restored when writing fails.
func (c *Config) Save(path string) error {
	saving := false

	if err := open.PrivateDir(filepath.Dir(path)); err != nil {
		return err
	}

	bkpath := path + ".backup"
	bk, err := open.NewSafeFile(bkpath)
	if err != nil {
		return err
	}
	defer func() {
		if !saving {
			os.Remove(bkpath)
		}
	}()
	defer bk.Close()

	f, err := os.OpenFile(path, os.O_RDWR, os.FileMode(0600))
	if err == nil {
		// In case of the existing file with loose permissions,
		// enforce permission to 0600.
		if err := acl.Chmod(path, os.FileMode(0600)); err != nil {
			f.Close()
			return err
		}
	} else {
		if os.IsPermission(err) {
			return fmt.Errorf(
				"%w, because no permission to write file at %s",
				ErrCannotUpdateConfig, path,
			)
		} else if os.IsNotExist(err) {
			f_, err_ := open.NewSafeFile(path)
			if err_ != nil {
				return fmt.Errorf(
					"%w: cannot create a file at %s: %w",
					ErrCannotCreateConfig, path, err_,
				)
			}
			f = f_
		} else {
			return err
		}
	}
	defer f.Close()

	buf, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}

	if _, err := io.Copy(bk, f); err != nil {
		return err
	}

	saving = true
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Write(append(buf, '\n')); err != nil {
		if _, serr := bk.Seek(0, 0); serr == nil {
			f.Seek(0, 0)
			f.Truncate(0)
			io.Copy(f, bk)
		}
		return err
	}

	saving = false
	return nil
}
