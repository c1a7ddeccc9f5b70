package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
)

// FileName is the name of project descriptor, placed at the project root.
const FileName = "pyx.json"

// Directories in a project which are not a part of the model.
const (
	WebDir         = "pyx-web"
	TestingDataDir = "pyx-testing-data"
)

// DescriptionFile is the markdown published as description_full, relative to the project root.
var DescriptionFile = filepath.Join(WebDir, "description.md")

var (
	ErrProjectNotFound   = fmt.Errorf("%w: %s is not found. Are you in a pyx project directory?", perrors.ErrConfiguration, FileName)
	ErrProjectExists     = fmt.Errorf("%w: project already exists", perrors.ErrConfiguration)
	ErrDescriptorInvalid = fmt.Errorf("%w: %s is invalid", perrors.ErrConfiguration, FileName)
	ErrMissingFields     = fmt.Errorf("%w: required fields are missing", perrors.ErrConfiguration)
	ErrNotPublished      = fmt.Errorf("%w: the project has no model id. Run `pyx publish` first", perrors.ErrPermission)
)

// Meta is the result of the last passing local test.
type Meta struct {
	WeightPaths       map[string]string `json:"weight_paths"`
	MeanInferenceTime float64           `json:"mean_inference_time"`
}

// Descriptor is the content of pyx.json.
type Descriptor struct {
	// subcategory which the model belongs to.
	CategoryID Scalar

	// framework of the boilerplate.
	Framework string

	// model id, given by pyx.ai on first publish. Empty if not published yet.
	ID Scalar

	Name             string
	PaperURL         string
	Dataset          string
	License          string
	Price            Scalar
	DescriptionShort string
	DescriptionFull  string

	Meta *Meta

	// keys not listed above. They are written back as they are.
	extras map[string]json.RawMessage
}

// slots maps known JSON keys to the fields holding them.
func (d *Descriptor) slots() map[string]any {
	return map[string]any{
		"category_id":       &d.CategoryID,
		"framework":         &d.Framework,
		"id":                &d.ID,
		"name":              &d.Name,
		"paper_url":         &d.PaperURL,
		"dataset":           &d.Dataset,
		"license":           &d.License,
		"price":             &d.Price,
		"description_short": &d.DescriptionShort,
		"description_full":  &d.DescriptionFull,
		"meta":              &d.Meta,
	}
}

// MetadataFields are fields asked by `pyx configure`, in the order of prompts.
var MetadataFields = []string{
	"name", "paper_url", "dataset", "license", "price", "description_short",
}

// UnmarshalJSON reads a JSON object.
//
// A known key with an unexpected shape (say, license as an object) is kept as
// it is, and the field stays empty. Only "id" must be a scalar.
func (d *Descriptor) UnmarshalJSON(b []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	next := Descriptor{}
	for key, slot := range next.slots() {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, slot); err != nil {
			if key == "id" {
				return err
			}
			reflect.ValueOf(slot).Elem().SetZero()
			continue
		}
		delete(raw, key)
	}
	next.extras = raw
	*d = next
	return nil
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.fields())
}

// fields returns the descriptor as a map from JSON key to value.
//
// Keys not set are omitted, except for metadata fields.
func (d Descriptor) fields() map[string]any {
	out := map[string]any{}
	if !d.CategoryID.IsZero() {
		out["category_id"] = d.CategoryID
	}
	if d.Framework != "" {
		out["framework"] = d.Framework
	}
	if !d.ID.IsZero() {
		out["id"] = d.ID
	}
	out["name"] = d.Name
	out["paper_url"] = d.PaperURL
	out["dataset"] = d.Dataset
	out["license"] = d.License
	out["price"] = d.Price
	out["description_short"] = d.DescriptionShort
	out["description_full"] = d.DescriptionFull
	if d.Meta != nil {
		out["meta"] = d.Meta
	}
	for k, v := range d.extras {
		if _, ok := out[k]; ok && d.Get(k) != "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Published tells the project has a model id.
func (d *Descriptor) Published() bool {
	return !d.ID.IsZero()
}

// Get returns the value of field (JSON key) as text.
//
// Missing field, null and structured values other than string are "".
func (d *Descriptor) Get(field string) string {
	switch field {
	case "category_id":
		return d.CategoryID.String()
	case "framework":
		return d.Framework
	case "id":
		return d.ID.String()
	case "name":
		return d.Name
	case "paper_url":
		return d.PaperURL
	case "dataset":
		return d.Dataset
	case "license":
		return d.License
	case "price":
		return d.Price.String()
	case "description_short":
		return d.DescriptionShort
	case "description_full":
		return d.DescriptionFull
	}

	raw, ok := d.extras[field]
	if !ok {
		return ""
	}
	var s Scalar
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s.String()
}

// Set updates field (JSON key) with value.
func (d *Descriptor) Set(field string, value string) {
	delete(d.extras, field)
	switch field {
	case "category_id":
		d.CategoryID = Scalar(value)
	case "framework":
		d.Framework = value
	case "id":
		d.ID = Scalar(value)
	case "name":
		d.Name = value
	case "paper_url":
		d.PaperURL = value
	case "dataset":
		d.Dataset = value
	case "license":
		d.License = value
	case "price":
		d.Price = Scalar(value)
	case "description_short":
		d.DescriptionShort = value
	case "description_full":
		d.DescriptionFull = value
	default:
		if d.extras == nil {
			d.extras = map[string]json.RawMessage{}
		}
		b, _ := json.Marshal(value)
		d.extras[field] = b
	}
}

// Merge overwrites the descriptor with keys in a JSON object.
//
// Keys in b but not in the descriptor are added.
// Known keys with unexpected shapes (say, license as an object) are not applied
// and returned as ignored. An invalid "id" is an error.
func (d *Descriptor) Merge(b []byte) (ignored []string, err error) {
	incoming := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &incoming); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}

	probe := Descriptor{}
	for key, slot := range probe.slots() {
		v, ok := incoming[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, slot); err != nil {
			if key == "id" {
				return nil, fmt.Errorf("%w: id: %w", ErrDescriptorInvalid, err)
			}
			ignored = append(ignored, key)
			delete(incoming, key)
		}
	}
	slices.Sort(ignored)

	current, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &merged); err != nil {
		return nil, err
	}
	for k, v := range incoming {
		merged[k] = v
	}

	buf, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	next := Descriptor{}
	if err := json.Unmarshal(buf, &next); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptorInvalid, err)
	}
	*d = next
	return ignored, nil
}

// MissingFields returns fields in required which are empty (after trimming spaces).
func (d *Descriptor) MissingFields(required []string) []string {
	missing := []string{}
	for _, f := range required {
		if strings.TrimSpace(d.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// CheckPublishable returns ErrMissingFields when any of required are empty.
func (d *Descriptor) CheckPublishable(required []string) error {
	if missing := d.MissingFields(required); len(missing) != 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	return nil
}

// CheckUploadable returns ErrNotPublished when the project has no model id.
func (d *Descriptor) CheckUploadable() error {
	if !d.Published() {
		return ErrNotPublished
	}
	return nil
}

// Find looks for pyx.json from the directory and its parents, and returns its path.
func Find(from string) (string, error) {
	p, err := kpath.SearchUpward(from, FileName)
	if errors.Is(err, kpath.ErrNotFound) {
		return "", fmt.Errorf("%w (searched from %s)", ErrProjectNotFound, from)
	}
	return p, err
}

// Load reads project descriptor from file.
func Load(path string) (*Descriptor, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, path)
		}
		return nil, err
	}
	d := &Descriptor{}
	if err := json.Unmarshal(buf, d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptorInvalid, path, err)
	}
	return d, nil
}

func marshal(d *Descriptor) ([]byte, error) {
	buf, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(buf, '\n'), nil
}

// Save writes the descriptor to file as pretty-printed JSON.
func (d *Descriptor) Save(path string) error {
	buf, err := marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, os.FileMode(0644))
}

// Create writes the descriptor to a new file.
//
// If the file exists, ErrProjectExists is returned and the file is left as it is.
func (d *Descriptor) Create(path string) error {
	buf, err := marshal(d)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, os.FileMode(0644))
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrProjectExists, path)
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(buf)
	return err
}

// String is pretty-printed JSON of the descriptor.
func (d *Descriptor) String() string {
	buf, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Sprintf("(broken descriptor: %s)", err)
	}
	return string(buf)
}
