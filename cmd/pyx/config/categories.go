package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCategoryNotFound   = errors.New("category is not found")
	ErrCategoryDepth      = errors.New("category is not a subcategory of a root category")
	ErrCategoryDuplicated = errors.New("category id is duplicated")
)

// Category is a node of the two-level category taxonomy of pyx.ai.
//
// Root categories have no ParentID. Subcategories have ParentID of a root category.
type Category struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ParentID *int   `json:"parent_id"`
}

func (c Category) IsRoot() bool {
	return c.ParentID == nil
}

func (c Category) String() string {
	return fmt.Sprintf("%s (id: %d)", c.Name, c.ID)
}

// Categories is the taxonomy, a forest of depth 2.
type Categories []Category

// Find returns the category with id.
func (cs Categories) Find(id int) (Category, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Children returns categories whose parent is parentID, in the order of cs.
//
// If parentID is nil, root categories are returned.
func (cs Categories) Children(parentID *int) Categories {
	ret := Categories{}
	for _, c := range cs {
		switch {
		case parentID == nil && c.ParentID == nil:
		case parentID != nil && c.ParentID != nil && *parentID == *c.ParentID:
		default:
			continue
		}
		ret = append(ret, c)
	}
	return ret
}

// Roots returns root categories.
func (cs Categories) Roots() Categories {
	return cs.Children(nil)
}

// Resolve returns the path "{category url}/{subcategory url}" of the subcategory with id.
//
// # Errors
//
// - ErrCategoryNotFound: id or its parent is missing.
//
// - ErrCategoryDepth: id is a root, or its parent is not a root.
func (cs Categories) Resolve(id int) (string, error) {
	sub, ok := cs.Find(id)
	if !ok {
		return "", fmt.Errorf("%w: id = %d", ErrCategoryNotFound, id)
	}
	if sub.IsRoot() {
		return "", fmt.Errorf("%w: %s is a root category", ErrCategoryDepth, sub)
	}
	root, ok := cs.Find(*sub.ParentID)
	if !ok {
		return "", fmt.Errorf(
			"%w: parent of %s (id = %d)", ErrCategoryNotFound, sub, *sub.ParentID,
		)
	}
	if !root.IsRoot() {
		return "", fmt.Errorf("%w: parent of %s is %s", ErrCategoryDepth, sub, root)
	}
	return strings.Trim(root.URL, "/") + "/" + strings.Trim(sub.URL, "/"), nil
}

// Verify checks ids are unique and every category is a root or a child of a root.
func (cs Categories) Verify() error {
	seen := map[int]struct{}{}
	for _, c := range cs {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("%w: %d", ErrCategoryDuplicated, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	for _, c := range cs {
		if c.IsRoot() {
			continue
		}
		if _, err := cs.Resolve(c.ID); err != nil {
			return err
		}
	}
	return nil
}
