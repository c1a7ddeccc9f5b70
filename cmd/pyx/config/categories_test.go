package config_test

import (
	"errors"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/config/testutils"
)

func TestCategories_Resolve(t *testing.T) {
	type when struct {
		categories config.Categories
		id         int
	}
	type then struct {
		path string
		err  error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			got, err := when.categories.Resolve(when.id)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("unexpected error: got %v, want %v", err, then.err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != then.path {
				t.Errorf("path: got %s, want %s", got, then.path)
			}
		}
	}

	t.Run("subcategory is resolved with its root", theory(
		when{categories: testutils.SampleCategories(), id: 42},
		then{path: "computer-vision/image-classification"},
	))

	t.Run("another root", theory(
		when{categories: testutils.SampleCategories(), id: 81},
		then{path: "audio/speech-recognition"},
	))

	t.Run("slashes around url are trimmed", theory(
		when{
			categories: config.Categories{
				{ID: 1, URL: "/cv/"},
				{ID: 2, URL: "/cls/", ParentID: testutils.ChildOf(1)},
			},
			id: 2,
		},
		then{path: "cv/cls"},
	))

	t.Run("root category cannot be resolved", theory(
		when{categories: testutils.SampleCategories(), id: 7},
		then{err: config.ErrCategoryDepth},
	))

	t.Run("unknown id cannot be resolved", theory(
		when{categories: testutils.SampleCategories(), id: 999},
		then{err: config.ErrCategoryNotFound},
	))

	t.Run("missing parent cannot be resolved", theory(
		when{
			categories: config.Categories{{ID: 2, URL: "orphan", ParentID: testutils.ChildOf(1)}},
			id:         2,
		},
		then{err: config.ErrCategoryNotFound},
	))

	t.Run("subcategory of subcategory cannot be resolved", theory(
		when{
			categories: append(
				testutils.SampleCategories(),
				config.Category{ID: 420, URL: "too-deep", ParentID: testutils.ChildOf(42)},
			),
			id: 420,
		},
		then{err: config.ErrCategoryDepth},
	))
}

func TestCategories_Children(t *testing.T) {
	cats := testutils.SampleCategories()

	roots := cats.Roots()
	if len(roots) != 2 || roots[0].ID != 7 || roots[1].ID != 8 {
		t.Errorf("roots: %+v", roots)
	}

	children := cats.Children(testutils.ChildOf(7))
	if len(children) != 2 || children[0].ID != 42 || children[1].ID != 43 {
		t.Errorf("children of 7: %+v", children)
	}

	if got := cats.Children(testutils.ChildOf(42)); len(got) != 0 {
		t.Errorf("children of 42: %+v", got)
	}
}

func TestCategories_Verify(t *testing.T) {
	if err := testutils.SampleCategories().Verify(); err != nil {
		t.Errorf("sample should be valid: %v", err)
	}

	dup := append(testutils.SampleCategories(), config.Category{ID: 43, Name: "dup", ParentID: testutils.ChildOf(8)})
	if err := dup.Verify(); !errors.Is(err, config.ErrCategoryDuplicated) {
		t.Errorf("unexpected error: %v", err)
	}

	deep := append(
		testutils.SampleCategories(),
		config.Category{ID: 430, Name: "deep", ParentID: testutils.ChildOf(43)},
	)
	if err := deep.Verify(); !errors.Is(err, config.ErrCategoryDepth) {
		t.Errorf("unexpected error: %v", err)
	}
}
