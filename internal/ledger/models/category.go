package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	id "skillproof/pkg/domain"
	dErrors "skillproof/pkg/domain-errors"
)

// DefaultCategoryTable is the category table used when none is configured.
// Blockchain is id 1 so existing validator expertise lists keep their meaning.
const DefaultCategoryTable = "1:blockchain,2:web-development,3:data-science,4:design,5:devops,6:security,7:mobile,8:machine-learning"

// Category is one entry of the closed skill category table.
type Category struct {
	ID   id.CategoryID `json:"id"`
	Name string        `json:"name"`
}

// CategoryTable maps category names to ids. Names are matched
// case-insensitively; the table is immutable after construction.
type CategoryTable struct {
	byID   map[id.CategoryID]Category
	byName map[string]Category
}

func NewCategoryTable(categories ...Category) (*CategoryTable, error) {
	t := &CategoryTable{
		byID:   make(map[id.CategoryID]Category, len(categories)),
		byName: make(map[string]Category, len(categories)),
	}
	for _, c := range categories {
		key := normalizeCategory(c.Name)
		switch {
		case c.ID == 0:
			return nil, fmt.Errorf("category %q: id must be positive", c.Name)
		case key == "":
			return nil, fmt.Errorf("category %d: name is required", c.ID)
		case len(key) > MaxCategoryLength:
			return nil, fmt.Errorf("category %d: name is too long", c.ID)
		}
		if _, dup := t.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %d", c.ID)
		}
		if _, dup := t.byName[key]; dup {
			return nil, fmt.Errorf("duplicate category name %q", key)
		}
		c.Name = key
		t.byID[c.ID] = c
		t.byName[key] = c
	}
	return t, nil
}

// ParseCategoryTable parses "id:name" pairs separated by commas,
// e.g. "1:blockchain,2:design".
func ParseCategoryTable(table string) (*CategoryTable, error) {
	var categories []Category
	for _, part := range strings.Split(table, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rawID, name, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("category %q: expected id:name", part)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("category %q: invalid id: %w", part, err)
		}
		categories = append(categories, Category{ID: id.CategoryID(n), Name: name})
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("category table is empty")
	}
	return NewCategoryTable(categories...)
}

// DefaultCategories returns the built-in table.
func DefaultCategories() *CategoryTable {
	t, err := ParseCategoryTable(DefaultCategoryTable)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *CategoryTable) ByName(name string) (Category, bool) {
	c, ok := t.byName[normalizeCategory(name)]
	return c, ok
}

func (t *CategoryTable) ByID(categoryID id.CategoryID) (Category, bool) {
	c, ok := t.byID[categoryID]
	return c, ok
}

// Resolve looks up a skill's category by name, failing invalid_parameter
// for names that are too long or not in the table.
func (t *CategoryTable) Resolve(name string) (Category, error) {
	if err := checkLength("category", name, MaxCategoryLength); err != nil {
		return Category{}, err
	}
	c, ok := t.ByName(name)
	if !ok {
		return Category{}, dErrors.New(dErrors.CodeInvalidParameter, "unknown category: "+name)
	}
	return c, nil
}

// RequireKnown fails invalid_parameter if any id is missing from the table.
func (t *CategoryTable) RequireKnown(ids []id.CategoryID) error {
	for _, categoryID := range ids {
		if _, ok := t.byID[categoryID]; !ok {
			return dErrors.New(dErrors.CodeInvalidParameter, "unknown category id: "+categoryID.String())
		}
	}
	return nil
}

// All returns the categories ordered by id.
func (t *CategoryTable) All() []Category {
	out := make([]Category, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Category) int { return int(a.ID) - int(b.ID) })
	return out
}

func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
