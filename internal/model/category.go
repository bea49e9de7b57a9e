package model

import "fmt"

// CategoryKind is how evidence of a category is grouped.
type CategoryKind int

const (
	// CategorySessionScoped merges all confirmed webcam events of one user and day
	// into a single record.
	CategorySessionScoped CategoryKind = iota + 1
	// CategorySingleShot creates one record per uploaded video.
	CategorySingleShot
)

func (k CategoryKind) String() string {
	switch k {
	case CategorySessionScoped:
		return "session-scoped"
	case CategorySingleShot:
		return "single-shot"
	default:
		return fmt.Sprintf("CategoryKind(%d)", int(k))
	}
}

// MergesDaily reports whether same-day records of this kind are merged.
func (k CategoryKind) MergesDaily() bool {
	return k == CategorySessionScoped
}

// Category represents a row of the category table.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Categories maps each kind to the category row it was resolved to at startup.
type Categories struct {
	byKind map[CategoryKind]Category
}

// NewCategories builds the resolved mapping.
func NewCategories(sessionScoped, singleShot Category) Categories {
	return Categories{byKind: map[CategoryKind]Category{
		CategorySessionScoped: sessionScoped,
		CategorySingleShot:    singleShot,
	}}
}

// Get returns the category for kind.
func (c Categories) Get(kind CategoryKind) (Category, bool) {
	cat, ok := c.byKind[kind]
	return cat, ok
}

// ID returns the category id for kind, or 0 when unresolved.
func (c Categories) ID(kind CategoryKind) int64 {
	return c.byKind[kind].ID
}

// KindOf returns the kind a category id was resolved to.
func (c Categories) KindOf(categoryID int64) (CategoryKind, bool) {
	for kind, cat := range c.byKind {
		if cat.ID == categoryID {
			return kind, true
		}
	}
	return 0, false
}
