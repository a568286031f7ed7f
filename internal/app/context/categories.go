package context

import (
	"slices"
	"strings"

	"github.com/jsamuelsen/managed-concurrency/internal/domain"
)

// Category is a kind of ambient context the provider manages.
type Category string

const (
	CategoryClassLoading Category = "classloading"
	CategorySecurity     Category = "security"
	CategoryNaming       Category = "naming"

	// CategoryWorkArea is accepted for configuration compatibility. Work-area
	// propagation is not implemented; enabling it has no effect beyond a log
	// line at construction.
	CategoryWorkArea Category = "workarea"
)

// AllCategories lists every known category in canonical order.
var AllCategories = []Category{CategoryClassLoading, CategorySecurity, CategoryNaming, CategoryWorkArea}

// ParseCategories converts configured names to categories. Names are
// case-insensitive and duplicates collapse.
func ParseCategories(names []string) ([]Category, error) {
	out := make([]Category, 0, len(names))

	for _, name := range names {
		c := Category(strings.ToLower(strings.TrimSpace(name)))
		if !slices.Contains(AllCategories, c) {
			return nil, domain.NewValidationErrorWithValue("contexts", "unknown context category", name)
		}

		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}

	return out, nil
}

type categorySet struct {
	classLoading bool
	security     bool
	naming       bool
	workArea     bool
}

func newCategorySet(categories []Category) categorySet {
	var s categorySet

	for _, c := range categories {
		switch c {
		case CategoryClassLoading:
			s.classLoading = true
		case CategorySecurity:
			s.security = true
		case CategoryNaming:
			s.naming = true
		case CategoryWorkArea:
			s.workArea = true
		}
	}

	return s
}

func (s categorySet) list() []Category {
	out := make([]Category, 0, len(AllCategories))

	for _, c := range AllCategories {
		if s.has(c) {
			out = append(out, c)
		}
	}

	return out
}

func (s categorySet) has(c Category) bool {
	switch c {
	case CategoryClassLoading:
		return s.classLoading
	case CategorySecurity:
		return s.security
	case CategoryNaming:
		return s.naming
	case CategoryWorkArea:
		return s.workArea
	default:
		return false
	}
}
