package health

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the food-guide traffic light. The stored codes are the ones
// shown in the app (VERT, JAUNE, ROUGE).
type Category string

const (
	CategoryFree     Category = "VERT"  // eat freely
	CategoryModerate Category = "JAUNE" // moderate portions
	CategoryAvoid    Category = "ROUGE" // avoid
)

var ErrUnknownCategory = errors.New("health: unknown food category")

// Categories lists the categories in display order.
var Categories = []Category{CategoryFree, CategoryModerate, CategoryAvoid}

var categoryAliases = map[string]Category{
	"VERT":     CategoryFree,
	"FREE":     CategoryFree,
	"JAUNE":    CategoryModerate,
	"MODERATE": CategoryModerate,
	"ROUGE":    CategoryAvoid,
	"AVOID":    CategoryAvoid,
}

// ParseCategory accepts a stored code or its English alias, case-insensitively.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Valid reports whether c is a stored category code.
func (c Category) Valid() bool {
	return c == CategoryFree || c == CategoryModerate || c == CategoryAvoid
}

// Rank orders categories VERT < JAUNE < ROUGE.
func (c Category) Rank() int {
	for i, k := range Categories {
		if k == c {
			return i
		}
	}
	return len(Categories)
}

// FoodReference is one entry of the food guide.
type FoodReference struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	ImageRef string   `json:"image_url"`
	Tip      string   `json:"tip"`
}

// Validate checks the food-guide invariants.
func (f FoodReference) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return errors.New("health: food reference without id")
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, f.Category)
	}
	return nil
}
