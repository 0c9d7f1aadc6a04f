package catalog

import (
	"fmt"

	"github.com/polisai/shelf/pkg/domain"
)

// DefaultBadge is used for categories without a dedicated badge.
const DefaultBadge = "bg-secondary"

var categoryBadges = map[string]string{
	domain.CategoryCoffee:   "bg-warning",
	domain.CategoryTea:      "bg-success",
	domain.CategoryPastry:   "bg-info",
	domain.CategorySandwich: "bg-danger",
	domain.CategoryDessert:  "bg-primary",
}

// MenuCategories is the selectable category list for the cafe menu.
var MenuCategories = []domain.Category{
	{Value: AllCategories, Label: "All Items"},
	{Value: domain.CategoryCoffee, Label: "Coffee"},
	{Value: domain.CategoryTea, Label: "Tea"},
	{Value: domain.CategoryPastry, Label: "Pastries"},
	{Value: domain.CategorySandwich, Label: "Sandwiches"},
	{Value: domain.CategoryDessert, Label: "Desserts"},
}

// BadgeFor returns the badge class for a menu category.
func BadgeFor(category string) string {
	if badge, ok := categoryBadges[category]; ok {
		return badge
	}
	return DefaultBadge
}

// ProjectMenuItem shapes a cafe menu entry for display.
func ProjectMenuItem(m domain.MenuItem) domain.MenuItemView {
	category := FirstNonEmpty(Uncategorized, m.Category)
	return domain.MenuItemView{
		ID:          m.ID,
		Name:        FirstNonEmpty("unnamed item", m.Name),
		Description: m.Description,
		Price:       m.Price,
		PriceLabel:  fmt.Sprintf("$%.2f", m.Price),
		Category:    category,
		Image:       FirstNonEmpty(PlaceholderImage, m.ImageURL),
		Badge:       BadgeFor(category),
		Available:   m.Available,
	}
}

// FindMenuItem returns the view with the given id.
func FindMenuItem(views []domain.MenuItemView, id int) (domain.MenuItemView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return domain.MenuItemView{}, false
}
