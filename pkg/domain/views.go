package domain

// BookView is the display-ready projection shared by catalog and upcoming books.
type BookView struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Link        string   `json:"link,omitempty"`
	Category    string   `json:"category"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// CategoryKey implements catalog.Categorized.
func (v BookView) CategoryKey() string { return v.Category }

// MenuItemView is the display-ready projection of a MenuItem.
type MenuItemView struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	PriceLabel  string  `json:"priceLabel"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Badge       string  `json:"badge"`
	Available   bool    `json:"available"`
}

// CategoryKey implements catalog.Categorized.
func (v MenuItemView) CategoryKey() string { return v.Category }

// Category is a selectable filter entry.
type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
