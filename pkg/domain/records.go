package domain

import (
	"strconv"
	"strings"
)

// Person is an author entry in the Gutendex catalog.
type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year,omitempty"`
	DeathYear *int   `json:"death_year,omitempty"`
}

// CatalogBook is one entry of the paginated Gutendex catalog.
type CatalogBook struct {
	ID            int               `json:"id"`
	Title         string            `json:"title"`
	Authors       []Person          `json:"authors"`
	Subjects      []string          `json:"subjects"`
	Bookshelves   []string          `json:"bookshelves"`
	Languages     []string          `json:"languages"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
}

// Validate reports the first missing required field.
func (b CatalogBook) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return &ValidationError{Record: "catalog book " + strconv.Itoa(b.ID), Field: "title", Reason: "is empty"}
	}
	return nil
}

// UpcomingBook is a new-release entry read from a static JSON resource.
type UpcomingBook struct {
	ID          *int     `json:"id,omitempty"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Image       string   `json:"image"`
	ReleaseDate string   `json:"releaseDate"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// Validate reports the first missing required field.
func (b UpcomingBook) Validate() error {
	switch {
	case strings.TrimSpace(b.Title) == "":
		return &ValidationError{Record: "upcoming book", Field: "title", Reason: "is empty"}
	case strings.TrimSpace(b.Author) == "":
		return &ValidationError{Record: "upcoming book " + b.Title, Field: "author", Reason: "is empty"}
	}
	return nil
}

// Menu categories served by the cafe.
const (
	CategoryCoffee   = "coffee"
	CategoryTea      = "tea"
	CategoryPastry   = "pastry"
	CategorySandwich = "sandwich"
	CategoryDessert  = "dessert"
)

// MenuItem is one cafe menu entry.
type MenuItem struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
	Available   bool    `json:"available"`
}

// Validate reports the first missing required field.
func (m MenuItem) Validate() error {
	switch {
	case strings.TrimSpace(m.Name) == "":
		return &ValidationError{Record: "menu item " + strconv.Itoa(m.ID), Field: "name", Reason: "is empty"}
	case m.Price < 0:
		return &ValidationError{Record: "menu item " + m.Name, Field: "price", Reason: "is negative"}
	}
	return nil
}

// Testimonial is a customer quote shown by the rotating testimonial widget.
type Testimonial struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Review string `json:"review"`
	Avatar string `json:"avatar"`
}
