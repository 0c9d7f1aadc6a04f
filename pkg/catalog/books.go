package catalog

import (
	"strconv"
	"strings"

	"github.com/polisai/shelf/pkg/domain"
)

// Fallback literals substituted when a source field is missing or empty.
const (
	UnknownAuthor    = "unknown author"
	UntitledBook     = "untitled"
	Uncategorized    = "uncategorized"
	PlaceholderImage = "https://via.placeholder.com/200x300?text=No+Image"
	GutendexBookURL  = "https://gutendex.com/books/"
	authorPrefix     = "Author: "
)

// ImageFormatPriority is the order in which Gutendex cover formats are tried.
var ImageFormatPriority = []string{"image/jpeg", "image/png", "image/gif"}

// LinkFormatPriority is the order in which Gutendex reading formats are tried.
var LinkFormatPriority = []string{"text/html", "text/html; charset=utf-8", "application/epub+zip"}

// ProjectCatalogBook shapes a Gutendex entry for display.
func ProjectCatalogBook(b domain.CatalogBook) domain.BookView {
	view := domain.BookView{
		Title:       FirstNonEmpty(UntitledBook, b.Title),
		Description: describeAuthors(b.Authors),
		Image:       PickByPriority(b.Formats, ImageFormatPriority, PlaceholderImage),
		Category:    Uncategorized,
	}
	if b.ID > 0 {
		view.ID = strconv.Itoa(b.ID)
		view.Link = PickByPriority(b.Formats, LinkFormatPriority, GutendexBookURL+view.ID)
	} else {
		view.Link = PickByPriority(b.Formats, LinkFormatPriority, "")
	}
	if len(b.Bookshelves) > 0 {
		view.Category = FirstNonEmpty(Uncategorized, b.Bookshelves[0])
	} else if len(b.Subjects) > 0 {
		view.Category = FirstNonEmpty(Uncategorized, b.Subjects[0])
	}
	return view
}

func describeAuthors(authors []domain.Person) string {
	if len(authors) == 0 || strings.TrimSpace(authors[0].Name) == "" {
		return UnknownAuthor
	}
	return authorPrefix + authors[0].Name
}

// ProjectUpcomingBook shapes a new-release entry for display.
func ProjectUpcomingBook(b domain.UpcomingBook) domain.BookView {
	view := domain.BookView{
		Title:       FirstNonEmpty(UntitledBook, b.Title),
		Image:       FirstNonEmpty(PlaceholderImage, b.Image),
		Category:    FirstNonEmpty(Uncategorized, b.Category),
		ReleaseDate: b.ReleaseDate,
		Price:       b.Price,
	}
	if b.ID != nil {
		view.ID = strconv.Itoa(*b.ID)
	}
	switch {
	case strings.TrimSpace(b.Description) != "":
		view.Description = b.Description
	case strings.TrimSpace(b.Author) != "":
		view.Description = authorPrefix + b.Author
	default:
		view.Description = UnknownAuthor
	}
	return view
}
