package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polisai/shelf/pkg/domain"
)

func genCatalogBook() *rapid.Generator[domain.CatalogBook] {
	return rapid.Custom(func(t *rapid.T) domain.CatalogBook {
		authors := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) domain.Person {
			return domain.Person{Name: rapid.StringMatching(`[A-Za-z ,]{0,20}`).Draw(t, "author")}
		}), 0, 3).Draw(t, "authors")

		formats := map[string]string{}
		for _, key := range append(append([]string{}, ImageFormatPriority...), LinkFormatPriority...) {
			if rapid.Bool().Draw(t, "has_"+key) {
				formats[key] = rapid.StringMatching(`https://example\.org/[a-z]{1,8}`).Draw(t, key)
			}
		}

		return domain.CatalogBook{
			ID:          rapid.IntRange(0, 100000).Draw(t, "id"),
			Title:       rapid.StringMatching(`[A-Za-z ]{0,30}`).Draw(t, "title"),
			Authors:     authors,
			Bookshelves: rapid.SliceOfN(rapid.SampledFrom([]string{"Science Fiction", "Gothic Fiction", "Humor"}), 0, 2).Draw(t, "shelves"),
			Subjects:    rapid.SliceOfN(rapid.SampledFrom([]string{"Adventure", "Horror"}), 0, 2).Draw(t, "subjects"),
			Formats:     formats,
		}
	})
}

func TestProject_EmptyInputProperty(t *testing.T) {
	views := Project([]domain.CatalogBook{}, ProjectCatalogBook)
	require.NotNil(t, views)
	assert.Empty(t, views)

	views = Project[domain.CatalogBook, domain.BookView](nil, ProjectCatalogBook)
	require.NotNil(t, views)
	assert.Empty(t, views)
}

func TestProject_TotalAndDefaultedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		books := rapid.SliceOf(genCatalogBook()).Draw(t, "books")
		views := Project(books, ProjectCatalogBook)

		if len(views) != len(books) {
			t.Fatalf("expected %d views, got %d", len(books), len(views))
		}
		for i, v := range views {
			if v.Title == "" || v.Description == "" || v.Image == "" || v.Category == "" {
				t.Fatalf("view %d has an empty display field: %+v", i, v)
			}
			if books[i].ID > 0 && v.Link == "" {
				t.Fatalf("view %d with id %d has no link", i, books[i].ID)
			}
		}
	})
}

func TestTake(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6}

	assert.Equal(t, []int{1, 2, 3, 4}, Take(items, 4))
	assert.Equal(t, items, Take(items, 10))
	assert.Equal(t, []int{}, Take(items, 0))
	assert.Equal(t, []int{}, Take(items, -3))
	assert.Equal(t, []int{}, Take([]int{}, 4))

	// Appending to a truncated slice must not clobber the source.
	first := Take(items, 2)
	_ = append(first, 99)
	assert.Equal(t, 3, items[2])
}

func TestPickByPriority(t *testing.T) {
	fields := map[string]string{"image/png": "png", "image/gif": "gif", "image/jpeg": "  "}

	assert.Equal(t, "png", PickByPriority(fields, ImageFormatPriority, "fallback"))
	assert.Equal(t, "fallback", PickByPriority(nil, ImageFormatPriority, "fallback"))
	assert.Equal(t, "fallback", PickByPriority(fields, []string{"text/html"}, "fallback"))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("x", "", " ", "b", "c"))
	assert.Equal(t, "x", FirstNonEmpty("x"))
}
