package fixtures

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/shelf/pkg/domain"
)

func decode[R any](t *testing.T, name string) []R {
	t.Helper()
	raw, err := fs.ReadFile(FS(), name)
	require.NoError(t, err)
	var out []R
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMenu(t *testing.T) {
	items := decode[domain.MenuItem](t, Menu)
	require.Len(t, items, 9)

	unavailable := 0
	for _, item := range items {
		assert.NoError(t, item.Validate())
		if !item.Available {
			unavailable++
			assert.Equal(t, "Mocha", item.Name)
		}
	}
	assert.Equal(t, 1, unavailable)
}

func TestUpcoming(t *testing.T) {
	books := decode[domain.UpcomingBook](t, Upcoming)
	require.Len(t, books, 4)

	// The last entry deliberately lacks an author and image to exercise fallbacks.
	for _, b := range books[:3] {
		assert.NoError(t, b.Validate())
	}
	assert.True(t, domain.IsValidationError(books[3].Validate()))
}

func TestTestimonials(t *testing.T) {
	quotes := decode[domain.Testimonial](t, Testimonials)
	require.Len(t, quotes, 3)
	for _, q := range quotes {
		assert.NotEmpty(t, q.Name)
		assert.NotEmpty(t, q.Review)
	}
}
