package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/shelf/pkg/domain"
)

func TestDecode_Envelopes(t *testing.T) {
	paginated := `{"count":2,"next":null,"previous":null,"results":[{"id":84,"title":"Frankenstein"},{"id":1342,"title":"Pride and Prejudice"}]}`
	bare := `[{"id":84,"title":"Frankenstein"},{"id":1342,"title":"Pride and Prejudice"}]`

	tests := []struct {
		name      string
		body      string
		envelope  Envelope
		expectErr bool
		expectLen int
	}{
		{name: "results envelope", body: paginated, envelope: EnvelopeResults, expectLen: 2},
		{name: "bare array", body: bare, envelope: EnvelopeBare, expectLen: 2},
		{name: "auto with results", body: paginated, envelope: EnvelopeAuto, expectLen: 2},
		{name: "auto with array", body: bare, envelope: EnvelopeAuto, expectLen: 2},
		{name: "bare rejects object", body: paginated, envelope: EnvelopeBare, expectErr: true},
		{name: "results rejects array", body: bare, envelope: EnvelopeResults, expectErr: true},
		{name: "missing results field", body: `{"count":0}`, envelope: EnvelopeResults, expectErr: true},
		{name: "null results", body: `{"results":null}`, envelope: EnvelopeResults, expectLen: 0},
		{name: "results not an array", body: `{"results":{"id":1}}`, envelope: EnvelopeResults, expectErr: true},
		{name: "empty array", body: `[]`, envelope: EnvelopeBare, expectLen: 0},
		{name: "empty body", body: "  ", envelope: EnvelopeAuto, expectErr: true},
		{name: "malformed json", body: `[{"id":`, envelope: EnvelopeAuto, expectErr: true},
		{name: "wrong record shape", body: `[{"id":"eighty-four"}]`, envelope: EnvelopeBare, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := Decode[domain.CatalogBook](strings.NewReader(tt.body), tt.envelope)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, books)
			assert.Len(t, books, tt.expectLen)
		})
	}
}

func TestDecode_PreservesFields(t *testing.T) {
	body := `{"results":[{"id":84,"title":"Frankenstein","authors":[{"name":"Shelley, Mary Wollstonecraft","birth_year":1797,"death_year":1851}],"formats":{"image/jpeg":"https://www.gutenberg.org/cache/epub/84/pg84.cover.medium.jpg"}}]}`

	books, err := Decode[domain.CatalogBook](strings.NewReader(body), EnvelopeResults)
	require.NoError(t, err)
	require.Len(t, books, 1)

	assert.Equal(t, 84, books[0].ID)
	require.Len(t, books[0].Authors, 1)
	assert.Equal(t, "Shelley, Mary Wollstonecraft", books[0].Authors[0].Name)
	require.NotNil(t, books[0].Authors[0].BirthYear)
	assert.Equal(t, 1797, *books[0].Authors[0].BirthYear)
	assert.Equal(t, "https://www.gutenberg.org/cache/epub/84/pg84.cover.medium.jpg", books[0].Formats["image/jpeg"])
}

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		input     string
		expected  Envelope
		expectErr bool
	}{
		{input: "results", expected: EnvelopeResults},
		{input: " BARE ", expected: EnvelopeBare},
		{input: "auto", expected: EnvelopeAuto},
		{input: "", expected: EnvelopeAuto},
		{input: "xml", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			env, err := ParseEnvelope(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, env)
		})
	}
}
