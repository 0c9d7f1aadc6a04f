package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Envelope selects how a response body is unwrapped into a record array.
type Envelope string

const (
	// EnvelopeResults expects an object carrying the records under "results".
	EnvelopeResults Envelope = "results"
	// EnvelopeBare expects a top-level JSON array.
	EnvelopeBare Envelope = "bare"
	// EnvelopeAuto accepts either shape.
	EnvelopeAuto Envelope = "auto"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 16 << 20

// ParseEnvelope normalises a configured envelope name.
func ParseEnvelope(s string) (Envelope, error) {
	switch Envelope(strings.ToLower(strings.TrimSpace(s))) {
	case EnvelopeResults:
		return EnvelopeResults, nil
	case EnvelopeBare:
		return EnvelopeBare, nil
	case EnvelopeAuto, "":
		return EnvelopeAuto, nil
	default:
		return "", fmt.Errorf("unknown envelope %q (want results, bare or auto)", s)
	}
}

type resultsPage struct {
	Count    *int            `json:"count,omitempty"`
	Next     *string         `json:"next,omitempty"`
	Previous *string         `json:"previous,omitempty"`
	Results  json.RawMessage `json:"results"`
}

// Decode reads r and unwraps it into a slice of records.
func Decode[R any](r io.Reader, env Envelope) ([]R, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var raw json.RawMessage
	switch env {
	case EnvelopeBare:
		if body[0] != '[' {
			return nil, fmt.Errorf("expected a JSON array")
		}
		raw = body
	case EnvelopeResults:
		raw, err = unwrapResults(body)
		if err != nil {
			return nil, err
		}
	default:
		if body[0] == '[' {
			raw = body
		} else {
			raw, err = unwrapResults(body)
			if err != nil {
				return nil, err
			}
		}
	}

	var records []R
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		records = []R{}
	}
	return records, nil
}

func unwrapResults(body []byte) (json.RawMessage, error) {
	if body[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object with a results field")
	}
	var page resultsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	results := bytes.TrimSpace(page.Results)
	if len(results) == 0 {
		return nil, fmt.Errorf("missing results field")
	}
	if bytes.Equal(results, []byte("null")) {
		return json.RawMessage("[]"), nil
	}
	if results[0] != '[' {
		return nil, fmt.Errorf("results field is not an array")
	}
	return page.Results, nil
}
