package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Paginated is the backend's paginated list envelope.
type Paginated[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Listing is a list response that the backend may send either as a plain
// array (Direct) or wrapped in a Paginated envelope. Exactly one of the two
// is set after decoding.
type Listing[T any] struct {
	Direct []T
	Page   *Paginated[T]
}

// UnmarshalJSON decodes either shape. Objects without a results array are
// rejected.
func (l *Listing[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("listing: empty payload")
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("listing: decoding array: %w", err)
		}
		*l = Listing[T]{Direct: items}
		return nil
	case '{':
		var probe struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return fmt.Errorf("listing: decoding object: %w", err)
		}
		if len(probe.Results) == 0 || bytes.TrimSpace(probe.Results)[0] != '[' {
			return errors.New("listing: object has no results array")
		}
		var page Paginated[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return fmt.Errorf("listing: decoding page: %w", err)
		}
		*l = Listing[T]{Page: &page}
		return nil
	case 'n':
		if string(trimmed) == "null" {
			*l = Listing[T]{}
			return nil
		}
	}
	return fmt.Errorf("listing: unexpected payload %.32q", trimmed)
}

// Items normalizes the listing to a slice.
func (l Listing[T]) Items() []T {
	if l.Page != nil {
		return l.Page.Results
	}
	return l.Direct
}

// Total is the total item count, which may exceed len(Items()) for a page.
func (l Listing[T]) Total() int {
	if l.Page != nil {
		return l.Page.Count
	}
	return len(l.Direct)
}
