package feed

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFeed is returned when a feed document lacks required fields
	// or carries them with the wrong JSON type.
	ErrMalformedFeed = errors.New("feed: malformed document")

	// ErrSourceUnavailable wraps every failure to obtain a document upstream.
	ErrSourceUnavailable = errors.New("feed: source unavailable")
)

// Document is the wire shape of the ServiceTags JSON file. Only the fields the
// cache relies on are declared; everything else in the vendor file is ignored.
//
// A nil ChangeNumber means the field was absent. A nil Values slice means the
// field was absent or null; an empty list decodes to a non-nil empty slice.
type Document struct {
	ChangeNumber *int64  `json:"changeNumber"`
	Cloud        string  `json:"cloud,omitempty"`
	Values       []Entry `json:"values"`
}

type Entry struct {
	Name       string      `json:"name"`
	ID         string      `json:"id,omitempty"`
	Properties *Properties `json:"properties,omitempty"`
}

type Properties struct {
	AddressPrefixes []string `json:"addressPrefixes"`
}

// ParseDocument decodes a raw ServiceTags payload and checks its shape.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the fields required to build a snapshot.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedFeed)
	}
	if d.ChangeNumber == nil {
		return fmt.Errorf("%w: missing changeNumber", ErrMalformedFeed)
	}
	if *d.ChangeNumber < 0 {
		return fmt.Errorf("%w: negative changeNumber %d", ErrMalformedFeed, *d.ChangeNumber)
	}
	if d.Values == nil {
		return fmt.Errorf("%w: missing values", ErrMalformedFeed)
	}
	for i, entry := range d.Values {
		if entry.Name == "" {
			return fmt.Errorf("%w: values[%d] has no name", ErrMalformedFeed, i)
		}
	}
	return nil
}

func (e Entry) prefixes() []string {
	if e.Properties == nil {
		return nil
	}
	return e.Properties.AddressPrefixes
}
