package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Event is an inbound form-submission webhook. The same ID may arrive more
// than once when the sender retries a delivery.
type Event struct {
	ID        string    `json:"eventId"`
	CreatedAt string    `json:"createdAt"`
	Data      EventData `json:"data"`
}

// EventData holds the submitted form fields in form order.
type EventData struct {
	Fields []Field `json:"fields"`
}

// Field is a single labelled form answer. Value is either a scalar or a list
// of uploaded asset references.
type Field struct {
	Key   string          `json:"key,omitempty"`
	Label string          `json:"label"`
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value"`
}

// AssetRef points at a file uploaded through the form.
type AssetRef struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Text returns the scalar value of the field as a string. Numbers and
// booleans are formatted, lists of strings are joined with ", ".
// The second result is false for null, missing or asset values.
func (f Field) Text() (string, bool) {
	raw := bytes.TrimSpace(f.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return strings.Join(list, ", "), true
	}

	return "", false
}

// Assets returns the uploaded asset references carried by the field.
// Entries without a URL are skipped.
func (f Field) Assets() []AssetRef {
	raw := bytes.TrimSpace(f.Value)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}

	var refs []AssetRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil
	}

	out := refs[:0]
	for _, ref := range refs {
		if strings.TrimSpace(ref.URL) != "" {
			out = append(out, ref)
		}
	}
	return out
}

// createdAtLayouts are tried in order when parsing the sender's timestamp.
// Layouts without a zone are interpreted as UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ErrBadTimestamp is returned by ParseCreatedAt for unrecognised timestamps.
var ErrBadTimestamp = errors.New("unrecognised timestamp")

// ParseCreatedAt parses the claimed creation time of the event.
func (e Event) ParseCreatedAt() (time.Time, error) {
	s := strings.TrimSpace(e.CreatedAt)
	if s == "" {
		return time.Time{}, ErrBadTimestamp
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrBadTimestamp
}

// Variant selects which flavour of document a pipeline run produces.
type Variant string

const (
	// VariantPreview carries the watermark background.
	VariantPreview Variant = "preview"
	// VariantLicensed is the clean, purchased document.
	VariantLicensed Variant = "licensed"
)
