package model

import "strings"

// HeaderField is a single name/value pair in a header block.
type HeaderField struct {
	Name  string
	Value string
}

// Header is an ordered HTTP header mapping. Lookups are case-insensitive
// per RFC 9110; insertion order and duplicate fields are preserved so the
// header block a peer sent can be reproduced faithfully.
//
// The zero value is an empty header ready for use.
type Header struct {
	fields []HeaderField
}

// Add appends a field, keeping any existing fields with the same name.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// Set replaces all fields with the given name by a single field.
// The replacement takes the position of the first occurrence, or is
// appended if the name was not present.
func (h *Header) Set(name, value string) {
	kept := h.fields[:0]
	inserted := false
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			if !inserted {
				kept = append(kept, HeaderField{Name: name, Value: value})
				inserted = true
			}
			continue
		}
		kept = append(kept, f)
	}
	h.fields = kept
	if !inserted {
		h.Add(name, value)
	}
}

// Get returns the value of the first field with the given name,
// or the empty string if the name is not present.
func (h *Header) Get(name string) string {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Has reports whether at least one field with the given name exists.
func (h *Header) Has(name string) bool {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

// Values returns all values for the given name in insertion order.
func (h *Header) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Fields returns a copy of all fields in insertion order.
func (h *Header) Fields() []HeaderField {
	out := make([]HeaderField, len(h.fields))
	copy(out, h.fields)
	return out
}

// Len returns the number of fields, counting duplicates.
func (h *Header) Len() int {
	return len(h.fields)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() Header {
	return Header{fields: h.Fields()}
}
