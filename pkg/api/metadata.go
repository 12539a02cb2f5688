package api

import "sort"

const (
	AttributeCaption      = "Caption"
	AttributeDate         = "Date"
	AttributePhotographer = "Photographer"
)

// MetadataUpdate is a request to set one attribute on an existing record.
type MetadataUpdate struct {
	Key       string
	Attribute string
	Value     string
}

func (m MetadataUpdate) Complete() bool {
	return m.Key != "" && m.Value != ""
}

// Whitelist is the immutable set of attribute names a metadata update may touch.
type Whitelist struct {
	names map[string]struct{}
}

// IsImageAttribute reports whether name is an attribute an Image carries
// besides its key.
func IsImageAttribute(name string) bool {
	switch name {
	case AttributeCaption, AttributeDate, AttributePhotographer:
		return true
	}
	return false
}

// NewWhitelist builds a whitelist from names. Names that aren't image
// attributes are left out.
func NewWhitelist(names ...string) Whitelist {
	w := Whitelist{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		if IsImageAttribute(name) {
			w.names[name] = struct{}{}
		}
	}
	return w
}

func DefaultWhitelist() Whitelist {
	return NewWhitelist(AttributeCaption, AttributeDate, AttributePhotographer)
}

func (w Whitelist) Allows(name string) bool {
	if name == "" {
		return false
	}
	_, ok := w.names[name]
	return ok
}

func (w Whitelist) Names() []string {
	names := make([]string, 0, len(w.names))
	for name := range w.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
