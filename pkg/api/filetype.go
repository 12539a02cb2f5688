package api

import "strings"

type Classification int

const (
	Indeterminate Classification = iota
	Accepted
	Rejected
)

func (c Classification) String() string {
	switch c {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "indeterminate"
	}
}

var supportedTypes = map[string]struct{}{
	"jpeg": {},
	"png":  {},
}

// Suffix returns the lowercased text after the final "." of key, or "" when
// there is none.
func Suffix(key string) string {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return ""
	}
	return strings.ToLower(key[i+1:])
}

// ClassifyType decides from the key's suffix alone whether an upload is a
// supported image. It is shared by the catalog and notification consumers,
// which apply it independently.
func ClassifyType(key string) Classification {
	suffix := Suffix(key)
	if suffix == "" {
		return Indeterminate
	}
	if _, ok := supportedTypes[suffix]; ok {
		return Accepted
	}
	return Rejected
}
