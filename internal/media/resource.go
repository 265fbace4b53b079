package media

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Kind distinguishes movies from episodic series.
type Kind int

const (
	KindUnknown Kind = iota
	KindMovie
	KindSeries
)

func (k Kind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindSeries:
		return "series"
	default:
		return "unknown"
	}
}

// ParseKind maps provider media-type strings onto Kind.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie":
		return KindMovie
	case "tv", "series", "show":
		return KindSeries
	default:
		return KindUnknown
	}
}

// ResourceType is the closed set of transferable resource classes.
type ResourceType int

const (
	// ResourceShare is a direct share link on a supported share host.
	ResourceShare ResourceType = iota
	// ResourceMagnet is a magnet URI handled as an offline task.
	ResourceMagnet
	// ResourceED2K is an ed2k hash link handled as an offline task.
	ResourceED2K
	// ResourceStream is a streaming/watch-online pointer; no transfer
	// backend handles it.
	ResourceStream

	resourceTypeCount = iota
)

// ResourceTypes lists every known type in declaration order.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceShare, ResourceMagnet, ResourceED2K, ResourceStream}
}

// DefaultPriority is the canonical resolution preference order.
func DefaultPriority() []ResourceType {
	return []ResourceType{ResourceShare, ResourceMagnet, ResourceED2K, ResourceStream}
}

func (t ResourceType) String() string {
	switch t {
	case ResourceShare:
		return "share"
	case ResourceMagnet:
		return "magnet"
	case ResourceED2K:
		return "ed2k"
	case ResourceStream:
		return "stream"
	default:
		return "unknown"
	}
}

var titleCaser = cases.Title(language.English)

// Label returns a human-facing name for the type.
func (t ResourceType) Label() string {
	switch t {
	case ResourceShare:
		return "115 Share"
	case ResourceMagnet:
		return "Magnet"
	case ResourceED2K:
		return "ED2K"
	case ResourceStream:
		return "Streaming"
	default:
		return titleCaser.String(t.String())
	}
}

// ParseResourceType maps a configured type string onto the enum.
func ParseResourceType(value string) (ResourceType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "share", "115":
		return ResourceShare, nil
	case "magnet":
		return ResourceMagnet, nil
	case "ed2k":
		return ResourceED2K, nil
	case "stream", "video":
		return ResourceStream, nil
	default:
		return 0, fmt.Errorf("unknown resource type %q", value)
	}
}

// ParsePriority converts configured type names into a priority order. Any
// list that is not a permutation of all known types yields the default
// order instead.
func ParsePriority(names []string) []ResourceType {
	seen := make(map[ResourceType]struct{}, resourceTypeCount)
	order := make([]ResourceType, 0, resourceTypeCount)
	for _, name := range names {
		t, err := ParseResourceType(name)
		if err != nil {
			return DefaultPriority()
		}
		if _, dup := seen[t]; dup {
			return DefaultPriority()
		}
		seen[t] = struct{}{}
		order = append(order, t)
	}
	if len(order) != resourceTypeCount {
		return DefaultPriority()
	}
	return order
}

// SearchItem is a single provider search match. Immutable once produced.
type SearchItem struct {
	ID           int64
	Title        string
	Kind         Kind
	Year         string
	Availability Availability
}

// Availability carries the provider's per-type resource flags.
type Availability struct {
	Share  bool
	Magnet bool
	ED2K   bool
	Stream bool
}

// Has reports whether the item advertises resources of the given type.
func (a Availability) Has(t ResourceType) bool {
	switch t {
	case ResourceShare:
		return a.Share
	case ResourceMagnet:
		return a.Magnet
	case ResourceED2K:
		return a.ED2K
	case ResourceStream:
		return a.Stream
	default:
		return false
	}
}

// Any reports whether at least one resource type is flagged.
func (a Availability) Any() bool {
	return a.Share || a.Magnet || a.ED2K || a.Stream
}

// Resource is a concrete transferable resource resolved from a search item.
// Ordinal is its 1-based position within the owning session entry.
type Resource struct {
	Type      ResourceType
	Title     string
	SizeLabel string
	Locator   string
	Ordinal   int
}
