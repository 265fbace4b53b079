// Package media defines the domain model shared by the search, resolution,
// and transfer components: media kinds, the closed resource-type enum with
// its canonical priority order, search result items with per-type
// availability flags, and resolved resources.
//
// ResourceType is deliberately a closed enum; routing and availability
// dispatch go through typed accessors rather than string comparison so a new
// type cannot be added without the compiler pointing at every switch.
package media
