// Package nullbr provides access to the Nullbr resource search API: media
// search with per-type availability flags, and the per-type resource
// endpoints that return concrete share links, magnets, ed2k links, or
// streaming pointers.
//
// Outbound calls are rate limited because the provider enforces per-key
// quotas upstream.
package nullbr
