// Package resolver walks the configured resource-type priority order and
// returns the first type that yields concrete resources for a search item.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"ferry/internal/logging"
	"ferry/internal/media"
)

// ErrExhausted reports that every type in the order was skipped or empty.
// Callers must fall back to an alternate search path rather than retry.
var ErrExhausted = errors.New("no resource type yielded results")

// FetchFunc retrieves the provider's resources of one type for an item.
type FetchFunc func(ctx context.Context, item media.SearchItem, t media.ResourceType) ([]media.Resource, error)

// EnabledFunc reports whether a type is enabled in configuration.
type EnabledFunc func(t media.ResourceType) bool

// Set is a successful resolution: the winning type and its resources.
type Set struct {
	Type      media.ResourceType
	Resources []media.Resource
}

// Resolver resolves search items into transferable resources.
type Resolver struct {
	logger *slog.Logger
}

// New creates a Resolver. A nil logger is replaced with a no-op.
func New(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logging.NewComponentLogger(logger, "resolver")}
}

// Resolve visits order strictly in sequence. Types the item does not flag
// available, or that are disabled, are skipped without a fetch. The first
// fetch returning a non-empty list wins. A failed or empty fetch is final
// for that type on this call; there are no per-type retries.
func (r *Resolver) Resolve(ctx context.Context, item media.SearchItem, order []media.ResourceType, enabled EnabledFunc, fetch FetchFunc) (Set, error) {
	if fetch == nil {
		return Set{}, errors.New("fetch function is required")
	}

	for _, t := range order {
		if !item.Availability.Has(t) {
			r.logger.Debug("skipping type", logging.String("type", t.String()), logging.String("reason", "not available"))
			continue
		}
		if enabled != nil && !enabled(t) {
			r.logger.Debug("skipping type", logging.String("type", t.String()), logging.String("reason", "disabled"))
			continue
		}

		resources, err := fetch(ctx, item, t)
		if err != nil {
			r.logger.Warn("resource fetch failed",
				logging.String("type", t.String()),
				logging.Int64("item", item.ID),
				logging.Error(err))
			continue
		}
		if len(resources) == 0 {
			r.logger.Debug("no resources for type", logging.String("type", t.String()), logging.Int64("item", item.ID))
			continue
		}

		r.logger.Info("resolved resources",
			logging.String("type", t.String()),
			logging.Int64("item", item.ID),
			logging.Int("count", len(resources)))
		return Set{Type: t, Resources: resources}, nil
	}

	return Set{}, ErrExhausted
}
