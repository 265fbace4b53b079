// Package engine composes the provider search, session cache, priority
// resolution, and transfer routing into the operations the daemon exposes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ferry/internal/backend"
	"ferry/internal/history"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/metrics"
	"ferry/internal/nullbr"
	"ferry/internal/resolver"
	"ferry/internal/router"
	"ferry/internal/sessioncache"
)

// Input errors callers can present directly to the user.
var (
	// ErrSessionExpired reports that the owner has no live cached step to
	// continue from; the flow restarts with a fresh search.
	ErrSessionExpired = errors.New("session expired or nothing cached, search again first")
	// ErrOrdinalOutOfRange reports a pick outside the cached listing.
	ErrOrdinalOutOfRange = errors.New("selection is out of range")
)

// Selection is the result of picking one search item and resolving its
// resources by priority.
type Selection struct {
	Item      media.SearchItem
	Type      media.ResourceType
	Resources []media.Resource
}

// Status is the daemon's activity snapshot.
type Status struct {
	History              history.Stats
	CloudDriveConfigured bool
	Drive115Configured   bool
}

// Options wires an Engine. History may be nil; recording is then skipped.
type Options struct {
	Searcher    nullbr.Searcher
	Cache       *sessioncache.Cache
	Resolver    *resolver.Resolver
	Router      *router.Router
	History     *history.Store
	Metrics     metrics.Recorder
	Queue       backend.OfflineQueuer
	Order       []media.ResourceType
	Enabled     resolver.EnabledFunc
	OfflinePath string

	CloudDriveConfigured bool
	Drive115Configured   bool
}

// Engine drives the search → select → transfer flow on behalf of callers.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// New builds an engine from opts.
func New(opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.Searcher == nil {
		return nil, errors.New("engine: searcher is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("engine: cache is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("engine: resolver is required")
	}
	if opts.Router == nil {
		return nil, errors.New("engine: router is required")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if len(opts.Order) == 0 {
		opts.Order = media.DefaultPriority()
	}
	if opts.Enabled == nil {
		opts.Enabled = func(media.ResourceType) bool { return true }
	}
	return &Engine{opts: opts, logger: logging.NewComponentLogger(logger, "engine")}, nil
}

// Search queries the provider and caches the listing for owner. An empty
// listing is a valid result and still replaces the owner's cached search.
func (e *Engine) Search(ctx context.Context, owner, query string) ([]media.SearchItem, error) {
	items, err := e.opts.Searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	e.opts.Cache.Put(sessioncache.Entry{
		Owner: owner,
		Kind:  sessioncache.SearchResults,
		Items: items,
	})

	kind := "none"
	if len(items) > 0 {
		kind = items[0].Kind.String()
	}
	e.opts.Metrics.RecordSearch(kind, len(items))
	e.recordSearch(ctx, owner, query, kind, len(items))
	e.logger.Info("search served",
		logging.String("owner", owner),
		logging.String("query", query),
		logging.Int("results", len(items)))
	return items, nil
}

// Select picks the ordinal-th cached search item (1-based), resolves its
// resources following the priority order, and caches the winning list.
func (e *Engine) Select(ctx context.Context, owner string, ordinal int) (Selection, error) {
	item, err := e.cachedItem(owner, ordinal)
	if err != nil {
		return Selection{}, err
	}

	set, err := e.opts.Resolver.Resolve(ctx, item, e.opts.Order, e.opts.Enabled, e.opts.Searcher.Resources)
	if err != nil {
		if errors.Is(err, resolver.ErrExhausted) {
			e.opts.Metrics.RecordResolution("none", false)
		}
		return Selection{}, err
	}
	e.opts.Metrics.RecordResolution(set.Type.String(), true)

	e.opts.Cache.Put(sessioncache.Entry{
		Owner:        owner,
		Kind:         sessioncache.Resources,
		Resources:    set.Resources,
		SourceTitle:  item.Title,
		ResourceType: set.Type,
	})
	return Selection{Item: item, Type: set.Type, Resources: set.Resources}, nil
}

// Resources fetches one explicit resource type for the ordinal-th cached
// search item, bypassing the priority walk, and caches the listing.
func (e *Engine) Resources(ctx context.Context, owner string, ordinal int, t media.ResourceType) ([]media.Resource, error) {
	item, err := e.cachedItem(owner, ordinal)
	if err != nil {
		return nil, err
	}

	resources, err := e.opts.Searcher.Resources(ctx, item, t)
	if err != nil {
		return nil, err
	}
	e.opts.Metrics.RecordResolution(t.String(), len(resources) > 0)

	e.opts.Cache.Put(sessioncache.Entry{
		Owner:        owner,
		Kind:         sessioncache.Resources,
		Resources:    resources,
		SourceTitle:  item.Title,
		ResourceType: t,
	})
	return resources, nil
}

// Transfer routes the ordinal-th cached resource (1-based) to its backend
// and records the outcome.
func (e *Engine) Transfer(ctx context.Context, owner string, ordinal int) (router.Outcome, error) {
	entry, ok := e.opts.Cache.Get(owner, sessioncache.Resources)
	if !ok {
		return router.Outcome{}, ErrSessionExpired
	}
	if ordinal < 1 || ordinal > len(entry.Resources) {
		return router.Outcome{}, fmt.Errorf("%w: %d of %d", ErrOrdinalOutOfRange, ordinal, len(entry.Resources))
	}

	resource := entry.Resources[ordinal-1]
	out := e.opts.Router.Route(ctx, resource)
	e.recordTransfer(ctx, owner, entry.SourceTitle, resource, out)
	return out, nil
}

// OfflineStatus lists the offline tasks under the configured offline folder.
func (e *Engine) OfflineStatus(ctx context.Context, forceRefresh bool) ([]backend.TaskStatus, error) {
	if e.opts.Queue == nil {
		return nil, backend.ErrFeatureUnavailable
	}
	return e.opts.Queue.ListOfflineStatus(ctx, e.opts.OfflinePath, forceRefresh)
}

// Status reports stored activity counters and which backends are wired.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	st := Status{
		CloudDriveConfigured: e.opts.CloudDriveConfigured,
		Drive115Configured:   e.opts.Drive115Configured,
	}
	if e.opts.History != nil {
		stats, err := e.opts.History.Stats(ctx)
		if err != nil {
			return Status{}, err
		}
		st.History = stats
	}
	return st, nil
}

// Health probes the offline queue backend. Without one the engine itself is
// the only thing to report on, which is trivially healthy.
func (e *Engine) Health(ctx context.Context) (backend.SystemInfo, error) {
	if e.opts.Queue == nil {
		return backend.SystemInfo{Ready: true}, nil
	}
	return e.opts.Queue.SystemInfo(ctx)
}

func (e *Engine) cachedItem(owner string, ordinal int) (media.SearchItem, error) {
	entry, ok := e.opts.Cache.Get(owner, sessioncache.SearchResults)
	if !ok {
		return media.SearchItem{}, ErrSessionExpired
	}
	if ordinal < 1 || ordinal > len(entry.Items) {
		return media.SearchItem{}, fmt.Errorf("%w: %d of %d", ErrOrdinalOutOfRange, ordinal, len(entry.Items))
	}
	return entry.Items[ordinal-1], nil
}

func (e *Engine) recordSearch(ctx context.Context, owner, query, kind string, results int) {
	if e.opts.History == nil {
		return
	}
	if err := e.opts.History.RecordSearch(ctx, owner, query, kind, results); err != nil {
		e.logger.Warn("history search record failed", logging.Error(err))
	}
}

func (e *Engine) recordTransfer(ctx context.Context, owner, sourceTitle string, res media.Resource, out router.Outcome) {
	if e.opts.History == nil {
		return
	}
	title := res.Title
	if title == "" {
		title = sourceTitle
	}
	rec := history.TransferRecord{
		ID:           out.ID,
		Owner:        owner,
		Title:        title,
		ResourceType: res.Type.String(),
		Backend:      out.Backend,
		Destination:  out.Destination,
		Degraded:     out.Degraded,
		Succeeded:    out.Succeeded(),
		Reason:       out.Reason,
		Message:      out.Message,
	}
	if err := e.opts.History.RecordTransfer(ctx, rec); err != nil {
		e.logger.Warn("history transfer record failed", logging.Error(err))
	}
}
