package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ferry/internal/backend"
	"ferry/internal/engine"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/resolver"
	"ferry/internal/router"
	"ferry/internal/sessioncache"
	"ferry/internal/sharelink"
)

type fakeSearcher struct {
	items     []media.SearchItem
	resources map[media.ResourceType][]media.Resource
	searchErr error
	fetches   []media.ResourceType
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]media.SearchItem, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.items, nil
}

func (f *fakeSearcher) Resources(ctx context.Context, item media.SearchItem, t media.ResourceType) ([]media.Resource, error) {
	f.fetches = append(f.fetches, t)
	return f.resources[t], nil
}

type fakeQueue struct {
	offlineCalls int
	statuses     []backend.TaskStatus
}

func (f *fakeQueue) AddSharedLink(ctx context.Context, shareURL, password, targetFolder string) (backend.Ack, error) {
	return backend.Ack{OK: true}, nil
}

func (f *fakeQueue) AddOfflineTask(ctx context.Context, urls, targetFolder string) (backend.Ack, error) {
	f.offlineCalls++
	return backend.Ack{OK: true}, nil
}

func (f *fakeQueue) ListOfflineStatus(ctx context.Context, path string, forceRefresh bool) ([]backend.TaskStatus, error) {
	return f.statuses, nil
}

func (f *fakeQueue) SystemInfo(ctx context.Context) (backend.SystemInfo, error) {
	return backend.SystemInfo{Ready: true, User: "alice"}, nil
}

func testItems() []media.SearchItem {
	return []media.SearchItem{
		{ID: 1, Title: "First Film", Kind: media.KindMovie, Availability: media.Availability{Magnet: true}},
		{ID: 2, Title: "Second Show", Kind: media.KindSeries, Availability: media.Availability{Share: true}},
	}
}

func newEngine(t *testing.T, searcher *fakeSearcher, cache *sessioncache.Cache, queue backend.OfflineQueuer) *engine.Engine {
	t.Helper()
	parser, err := sharelink.NewParser([]string{"115.com"})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	rt := router.New(router.Options{
		Queue:       queue,
		Parser:      parser,
		OfflinePath: "/115/Offline",
		CloudPath:   "/115/Downloads",
	}, logging.NewNop())

	eng, err := engine.New(engine.Options{
		Searcher: searcher,
		Cache:    cache,
		Resolver: resolver.New(logging.NewNop()),
		Router:   rt,
		Queue:    queue,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func TestSearchCachesResults(t *testing.T) {
	searcher := &fakeSearcher{items: testItems()}
	cache := sessioncache.New()
	eng := newEngine(t, searcher, cache, &fakeQueue{})

	items, err := eng.Search(context.Background(), "alice", "film")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected two items, got %d", len(items))
	}
	entry, ok := cache.Get("alice", sessioncache.SearchResults)
	if !ok || len(entry.Items) != 2 {
		t.Fatalf("expected search results to be cached, got ok=%v", ok)
	}
}

func TestSelectRequiresCachedSearch(t *testing.T) {
	eng := newEngine(t, &fakeSearcher{}, sessioncache.New(), &fakeQueue{})

	_, err := eng.Select(context.Background(), "alice", 1)
	if !errors.Is(err, engine.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSelectRejectsOutOfRangeOrdinal(t *testing.T) {
	searcher := &fakeSearcher{items: testItems()}
	eng := newEngine(t, searcher, sessioncache.New(), &fakeQueue{})

	if _, err := eng.Search(context.Background(), "alice", "film"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, ordinal := range []int{0, 3, -1} {
		if _, err := eng.Select(context.Background(), "alice", ordinal); !errors.Is(err, engine.ErrOrdinalOutOfRange) {
			t.Fatalf("ordinal %d: expected ErrOrdinalOutOfRange, got %v", ordinal, err)
		}
	}
}

func TestSelectResolvesAndTransferRoutes(t *testing.T) {
	searcher := &fakeSearcher{
		items: testItems(),
		resources: map[media.ResourceType][]media.Resource{
			media.ResourceMagnet: {{Type: media.ResourceMagnet, Title: "First.Film.2020", Locator: "magnet:?xt=urn:btih:abc"}},
		},
	}
	queue := &fakeQueue{}
	cache := sessioncache.New()
	eng := newEngine(t, searcher, cache, queue)

	if _, err := eng.Search(context.Background(), "alice", "film"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	sel, err := eng.Select(context.Background(), "alice", 1)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if sel.Type != media.ResourceMagnet || len(sel.Resources) != 1 {
		t.Fatalf("unexpected selection: %+v", sel)
	}

	out, err := eng.Transfer(context.Background(), "alice", 1)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if !out.Succeeded() || out.Backend != router.BackendCloudDrive {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if queue.offlineCalls != 1 {
		t.Fatalf("expected one offline submission, got %d", queue.offlineCalls)
	}
}

func TestTransferRequiresLiveResourceCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cache := sessioncache.New(sessioncache.WithClock(func() time.Time { return now }))
	searcher := &fakeSearcher{
		items: testItems(),
		resources: map[media.ResourceType][]media.Resource{
			media.ResourceMagnet: {{Type: media.ResourceMagnet, Locator: "magnet:?xt=urn:btih:abc"}},
		},
	}
	eng := newEngine(t, searcher, cache, &fakeQueue{})

	if _, err := eng.Search(context.Background(), "alice", "film"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := eng.Select(context.Background(), "alice", 1); err != nil {
		t.Fatalf("Select: %v", err)
	}

	now = now.Add(sessioncache.TTL)
	_, err := eng.Transfer(context.Background(), "alice", 1)
	if !errors.Is(err, engine.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after TTL, got %v", err)
	}
}

func TestResourcesFetchesExplicitType(t *testing.T) {
	searcher := &fakeSearcher{
		items: testItems(),
		resources: map[media.ResourceType][]media.Resource{
			media.ResourceED2K: {{Type: media.ResourceED2K, Locator: "ed2k://|file|x|1|aa|/"}},
		},
	}
	cache := sessioncache.New()
	eng := newEngine(t, searcher, cache, &fakeQueue{})

	if _, err := eng.Search(context.Background(), "alice", "film"); err != nil {
		t.Fatalf("Search: %v", err)
	}
	resources, err := eng.Resources(context.Background(), "alice", 1, media.ResourceED2K)
	if err != nil {
		t.Fatalf("Resources: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected one resource, got %d", len(resources))
	}
	if got := searcher.fetches; len(got) != 1 || got[0] != media.ResourceED2K {
		t.Fatalf("expected a single explicit ed2k fetch, got %v", got)
	}
	entry, ok := cache.Get("alice", sessioncache.Resources)
	if !ok || entry.ResourceType != media.ResourceED2K {
		t.Fatalf("expected ed2k resources cached, got ok=%v entry=%+v", ok, entry)
	}
}

func TestOfflineStatusWithoutQueueIsUnavailable(t *testing.T) {
	eng := newEngine(t, &fakeSearcher{}, sessioncache.New(), nil)

	_, err := eng.OfflineStatus(context.Background(), false)
	if !errors.Is(err, backend.ErrFeatureUnavailable) {
		t.Fatalf("expected ErrFeatureUnavailable, got %v", err)
	}
}

func TestHealthProbesQueue(t *testing.T) {
	eng := newEngine(t, &fakeSearcher{}, sessioncache.New(), &fakeQueue{})

	info, err := eng.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !info.Ready || info.User != "alice" {
		t.Fatalf("unexpected health payload: %+v", info)
	}
}
