package sessioncache_test

import (
	"testing"
	"time"

	"ferry/internal/media"
	"ferry/internal/sessioncache"
)

func TestGetMissingOwner(t *testing.T) {
	cache := sessioncache.New()
	if _, ok := cache.Get("nobody", sessioncache.SearchResults); ok {
		t.Fatal("expected missing entry")
	}
}

func TestPutReplacesSameSlot(t *testing.T) {
	cache := sessioncache.New()
	cache.Put(sessioncache.Entry{
		Owner: "u1",
		Kind:  sessioncache.SearchResults,
		Items: []media.SearchItem{{ID: 1, Title: "First"}},
	})
	cache.Put(sessioncache.Entry{
		Owner: "u1",
		Kind:  sessioncache.SearchResults,
		Items: []media.SearchItem{{ID: 2, Title: "Second"}},
	})

	entry, ok := cache.Get("u1", sessioncache.SearchResults)
	if !ok {
		t.Fatal("expected entry")
	}
	if len(entry.Items) != 1 || entry.Items[0].ID != 2 {
		t.Fatalf("expected replacement payload, got %+v", entry.Items)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d, want 1", cache.Len())
	}
}

func TestSlotsAreIndependent(t *testing.T) {
	cache := sessioncache.New()
	cache.Put(sessioncache.Entry{
		Owner: "u1",
		Kind:  sessioncache.SearchResults,
		Items: []media.SearchItem{{ID: 1, Title: "Movie"}},
	})
	cache.Put(sessioncache.Entry{
		Owner:        "u1",
		Kind:         sessioncache.Resources,
		Resources:    []media.Resource{{Type: media.ResourceMagnet, Ordinal: 1}},
		SourceTitle:  "Movie",
		ResourceType: media.ResourceMagnet,
	})

	if _, ok := cache.Get("u1", sessioncache.SearchResults); !ok {
		t.Fatal("resources Put must not clear search slot")
	}
	entry, ok := cache.Get("u1", sessioncache.Resources)
	if !ok {
		t.Fatal("expected resources entry")
	}
	if entry.SourceTitle != "Movie" || entry.ResourceType != media.ResourceMagnet {
		t.Fatalf("echo fields lost: %+v", entry)
	}
}

func TestExpiryOnRead(t *testing.T) {
	now := time.Now()
	cache := sessioncache.New(sessioncache.WithClock(func() time.Time { return now }))

	cache.Put(sessioncache.Entry{Owner: "u1", Kind: sessioncache.SearchResults})

	now = now.Add(sessioncache.TTL - time.Second)
	if _, ok := cache.Get("u1", sessioncache.SearchResults); !ok {
		t.Fatal("entry should still be live just before TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := cache.Get("u1", sessioncache.SearchResults); ok {
		t.Fatal("entry should be expired after TTL")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry should be purged, Len = %d", cache.Len())
	}
}

func TestReadDoesNotRenewTTL(t *testing.T) {
	now := time.Now()
	cache := sessioncache.New(sessioncache.WithClock(func() time.Time { return now }))

	cache.Put(sessioncache.Entry{Owner: "u1", Kind: sessioncache.SearchResults})

	now = now.Add(sessioncache.TTL / 2)
	if _, ok := cache.Get("u1", sessioncache.SearchResults); !ok {
		t.Fatal("entry should be live at half TTL")
	}

	now = now.Add(sessioncache.TTL/2 + time.Second)
	if _, ok := cache.Get("u1", sessioncache.SearchResults); ok {
		t.Fatal("intermediate read must not extend the TTL")
	}
}

func TestDrop(t *testing.T) {
	cache := sessioncache.New()
	cache.Put(sessioncache.Entry{Owner: "u1", Kind: sessioncache.Resources})
	cache.Drop("u1", sessioncache.Resources)
	if _, ok := cache.Get("u1", sessioncache.Resources); ok {
		t.Fatal("dropped entry should be missing")
	}
}
