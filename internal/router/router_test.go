package router_test

import (
	"context"
	"fmt"
	"testing"

	"ferry/internal/backend"
	"ferry/internal/logging"
	"ferry/internal/media"
	"ferry/internal/router"
	"ferry/internal/sharelink"
)

type fakeReceiver struct {
	calls    int
	code     string
	password string
	cid      string
	ack      backend.Ack
	err      error
}

func (f *fakeReceiver) SaveShare(ctx context.Context, shareCode, receiveCode, targetCID string) (backend.Ack, error) {
	f.calls++
	f.code, f.password, f.cid = shareCode, receiveCode, targetCID
	return f.ack, f.err
}

type fakeFolders struct {
	id       string
	degraded bool
	err      error
}

func (f *fakeFolders) Resolve(ctx context.Context, path string) (string, bool, error) {
	return f.id, f.degraded, f.err
}

type fakeQueue struct {
	shareCalls   int
	offlineCalls int
	urls         string
	folder       string
	ack          backend.Ack
	err          error
}

func (f *fakeQueue) AddSharedLink(ctx context.Context, shareURL, password, targetFolder string) (backend.Ack, error) {
	f.shareCalls++
	f.urls, f.folder = shareURL, targetFolder
	return f.ack, f.err
}

func (f *fakeQueue) AddOfflineTask(ctx context.Context, urls, targetFolder string) (backend.Ack, error) {
	f.offlineCalls++
	f.urls, f.folder = urls, targetFolder
	return f.ack, f.err
}

func (f *fakeQueue) ListOfflineStatus(ctx context.Context, path string, forceRefresh bool) ([]backend.TaskStatus, error) {
	return nil, nil
}

func (f *fakeQueue) SystemInfo(ctx context.Context) (backend.SystemInfo, error) {
	return backend.SystemInfo{}, nil
}

func newParser(t *testing.T) *sharelink.Parser {
	t.Helper()
	p, err := sharelink.NewParser([]string{"115.com"})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func newRouter(t *testing.T, opts router.Options) *router.Router {
	t.Helper()
	if opts.Parser == nil {
		opts.Parser = newParser(t)
	}
	return router.New(opts, logging.NewNop())
}

func shareResource() media.Resource {
	return media.Resource{
		Type:      media.ResourceShare,
		Title:     "Some Show S01",
		SizeLabel: "12.3GB",
		Locator:   "https://115.com/s/swabc123?password=qwer",
	}
}

func TestRouteSharePrefersDrive115(t *testing.T) {
	receiver := &fakeReceiver{ack: backend.Ack{OK: true}}
	queue := &fakeQueue{ack: backend.Ack{OK: true}}
	r := newRouter(t, router.Options{
		Receiver: receiver,
		Folders:  &fakeFolders{id: "42"},
		Queue:    queue,
		SavePath: "/115/Downloads",
	})

	out := r.Route(context.Background(), shareResource())
	if !out.Succeeded() {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Backend != router.BackendDrive115 {
		t.Fatalf("expected drive115 to win share routing, got %s", out.Backend)
	}
	if receiver.calls != 1 || queue.shareCalls != 0 {
		t.Fatalf("expected only the 115 receiver to be called, got %d and %d", receiver.calls, queue.shareCalls)
	}
	if receiver.code != "swabc123" || receiver.password != "qwer" || receiver.cid != "42" {
		t.Fatalf("unexpected receive arguments: %+v", receiver)
	}
	if out.ID == "" {
		t.Fatal("expected a transfer id")
	}
	if out.Title != "Some Show S01" || out.SizeLabel != "12.3GB" {
		t.Fatalf("expected resource echo, got %+v", out)
	}
}

func TestRouteShareFallsBackToCloudDrive(t *testing.T) {
	queue := &fakeQueue{ack: backend.Ack{OK: true}}
	r := newRouter(t, router.Options{Queue: queue, CloudPath: "/115/Downloads"})

	out := r.Route(context.Background(), shareResource())
	if !out.Succeeded() || out.Backend != router.BackendCloudDrive {
		t.Fatalf("expected clouddrive success, got %+v", out)
	}
	if queue.shareCalls != 1 || queue.urls != shareResource().Locator || queue.folder != "/115/Downloads" {
		t.Fatalf("unexpected clouddrive call: %+v", queue)
	}
}

func TestRouteShareWithoutBackendsIsUnavailable(t *testing.T) {
	r := newRouter(t, router.Options{})

	out := r.Route(context.Background(), shareResource())
	if out.Status != router.StatusUnavailable || out.Reason != "feature_unavailable" {
		t.Fatalf("expected feature_unavailable, got %+v", out)
	}
}

func TestRouteShareRejectsUnparseableLink(t *testing.T) {
	receiver := &fakeReceiver{}
	r := newRouter(t, router.Options{Receiver: receiver, Folders: &fakeFolders{id: "0"}})

	res := shareResource()
	res.Locator = "not a link at all"
	out := r.Route(context.Background(), res)
	if out.Status != router.StatusFailed || out.Reason != "not_parseable" {
		t.Fatalf("expected not_parseable failure, got %+v", out)
	}
	if receiver.calls != 0 {
		t.Fatal("unparseable link must not reach the backend")
	}
}

func TestRouteShareSurfacesDegradedFolder(t *testing.T) {
	receiver := &fakeReceiver{ack: backend.Ack{OK: true}}
	r := newRouter(t, router.Options{
		Receiver: receiver,
		Folders:  &fakeFolders{id: "0", degraded: true},
		SavePath: "/115/Downloads",
	})

	out := r.Route(context.Background(), shareResource())
	if !out.Succeeded() || !out.Degraded {
		t.Fatalf("expected degraded success, got %+v", out)
	}
	if out.Destination != "/" {
		t.Fatalf("expected root destination after degradation, got %q", out.Destination)
	}
	if receiver.cid != "0" {
		t.Fatalf("expected save into root folder, got %q", receiver.cid)
	}
}

func TestRouteOfflineTypes(t *testing.T) {
	tests := []struct {
		resourceType media.ResourceType
		locator      string
	}{
		{media.ResourceMagnet, "magnet:?xt=urn:btih:abcdef"},
		{media.ResourceED2K, "ed2k://|file|x.mkv|700|AABB|/"},
	}
	for _, tc := range tests {
		t.Run(tc.resourceType.String(), func(t *testing.T) {
			queue := &fakeQueue{ack: backend.Ack{OK: true}}
			r := newRouter(t, router.Options{Queue: queue, OfflinePath: "/115/Offline"})

			out := r.Route(context.Background(), media.Resource{Type: tc.resourceType, Locator: tc.locator})
			if !out.Succeeded() || out.Backend != router.BackendCloudDrive {
				t.Fatalf("expected clouddrive success, got %+v", out)
			}
			if queue.offlineCalls != 1 || queue.urls != tc.locator || queue.folder != "/115/Offline" {
				t.Fatalf("unexpected offline call: %+v", queue)
			}
		})
	}
}

func TestRouteOfflineWithoutQueueIsUnavailable(t *testing.T) {
	receiver := &fakeReceiver{}
	r := newRouter(t, router.Options{Receiver: receiver, Folders: &fakeFolders{id: "0"}})

	out := r.Route(context.Background(), media.Resource{Type: media.ResourceMagnet, Locator: "magnet:?xt=urn:btih:x"})
	if out.Status != router.StatusUnavailable || out.Reason != "feature_unavailable" {
		t.Fatalf("expected feature_unavailable, got %+v", out)
	}
	if receiver.calls != 0 {
		t.Fatal("offline routing must never hit the share receiver")
	}
}

func TestRouteStreamIsUnavailable(t *testing.T) {
	queue := &fakeQueue{ack: backend.Ack{OK: true}}
	r := newRouter(t, router.Options{Queue: queue, Receiver: &fakeReceiver{}, Folders: &fakeFolders{id: "0"}})

	out := r.Route(context.Background(), media.Resource{Type: media.ResourceStream, Locator: "https://cdn.example/x.m3u8"})
	if out.Status != router.StatusUnavailable {
		t.Fatalf("expected unavailable for stream resources, got %+v", out)
	}
	if queue.shareCalls != 0 && queue.offlineCalls != 0 {
		t.Fatal("stream resources must not reach any backend")
	}
}

func TestRouteClassifiesBackendFailures(t *testing.T) {
	tests := []struct {
		err    error
		reason string
	}{
		{fmt.Errorf("wrap: %w", backend.ErrLinkExpired), "link_expired"},
		{fmt.Errorf("wrap: %w", backend.ErrWrongPassword), "wrong_password"},
		{fmt.Errorf("wrap: %w", backend.ErrReceiverLimit), "receiver_limit"},
		{fmt.Errorf("wrap: %w", backend.ErrAuthExpired), "auth_expired"},
		{fmt.Errorf("wrap: %w", backend.ErrAuthInvalid), "auth_invalid"},
		{fmt.Errorf("wrap: %w", backend.ErrTaskRejected), "task_rejected"},
		{fmt.Errorf("wrap: %w", backend.ErrBackendUnreachable), "backend_unreachable"},
	}
	for _, tc := range tests {
		t.Run(tc.reason, func(t *testing.T) {
			receiver := &fakeReceiver{err: tc.err}
			r := newRouter(t, router.Options{Receiver: receiver, Folders: &fakeFolders{id: "42"}, SavePath: "/p"})

			out := r.Route(context.Background(), shareResource())
			if out.Status != router.StatusFailed || out.Reason != tc.reason {
				t.Fatalf("expected %s failure, got %+v", tc.reason, out)
			}
		})
	}
}
