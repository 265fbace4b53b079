package drive115_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ferry/internal/backend"
	"ferry/internal/backend/drive115"
	"ferry/internal/folder"
	"ferry/internal/logging"
)

const testCookies = "UID=1_a_b; CID=deadbeef; SEID=cafef00d"

func newClient(t *testing.T, baseURL string) *drive115.Client {
	t.Helper()
	client, err := drive115.New(testCookies, logging.NewNop(), drive115.WithBaseURL(baseURL), drive115.WithHTTPClient(http.DefaultClient))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestNewRejectsIncompleteCookies(t *testing.T) {
	if _, err := drive115.New("UID=1; CID=2", logging.NewNop()); err == nil {
		t.Fatal("expected missing SEID cookie to be rejected")
	}
}

func TestSaveShareReceivesSnapshotFiles(t *testing.T) {
	var receiveForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Cookie"); got != testCookies {
			t.Fatalf("unexpected cookie header %q", got)
		}
		switch r.URL.Path {
		case "/share/snap":
			if r.URL.Query().Get("share_code") != "swabc" || r.URL.Query().Get("receive_code") != "1234" {
				t.Fatalf("unexpected snapshot query: %s", r.URL.RawQuery)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"state": true,
				"data": map[string]any{
					"count":     2,
					"shareinfo": map[string]any{"share_title": "Some Show"},
					"list": []map[string]any{
						{"fid": "f100", "n": "episode1.mkv", "s": 700},
						{"cid": "d200", "n": "Season 2"},
					},
				},
			})
		case "/share/receive":
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse receive form: %v", err)
			}
			receiveForm = map[string]string{
				"share_code": r.PostFormValue("share_code"),
				"file_id":    r.PostFormValue("file_id"),
				"cid":        r.PostFormValue("cid"),
			}
			json.NewEncoder(w).Encode(map[string]any{"state": true})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	ack, err := client.SaveShare(context.Background(), "swabc", "1234", "77")
	if err != nil {
		t.Fatalf("SaveShare: %v", err)
	}
	if !ack.OK {
		t.Fatalf("expected ack.OK, got %+v", ack)
	}
	if receiveForm["share_code"] != "swabc" || receiveForm["file_id"] != "f100,d200" || receiveForm["cid"] != "77" {
		t.Fatalf("unexpected receive form: %v", receiveForm)
	}
}

func TestSaveShareTreatsEmptyShareAsExpired(t *testing.T) {
	var receiveCalled bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/share/snap":
			json.NewEncoder(w).Encode(map[string]any{
				"state": true,
				"data":  map[string]any{"count": 0, "list": []any{}},
			})
		case "/share/receive":
			receiveCalled = true
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, err := client.SaveShare(context.Background(), "swabc", "", "0")
	if !errors.Is(err, backend.ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired for an empty share, got %v", err)
	}
	if receiveCalled {
		t.Fatal("receive must not run for an empty share")
	}
}

func TestShareErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]any
		expected error
	}{
		{"expired link", map[string]any{"state": false, "error": "分享链接已过期"}, backend.ErrLinkExpired},
		{"cancelled link", map[string]any{"state": false, "error": "分享已取消"}, backend.ErrLinkExpired},
		{"wrong password", map[string]any{"state": false, "error": "访问密码错误"}, backend.ErrWrongPassword},
		{"receiver limit", map[string]any{"state": false, "error": "今日转存已达上限"}, backend.ErrReceiverLimit},
		{"cookie expired", map[string]any{"state": false, "errno": 990001, "error": "请重新登录"}, backend.ErrAuthExpired},
		{"anything else", map[string]any{"state": false, "error": "服务器开小差了"}, backend.ErrTaskRejected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.body)
			}))
			defer srv.Close()

			client := newClient(t, srv.URL)
			_, err := client.Snapshot(context.Background(), "swabc", "1234")
			if !errors.Is(err, tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestListChildrenSeparatesFoldersFromFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" || r.URL.Query().Get("cid") != "0" {
			t.Fatalf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"state": true,
			"data": []map[string]any{
				{"cid": "d1", "n": "Media"},
				{"fid": "f1", "n": "notes.txt", "s": 12},
			},
		})
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	entries, err := client.ListChildren(context.Background(), "0")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if !entries[0].IsDir || entries[0].ID != "d1" {
		t.Fatalf("expected first entry to be the folder, got %+v", entries[0])
	}
	if entries[1].IsDir {
		t.Fatalf("expected second entry to be a file, got %+v", entries[1])
	}
}

func TestMakeFolderReportsCollisionAsAlreadyExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"state": false, "error": "该目录名称已存在"})
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	_, err := client.MakeFolder(context.Background(), "0", "Media")
	if !errors.Is(err, folder.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMakeFolderToleratesNumericCID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("pid") != "0" || r.PostFormValue("cname") != "Inbox" {
			t.Fatalf("unexpected form: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]any{"state": true, "cid": 31415})
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	cid, err := client.MakeFolder(context.Background(), "0", "Inbox")
	if err != nil {
		t.Fatalf("MakeFolder: %v", err)
	}
	if cid != "31415" {
		t.Fatalf("expected numeric cid to be stringified, got %q", cid)
	}
}

func TestTransportFailureWrapsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newClient(t, srv.URL)
	err := client.VerifyLogin(context.Background())
	if !errors.Is(err, backend.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}
