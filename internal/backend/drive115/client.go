// Package drive115 implements the share-save backend against the 115 drive
// web API using cookie authentication.
package drive115

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ferry/internal/backend"
	"ferry/internal/folder"
	"ferry/internal/logging"
)

const (
	defaultBaseURL = "https://webapi.115.com"
	rootFolderID   = "0"
	snapshotLimit  = 100

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// requiredCookies are the session cookies the web API authenticates with.
var requiredCookies = []string{"UID", "CID", "SEID"}

// HTTPDoer abstracts the HTTP client for tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the 115 web API. It saves shares and doubles as the
// folder.Service backing destination path resolution.
type Client struct {
	baseURL    string
	cookies    string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithBaseURL overrides the API origin (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// New builds a client from a browser cookie string. The string must carry
// the UID, CID, and SEID session cookies.
func New(cookies string, logger *slog.Logger, opts ...Option) (*Client, error) {
	cookies = strings.TrimSpace(cookies)
	for _, name := range requiredCookies {
		if !strings.Contains(cookies, name+"=") {
			return nil, fmt.Errorf("drive115: cookie string is missing %s", name)
		}
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		cookies:    cookies,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewComponentLogger(logger, "drive115"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ShareFile is one top-level entry of a shared link.
type ShareFile struct {
	ID    string
	Name  string
	Size  int64
	IsDir bool
}

// Snapshot is the listing of a share before it is received.
type Snapshot struct {
	Title string
	Count int
	Files []ShareFile
}

// apiEnvelope is the common response wrapper of the 115 web API.
type apiEnvelope struct {
	State   bool            `json:"state"`
	Error   string          `json:"error"`
	Errno   int64           `json:"errno"`
	ErrNo   int64           `json:"errNo"`
	Message string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
	CID     json.RawMessage `json:"cid"`
}

func (e apiEnvelope) code() int64 {
	if e.Errno != 0 {
		return e.Errno
	}
	return e.ErrNo
}

func (e apiEnvelope) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// VerifyLogin checks that the cookie session is still accepted.
func (c *Client) VerifyLogin(ctx context.Context) error {
	_, err := c.ListChildren(ctx, rootFolderID)
	return err
}

// Snapshot lists the top level of a share without receiving it.
func (c *Client) Snapshot(ctx context.Context, shareCode, receiveCode string) (Snapshot, error) {
	query := url.Values{
		"share_code":   {shareCode},
		"receive_code": {receiveCode},
		"offset":       {"0"},
		"limit":        {fmt.Sprint(snapshotLimit)},
	}
	env, err := c.get(ctx, "/share/snap", query)
	if err != nil {
		return Snapshot{}, err
	}
	if !env.State {
		return Snapshot{}, classifyShareError(env)
	}
	var data struct {
		Count     int `json:"count"`
		ShareInfo struct {
			Title string `json:"share_title"`
		} `json:"shareinfo"`
		List []listItem `json:"list"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return Snapshot{}, fmt.Errorf("drive115: decode share snapshot: %w", err)
	}
	snap := Snapshot{Title: data.ShareInfo.Title, Count: data.Count}
	for _, item := range data.List {
		snap.Files = append(snap.Files, item.shareFile())
	}
	return snap, nil
}

// SaveShare receives every top-level entry of the share into targetCID. A
// share whose listing is empty is treated as expired and nothing is
// received for it.
func (c *Client) SaveShare(ctx context.Context, shareCode, receiveCode, targetCID string) (backend.Ack, error) {
	snap, err := c.Snapshot(ctx, shareCode, receiveCode)
	if err != nil {
		return backend.Ack{}, err
	}
	if len(snap.Files) == 0 {
		return backend.Ack{Message: "share holds no files"},
			fmt.Errorf("%w: share holds no files", backend.ErrLinkExpired)
	}

	ids := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		ids = append(ids, f.ID)
	}
	form := url.Values{
		"share_code":   {shareCode},
		"receive_code": {receiveCode},
		"file_id":      {strings.Join(ids, ",")},
		"cid":          {targetCID},
	}
	env, err := c.post(ctx, "/share/receive", form)
	if err != nil {
		return backend.Ack{}, err
	}
	if !env.State {
		err := classifyShareError(env)
		return backend.Ack{Message: env.message()}, err
	}
	c.logger.Info("share saved",
		logging.String("share_code", shareCode),
		logging.String("target", targetCID),
		logging.Int("files", len(ids)))
	return backend.Ack{OK: true, Message: fmt.Sprintf("saved %d entries", len(ids))}, nil
}

// RootID implements folder.Service.
func (c *Client) RootID() string { return rootFolderID }

// ListChildren implements folder.Service over the file listing endpoint.
func (c *Client) ListChildren(ctx context.Context, folderID string) ([]folder.Entry, error) {
	query := url.Values{
		"cid":      {folderID},
		"offset":   {"0"},
		"limit":    {"1150"},
		"show_dir": {"1"},
	}
	env, err := c.get(ctx, "/files", query)
	if err != nil {
		return nil, err
	}
	if !env.State {
		return nil, classifyShareError(env)
	}
	var items []listItem
	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, fmt.Errorf("drive115: decode folder listing: %w", err)
	}
	entries := make([]folder.Entry, 0, len(items))
	for _, item := range items {
		f := item.shareFile()
		entries = append(entries, folder.Entry{ID: f.ID, Name: f.Name, IsDir: f.IsDir})
	}
	return entries, nil
}

// MakeFolder implements folder.Service. A name collision is reported as
// folder.ErrAlreadyExists so the resolver can reuse the existing folder.
func (c *Client) MakeFolder(ctx context.Context, parentID, name string) (string, error) {
	form := url.Values{
		"pid":   {parentID},
		"cname": {name},
	}
	env, err := c.post(ctx, "/files/add", form)
	if err != nil {
		return "", err
	}
	if !env.State {
		msg := env.message()
		if strings.Contains(msg, "已存在") || strings.Contains(strings.ToLower(msg), "exist") {
			return "", folder.ErrAlreadyExists
		}
		return "", classifyShareError(env)
	}
	cid := decodeID(env.CID)
	if cid == "" {
		return "", fmt.Errorf("drive115: create folder response carried no cid")
	}
	return cid, nil
}

// decodeID tolerates the API serialising identifiers as strings or numbers.
func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// listItem is one entry of a share snapshot or folder listing. Directories
// carry cid and no fid; files carry fid.
type listItem struct {
	FID  string `json:"fid"`
	CID  string `json:"cid"`
	Name string `json:"n"`
	Size int64  `json:"s"`
}

func (i listItem) shareFile() ShareFile {
	if i.FID == "" {
		return ShareFile{ID: i.CID, Name: i.Name, Size: i.Size, IsDir: true}
	}
	return ShareFile{ID: i.FID, Name: i.Name, Size: i.Size}
}

// classifyShareError maps a failed envelope onto the shared error taxonomy.
// The web API reports failures through Chinese prose more consistently than
// through its numeric codes, so the text is checked alongside the codes.
func classifyShareError(env apiEnvelope) error {
	msg := env.message()
	lower := strings.ToLower(msg)
	switch {
	case env.code() == 990001 || strings.Contains(msg, "登录") || strings.Contains(lower, "login"):
		return fmt.Errorf("%w: %s", backend.ErrAuthExpired, msg)
	case strings.Contains(msg, "密码") || strings.Contains(lower, "password"):
		return fmt.Errorf("%w: %s", backend.ErrWrongPassword, msg)
	case strings.Contains(msg, "过期") || strings.Contains(msg, "取消") || strings.Contains(msg, "不存在") || strings.Contains(lower, "expire"):
		return fmt.Errorf("%w: %s", backend.ErrLinkExpired, msg)
	case strings.Contains(msg, "上限") || strings.Contains(msg, "限制") || strings.Contains(lower, "limit"):
		return fmt.Errorf("%w: %s", backend.ErrReceiverLimit, msg)
	default:
		if msg == "" {
			msg = fmt.Sprintf("errno %d", env.code())
		}
		return fmt.Errorf("%w: %s", backend.ErrTaskRejected, msg)
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return apiEnvelope{}, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return apiEnvelope{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (apiEnvelope, error) {
	req.Header.Set("Cookie", c.cookies)
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("%w: %v", backend.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("%w: %v", backend.ErrBackendUnreachable, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return apiEnvelope{}, fmt.Errorf("%w: %s returned status %d", backend.ErrBackendUnreachable, req.URL.Path, resp.StatusCode)
	}
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apiEnvelope{}, fmt.Errorf("drive115: decode response from %s: %w", req.URL.Path, err)
	}
	return env, nil
}

var _ folder.Service = (*Client)(nil)
