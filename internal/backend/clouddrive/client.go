package clouddrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ferry/internal/backend"
	"ferry/internal/logging"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second

	loginPath = "UserSrv/GetToken"
)

// Logical operations and their candidate service paths, newest first. The
// server answers an unknown path with 404 or 405, which makes call move on
// to the next candidate.
var servicePaths = map[string][]string{
	"AddSharedLink": {
		"CloudDriveFileSrv/AddSharedLink",
		"CloudDriveSrv/AddSharedLink",
	},
	"AddOfflineFiles": {
		"CloudDriveFileSrv/AddOfflineFiles",
		"CloudDriveSrv/AddOfflineFiles",
	},
	"ListOfflineFilesByPath": {
		"CloudDriveFileSrv/ListOfflineFilesByPath",
		"CloudDriveSrv/ListOfflineFilesByPath",
	},
	"GetSystemInfo": {
		"CloudDriveSystemSrv/GetSystemInfo",
		"CloudDriveSrv/GetSystemInfo",
	},
}

// HTTPDoer abstracts the HTTP client for tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a CloudDrive2 server and implements backend.OfflineQueuer.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	session    *Session
	logger     *slog.Logger

	connectTimeout time.Duration
	requestTimeout time.Duration
	sessionOpts    []SessionOption
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) { c.httpClient = client }
}

// WithSessionOptions forwards options to the embedded session.
func WithSessionOptions(opts ...SessionOption) Option {
	return func(c *Client) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithTimeouts overrides the connect and per-request budgets.
func WithTimeouts(connect, request time.Duration) Option {
	return func(c *Client) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if request > 0 {
			c.requestTimeout = request
		}
	}
}

// New builds a client for the server at baseURL using cred.
func New(baseURL string, cred Credential, logger *slog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("clouddrive: base url is required")
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		logger:         logging.NewComponentLogger(logger, "clouddrive"),
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: c.connectTimeout}).DialContext,
			},
		}
	}
	session, err := NewSession(cred, c.loginRequest, c.sessionOpts...)
	if err != nil {
		return nil, err
	}
	c.session = session
	return c, nil
}

// AddSharedLink saves a shared link into targetFolder on the remote drive.
func (c *Client) AddSharedLink(ctx context.Context, shareURL, password, targetFolder string) (backend.Ack, error) {
	payload := map[string]string{
		"sharedLinkUrl": shareURL,
		"password":      password,
		"toFolder":      targetFolder,
	}
	return c.submit(ctx, "AddSharedLink", payload)
}

// AddOfflineTask queues urls for offline download into targetFolder. urls may
// hold several links separated by newlines.
func (c *Client) AddOfflineTask(ctx context.Context, urls, targetFolder string) (backend.Ack, error) {
	payload := map[string]string{
		"urls":     urls,
		"toFolder": targetFolder,
	}
	return c.submit(ctx, "AddOfflineFiles", payload)
}

// ListOfflineStatus reports the offline tasks rooted at path.
func (c *Client) ListOfflineStatus(ctx context.Context, path string, forceRefresh bool) ([]backend.TaskStatus, error) {
	payload := map[string]any{
		"path":         path,
		"forceRefresh": forceRefresh,
	}
	body, err := c.call(ctx, "ListOfflineFilesByPath", payload)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		OfflineFiles []struct {
			Name     string  `json:"name"`
			Size     int64   `json:"size,string"`
			Percent  float64 `json:"percent"`
			Finished bool    `json:"isDone"`
		} `json:"offlineFiles"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("clouddrive: decode offline listing: %w", err)
		}
	}
	now := time.Now()
	tasks := make([]backend.TaskStatus, 0, len(parsed.OfflineFiles))
	for _, f := range parsed.OfflineFiles {
		tasks = append(tasks, backend.TaskStatus{
			Name:      f.Name,
			Size:      f.Size,
			Percent:   f.Percent,
			Finished:  f.Finished || f.Percent >= 100,
			UpdatedAt: now,
		})
	}
	return tasks, nil
}

// SystemInfo probes the server without touching task state.
func (c *Client) SystemInfo(ctx context.Context) (backend.SystemInfo, error) {
	body, err := c.call(ctx, "GetSystemInfo", struct{}{})
	if err != nil {
		return backend.SystemInfo{}, err
	}
	var parsed struct {
		IsLogin  bool   `json:"isLogin"`
		UserName string `json:"userName"`
		Version  string `json:"appVersion"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backend.SystemInfo{}, fmt.Errorf("clouddrive: decode system info: %w", err)
		}
	}
	return backend.SystemInfo{
		Ready:   parsed.IsLogin,
		User:    parsed.UserName,
		Version: parsed.Version,
	}, nil
}

// submit runs a task-producing operation and folds the result into an Ack.
// An empty or `{}` body on a 2xx response is the protobuf Empty message and
// counts as success; a decoded result must say success itself.
func (c *Client) submit(ctx context.Context, op string, payload any) (backend.Ack, error) {
	body, err := c.call(ctx, op, payload)
	if err != nil {
		return backend.Ack{}, err
	}
	if emptyResult(body) {
		return backend.Ack{OK: true}, nil
	}
	var parsed struct {
		Success      bool   `json:"success"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return backend.Ack{}, fmt.Errorf("clouddrive: decode %s result: %w", op, err)
	}
	if !parsed.Success {
		msg := parsed.ErrorMessage
		if msg == "" {
			msg = "server reported failure without a message"
		}
		return backend.Ack{Message: msg}, fmt.Errorf("%w: %s", backend.ErrTaskRejected, msg)
	}
	return backend.Ack{OK: true, Message: parsed.ErrorMessage}, nil
}

func emptyResult(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}"))
}

// call posts op's payload to the first candidate path that the server
// supports. A 401 triggers exactly one re-login and one retry of the same
// path; a second 401 means the fresh credential is also rejected.
func (c *Client) call(ctx context.Context, op string, payload any) ([]byte, error) {
	paths, ok := servicePaths[op]
	if !ok {
		return nil, fmt.Errorf("clouddrive: unknown operation %q", op)
	}
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, err
	}

	var lastStatus int
	for _, path := range paths {
		status, body, err := c.post(ctx, path, token, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrBackendUnreachable, err)
		}
		if status == http.StatusUnauthorized {
			token, err = c.session.Invalidate(ctx)
			if err != nil {
				return nil, err
			}
			status, body, err = c.post(ctx, path, token, payload)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", backend.ErrBackendUnreachable, err)
			}
			if status == http.StatusUnauthorized {
				return nil, fmt.Errorf("%w: %s still unauthorized after re-login", backend.ErrAuthExpired, path)
			}
		}
		if methodUnsupported(status) {
			c.logger.Debug("service path not supported, trying next candidate",
				logging.String("operation", op),
				logging.String("path", path),
				logging.Int("status", status))
			lastStatus = status
			continue
		}
		if status >= http.StatusMultipleChoices {
			return nil, fmt.Errorf("%w: %s returned status %d", backend.ErrBackendUnreachable, path, status)
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: no supported service path for %s (last status %d)", backend.ErrBackendUnreachable, op, lastStatus)
}

func methodUnsupported(status int) bool {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return true
	}
	return false
}

// loginRequest exchanges the password credential for a token. It posts
// without a bearer header; the session tracks the token's lifetime itself.
func (c *Client) loginRequest(ctx context.Context) (string, error) {
	payload := map[string]string{
		"userName": c.session.cred.Username,
		"password": c.session.cred.Password,
		"totpCode": "",
	}
	status, body, err := c.post(ctx, loginPath, "", payload)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", backend.ErrBackendUnreachable, err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", fmt.Errorf("%w: username or password rejected", backend.ErrAuthInvalid)
	}
	if status >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: login returned status %d", backend.ErrBackendUnreachable, status)
	}
	if emptyResult(body) {
		return "", nil
	}
	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("clouddrive: decode login response: %w", err)
	}
	return parsed.Token, nil
}

func (c *Client) post(ctx context.Context, path, token string, payload any) (int, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
