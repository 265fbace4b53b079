package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

type searchItemView struct {
	Ordinal      int      `json:"ordinal"`
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Kind         string   `json:"kind"`
	Year         string   `json:"year"`
	Availability []string `json:"availability"`
}

type resourceView struct {
	Ordinal   int    `json:"ordinal"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	SizeLabel string `json:"size"`
	Locator   string `json:"locator"`
}

type selectView struct {
	Title     string         `json:"title"`
	Type      string         `json:"type"`
	Resources []resourceView `json:"resources"`
}

type transferView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Backend     string `json:"backend"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
	Title       string `json:"title"`
	SizeLabel   string `json:"size"`
	Destination string `json:"destination"`
	Degraded    bool   `json:"degraded"`
}

type statusView struct {
	Searches           int64 `json:"searches"`
	Transfers          int64 `json:"transfers"`
	TransfersSucceeded int64 `json:"transfers_succeeded"`
	TransfersFailed    int64 `json:"transfers_failed"`
	CloudDrive         bool  `json:"clouddrive"`
	Drive115           bool  `json:"drive115"`
}

type offlineTaskView struct {
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Percent  float64 `json:"percent"`
	Finished bool    `json:"finished"`
}

func (c *apiClient) search(owner, query string) ([]searchItemView, error) {
	var out struct {
		Items []searchItemView `json:"items"`
	}
	err := c.post("/api/search", map[string]any{"owner": owner, "query": query}, &out)
	return out.Items, err
}

func (c *apiClient) pick(owner string, ordinal int, resourceType string) (selectView, error) {
	payload := map[string]any{"owner": owner, "ordinal": ordinal}
	if resourceType != "" {
		payload["type"] = resourceType
	}
	var out selectView
	err := c.post("/api/select", payload, &out)
	return out, err
}

func (c *apiClient) transfer(owner string, ordinal int) (transferView, error) {
	var out transferView
	err := c.post("/api/transfer", map[string]any{"owner": owner, "ordinal": ordinal}, &out)
	return out, err
}

func (c *apiClient) status() (statusView, error) {
	var out statusView
	err := c.get("/api/status", &out)
	return out, err
}

func (c *apiClient) offline(refresh bool) ([]offlineTaskView, error) {
	path := "/api/offline"
	if refresh {
		path += "?refresh=1"
	}
	var out struct {
		Tasks []offlineTaskView `json:"tasks"`
	}
	err := c.get(path, &out)
	return out.Tasks, err
}

func (c *apiClient) post(path string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}
