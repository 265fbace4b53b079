package nullbr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ferry/internal/media"
)

// Searcher defines the provider operations used by the resolution flow.
type Searcher interface {
	Search(ctx context.Context, query string) ([]media.SearchItem, error)
	Resources(ctx context.Context, item media.SearchItem, t media.ResourceType) ([]media.Resource, error)
}

// Client calls the Nullbr API.
type Client struct {
	appID      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Searcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a Nullbr client. The API key gates the resource endpoints;
// search works with the app id alone.
func New(appID, apiKey, baseURL string, opts ...Option) (*Client, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.New("nullbr app id required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("nullbr base url required")
	}
	client := &Client{
		appID:      appID,
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// flag tolerates the provider's mixed bool/number availability markers.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true":
		*f = true
	case "false", "null", `""`, "0":
		*f = false
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("availability flag: %w", err)
		}
		*f = n.String() != "0"
	}
	return nil
}

type searchItemPayload struct {
	TMDBID       int64  `json:"tmdbid"`
	Title        string `json:"title"`
	MediaType    string `json:"media_type"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
	ShareFlag    flag   `json:"115-flg"`
	MagnetFlag   flag   `json:"magnet-flg"`
	ED2KFlag     flag   `json:"ed2k-flg"`
	StreamFlag   flag   `json:"video-flg"`
}

type searchResponse struct {
	Items []searchItemPayload `json:"items"`
}

// Search queries the provider for media matching the keyword.
func (c *Client) Search(ctx context.Context, query string) ([]media.SearchItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse nullbr url: %w", err)
	}
	params := url.Values{}
	params.Set("query", query)
	endpoint.RawQuery = params.Encode()

	var payload searchResponse
	if err := c.get(ctx, endpoint.String(), &payload); err != nil {
		return nil, err
	}

	items := make([]media.SearchItem, 0, len(payload.Items))
	for _, raw := range payload.Items {
		items = append(items, media.SearchItem{
			ID:    raw.TMDBID,
			Title: raw.Title,
			Kind:  media.ParseKind(raw.MediaType),
			Year:  yearOf(raw.ReleaseDate, raw.FirstAirDate),
			Availability: media.Availability{
				Share:  bool(raw.ShareFlag),
				Magnet: bool(raw.MagnetFlag),
				ED2K:   bool(raw.ED2KFlag),
				Stream: bool(raw.StreamFlag),
			},
		})
	}
	return items, nil
}

type resourcePayload struct {
	Title     string `json:"title"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	ShareLink string `json:"share_link"`
	Magnet    string `json:"magnet"`
	ED2K      string `json:"ed2k"`
	URL       string `json:"url"`
	Link      string `json:"link"`
}

func (p resourcePayload) displayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

func (p resourcePayload) locator(t media.ResourceType) string {
	switch t {
	case media.ResourceShare:
		return p.ShareLink
	case media.ResourceMagnet:
		return p.Magnet
	case media.ResourceED2K:
		if p.ED2K != "" {
			return p.ED2K
		}
		return firstNonEmpty(p.URL, p.Link)
	default:
		return firstNonEmpty(p.URL, p.Link)
	}
}

// Resources fetches the provider's resource list of one type for an item.
// The ordinal of each returned resource is its 1-based list position.
func (c *Client) Resources(ctx context.Context, item media.SearchItem, t media.ResourceType) ([]media.Resource, error) {
	if c.apiKey == "" {
		return nil, errors.New("nullbr api key required for resource endpoints")
	}

	section, err := providerSection(t)
	if err != nil {
		return nil, err
	}
	var kindPath string
	switch item.Kind {
	case media.KindMovie:
		kindPath = "movie"
	case media.KindSeries:
		kindPath = "tv"
	default:
		return nil, fmt.Errorf("unsupported media kind %q", item.Kind)
	}

	endpoint := fmt.Sprintf("%s/%s/%d/%s", c.baseURL, kindPath, item.ID, section)

	// The provider keys the resource array by its own section name.
	var payload map[string]json.RawMessage
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	var raw []resourcePayload
	if data, ok := payload[section]; ok {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode %s resources: %w", section, err)
		}
	}

	resources := make([]media.Resource, 0, len(raw))
	for _, entry := range raw {
		locator := entry.locator(t)
		if locator == "" {
			continue
		}
		resources = append(resources, media.Resource{
			Type:      t,
			Title:     entry.displayTitle(),
			SizeLabel: entry.Size,
			Locator:   locator,
			Ordinal:   len(resources) + 1,
		})
	}
	return resources, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-APP-ID", c.appID)
	if c.apiKey != "" {
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nullbr returned %d (latency=%v)", resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode nullbr response: %w", err)
	}
	return nil
}

// providerSection maps a resource type onto the provider's path segment and
// response key.
func providerSection(t media.ResourceType) (string, error) {
	switch t {
	case media.ResourceShare:
		return "115", nil
	case media.ResourceMagnet:
		return "magnet", nil
	case media.ResourceED2K:
		return "ed2k", nil
	case media.ResourceStream:
		return "video", nil
	default:
		return "", fmt.Errorf("unknown resource type %v", t)
	}
}

func yearOf(dates ...string) string {
	for _, date := range dates {
		date = strings.TrimSpace(date)
		if len(date) >= 4 {
			return date[:4]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
