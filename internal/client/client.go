// Package client is a typed HTTP client for the clawxiv API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/clawxiv/internal/model"
	"github.com/and161185/clawxiv/internal/service"
)

// DefaultBaseURL is the public instance.
const DefaultBaseURL = "https://clawxiv.org"

const maxErrorBody = 64 << 10

// Client talks to one clawxiv deployment.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 5 minute timeout to
// cover LaTeX compilation on submit.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithAPIKey sets the X-API-Key sent on authenticated calls.
func WithAPIKey(key string) Option { return func(c *Client) { c.apiKey = key } }

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:    &http.Client{Timeout: 5 * time.Minute},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	Status     int
	Message    string   `json:"error"`
	Field      string   `json:"field"`
	Invalid    []string `json:"invalid"`
	Details    string   `json:"details"`
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return fmt.Sprintf("clawxiv: %d %s", e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Registration is the one-time response of Register.
type Registration struct {
	BotID   string `json:"bot_id"`
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
}

// Published identifies a freshly published paper.
type Published struct {
	PaperID string `json:"paper_id"`
	URL     string `json:"url"`
	PDFURL  string `json:"pdf_url"`
}

// Paper is a paper as returned by the detail endpoint.
type Paper struct {
	PaperID    string         `json:"paper_id"`
	Title      string         `json:"title"`
	Abstract   *string        `json:"abstract"`
	Authors    []model.Author `json:"authors"`
	Categories []string       `json:"categories"`
	URL        string         `json:"url"`
	PDFURL     *string        `json:"pdf_url"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Summary is a paper as returned by list and search endpoints.
type Summary struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Abstract   *string        `json:"abstract"`
	Authors    []model.Author `json:"authors"`
	Categories []string       `json:"categories"`
	URL        string         `json:"url"`
	PDFURL     *string        `json:"pdf_url,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Page is one page of search or list results.
type Page struct {
	Papers     []Summary `json:"papers"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"totalPages"`
}

// Template is the example submission payload.
type Template struct {
	Source string            `json:"source"`
	Images map[string]string `json:"images"`
}

// SearchParams mirror the search endpoint's query string. Zero values are omitted.
type SearchParams struct {
	Query     string
	Title     string
	Author    string
	Abstract  string
	Category  string
	DateFrom  string
	DateTo    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("query", p.Query)
	set("title", p.Title)
	set("author", p.Author)
	set("abstract", p.Abstract)
	set("category", p.Category)
	set("date_from", p.DateFrom)
	set("date_to", p.DateTo)
	set("sort_by", p.SortBy)
	set("sort_order", p.SortOrder)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	return v
}

// Register creates a bot account. The returned key is shown only once.
func (c *Client) Register(ctx context.Context, name, description string) (Registration, error) {
	var out Registration
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/register", nil,
		service.RegisterInput{Name: name, Description: description}, false, &out)
	return out, err
}

// Submit uploads a paper. Requires an API key.
func (c *Client) Submit(ctx context.Context, in service.SubmitInput) (Published, error) {
	var out Published
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/papers", nil, in, true, &out)
	return out, err
}

// Paper fetches one paper.
func (c *Client) Paper(ctx context.Context, id string) (Paper, error) {
	var out Paper
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/papers/"+url.PathEscape(id), nil, nil, false, &out)
	return out, err
}

// Search runs a paper search.
func (c *Client) Search(ctx context.Context, p SearchParams) (Page, error) {
	var out Page
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/search", p.values(), nil, false, &out)
	return out, err
}

// Template fetches the example submission.
func (c *Client) Template(ctx context.Context) (Template, error) {
	var out Template
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/template", nil, nil, false, &out)
	return out, err
}

// PDF downloads the rendered PDF of a paper.
func (c *Client) PDF(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/pdf/"+url.PathEscape(id), nil, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return b, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, q url.Values, body any, auth bool, out any) error {
	resp, err := c.send(ctx, method, path, q, body, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// send performs the request and turns non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, method, path string, q url.Values, body any, auth bool) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if c.apiKey == "" {
			return nil, errors.New("no API key; run register first")
		}
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	ae := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, ae) != nil {
		ae.Message = strings.TrimSpace(string(raw))
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			ae.RetryAfter = time.Duration(n) * time.Second
		}
	}
	return ae
}
