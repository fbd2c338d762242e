// Package cms fetches product taglines from the headless CMS.
package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/tagcache/source"
)

const name = "cms"

// Tagline is one product tagline record.
type Tagline struct {
	ID      string `json:"id"`
	Tagline string `json:"tagline"`
}

type Config struct {
	BaseURL    string // CMS_URL
	APIKey     string // CMS_API_KEY
	HTTPClient *http.Client
	Timeout    time.Duration // per request; default 5s
	// MaxBody bounds the response body; default 1 MiB.
	MaxBody int64
}

// Client is a source.Source[Tagline].
type Client struct {
	base    string
	key     string
	hc      *http.Client
	timeout time.Duration
	maxBody int64
}

var _ source.Source[Tagline] = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, &source.ConfigError{Source: name, Reason: "CMS_URL and CMS_API_KEY must be set"}
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &source.ConfigError{Source: name, Reason: fmt.Sprintf("invalid base url %q", cfg.BaseURL)}
	}
	c := &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.APIKey,
		hc:      cfg.HTTPClient,
		timeout: cfg.Timeout,
		maxBody: cfg.MaxBody,
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if c.maxBody <= 0 {
		c.maxBody = 1 << 20
	}
	return c, nil
}

// Get fetches the tagline of product id. A product without a tagline (404)
// yields an empty Tagline, which is cacheable.
func (c *Client) Get(ctx context.Context, id string) (Tagline, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.base + "/product/" + url.PathEscape(id) + "/tagline"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Tagline{}, &source.FetchError{Source: name, ID: id, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return Tagline{}, &source.FetchError{Source: name, ID: id, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, c.maxBody))
		_ = res.Body.Close()
	}()

	if res.StatusCode == http.StatusNotFound {
		return Tagline{ID: id}, nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Tagline{}, &source.FetchError{Source: name, ID: id, Status: res.StatusCode}
	}

	var body struct {
		ID      *string `json:"id"`
		Tagline *string `json:"tagline"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, c.maxBody)).Decode(&body); err != nil {
		return Tagline{}, &source.FetchError{Source: name, ID: id, Status: res.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	out := Tagline{ID: id}
	if body.ID != nil {
		out.ID = *body.ID
	}
	if body.Tagline != nil {
		out.Tagline = *body.Tagline
	}
	return out, nil
}
