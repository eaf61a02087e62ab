// Package search holds the Meilisearch settings the search page needs and
// the document count check used to decide whether indexing must run first.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingConfig is returned when the search host or key is not set. The
// search page cannot work without them, so callers must not ignore it.
var ErrMissingConfig = errors.New("missing Meilisearch host or API key, check your application environment variables")

// Config is loaded from the environment.
type Config struct {
	// Env: MEILISEARCH_URL
	Host string `envconfig:"MEILISEARCH_URL"`
	// Env: MEILISEARCH_SEARCH_KEY
	SearchKey string `envconfig:"MEILISEARCH_SEARCH_KEY"`
	// Env: MEILISEARCH_ADMIN_KEY (optional, used for /stats when set)
	AdminKey string `envconfig:"MEILISEARCH_ADMIN_KEY"`
}

// LoadConfig reads the search settings and fails if host or search key is
// missing.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to load search config from environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that host and search key are set.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" || strings.TrimSpace(c.SearchKey) == "" {
		return ErrMissingConfig
	}
	return nil
}

// Client talks to the Meilisearch HTTP API.
type Client struct {
	cfg  *Config
	http *http.Client
}

// NewClient returns a client for cfg. A nil httpClient uses http.DefaultClient.
func NewClient(cfg *Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

type statsResponse struct {
	Indexes map[string]struct {
		NumberOfDocuments int64 `json:"numberOfDocuments"`
	} `json:"indexes"`
}

// Stats returns the number of documents across all indexes.
func (c *Client) Stats(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.Host, "/")+"/stats", nil)
	if err != nil {
		return 0, fmt.Errorf("error building stats request: %w", err)
	}

	key := c.cfg.AdminKey
	if key == "" {
		key = c.cfg.SearchKey
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error fetching search stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("search stats returned %s", resp.Status)
	}

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, fmt.Errorf("error decoding search stats: %w", err)
	}

	var total int64
	for _, idx := range stats.Indexes {
		total += idx.NumberOfDocuments
	}
	return total, nil
}
