package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/Kelp/internal/config"
	"github.com/BTreeMap/Kelp/internal/metrics"
	"github.com/BTreeMap/Kelp/internal/taxonomy"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	DefaultYelpBaseURL = "https://api.yelp.com/v3"
	DefaultResultLimit = 10
	DefaultTimeout     = 8 * time.Second
	DefaultCacheTTL    = 10 * time.Minute

	// Yelp Fusion allows roughly 5 requests per second per key.
	defaultRatePerSecond = 5
	defaultBurst         = 5
)

var coordinatePattern = regexp.MustCompile(`^\s*(-?\d{1,3}(?:\.\d+)?)\s*,\s*(-?\d{1,3}(?:\.\d+)?)\s*$`)

// YelpClient searches the Yelp Fusion business search endpoint.
type YelpClient struct {
	apiKey   string
	baseURL  string
	limit    int
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	cache    *cache.Cache
	taxonomy *taxonomy.Registry
}

// YelpOpts holds configuration options for the Yelp client.
type YelpOpts struct {
	APIKey     string
	BaseURL    string
	Limit      int
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Taxonomy   *taxonomy.Registry
}

// YelpOption defines a configuration option for the Yelp client.
type YelpOption func(*YelpOpts)

func WithAPIKey(key string) YelpOption {
	return func(o *YelpOpts) { o.APIKey = key }
}

func WithBaseURL(u string) YelpOption {
	return func(o *YelpOpts) { o.BaseURL = u }
}

func WithLimit(n int) YelpOption {
	return func(o *YelpOpts) { o.Limit = n }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) YelpOption {
	return func(o *YelpOpts) { o.Timeout = d }
}

// WithCacheTTL sets how long identical searches are served from memory. Zero disables caching.
func WithCacheTTL(d time.Duration) YelpOption {
	return func(o *YelpOpts) { o.CacheTTL = d }
}

func WithHTTPClient(c *http.Client) YelpOption {
	return func(o *YelpOpts) { o.HTTPClient = c }
}

func WithLimiter(l *rate.Limiter) YelpOption {
	return func(o *YelpOpts) { o.Limiter = l }
}

// WithTaxonomy supplies the table that decides which categories skip the price filter.
func WithTaxonomy(r *taxonomy.Registry) YelpOption {
	return func(o *YelpOpts) { o.Taxonomy = r }
}

// NewYelpClient builds a client. A missing API key yields *config.MissingCredentialError.
func NewYelpClient(opts ...YelpOption) (*YelpClient, error) {
	o := YelpOpts{
		BaseURL:  DefaultYelpBaseURL,
		Limit:    DefaultResultLimit,
		Timeout:  DefaultTimeout,
		CacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}

	slog.Debug("venue.NewYelpClient: creating client", "base_url", o.BaseURL, "limit", o.Limit,
		"timeout", o.Timeout, "cache_ttl", o.CacheTTL, "api_key_SET", o.APIKey != "")

	if o.APIKey == "" {
		return nil, &config.MissingCredentialError{Name: config.EnvYelpKey, Service: "Yelp API"}
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Limiter == nil {
		o.Limiter = rate.NewLimiter(rate.Limit(defaultRatePerSecond), defaultBurst)
	}
	if o.Taxonomy == nil {
		o.Taxonomy = taxonomy.NewStaticRegistry(taxonomy.Default())
	}

	c := &YelpClient{
		apiKey:   o.APIKey,
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		limit:    o.Limit,
		timeout:  o.Timeout,
		http:     o.HTTPClient,
		limiter:  o.Limiter,
		taxonomy: o.Taxonomy,
	}
	if o.CacheTTL > 0 {
		c.cache = cache.New(o.CacheTTL, 2*o.CacheTTL)
	}
	return c, nil
}

type searchResponse struct {
	Businesses []Candidate `json:"businesses"`
}

// Search runs one business search. Every failure is logged and reported as no candidates.
func (c *YelpClient) Search(ctx context.Context, q Query) []Candidate {
	params := c.buildParams(q)
	key := params.Encode()

	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			if list, ok := cached.([]Candidate); ok {
				metrics.VenueSearches.WithLabelValues("cached").Inc()
				slog.Debug("YelpClient.Search: cache hit", "category", q.Category, "count", len(list))
				return list
			}
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		metrics.VenueSearches.WithLabelValues("error").Inc()
		slog.Warn("YelpClient.Search: rate limiter wait aborted", "category", q.Category, "error", err)
		return nil
	}

	start := time.Now()
	list, err := c.do(ctx, params)
	metrics.VenueSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VenueSearches.WithLabelValues("error").Inc()
		slog.Error("YelpClient.Search: search failed", "category", q.Category, "term", q.Term, "error", err)
		return nil
	}
	if len(list) == 0 {
		metrics.VenueSearches.WithLabelValues("empty").Inc()
		slog.Info("YelpClient.Search: no businesses found", "category", q.Category, "term", q.Term)
		return nil
	}

	metrics.VenueSearches.WithLabelValues("ok").Inc()
	if c.cache != nil {
		c.cache.Set(key, list, cache.DefaultExpiration)
	}
	slog.Debug("YelpClient.Search: businesses found", "category", q.Category, "count", len(list))
	return list
}

func (c *YelpClient) buildParams(q Query) url.Values {
	params := url.Values{}
	if lat, lon, ok := ParseCoordinates(q.Location); ok {
		params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	} else {
		params.Set("location", strings.TrimSpace(q.Location))
	}
	params.Set("categories", q.Category)
	params.Set("limit", strconv.Itoa(c.limit))
	params.Set("sort_by", "rating")
	if term := strings.TrimSpace(q.Term); term != "" {
		params.Set("term", term)
	}
	if q.PriceFilter != "" && !c.taxonomy.Current().IsAttraction(q.Category) {
		params.Set("price", q.PriceFilter)
	}
	return params
}

func (c *YelpClient) do(ctx context.Context, params url.Values) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/businesses/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Businesses, nil
}

// ParseCoordinates recognises "lat,lon" locations.
func ParseCoordinates(location string) (lat, lon float64, ok bool) {
	m := coordinatePattern.FindStringSubmatch(location)
	if m == nil {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
