package venue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BTreeMap/Kelp/internal/config"
)

const twoBusinesses = `{"businesses":[
	{"id":"b1","name":"Deep Ellum Bar","rating":4.6,"price":"$$","review_count":320,
	 "categories":[{"alias":"bars","title":"Bars"}],"url":"https://yelp.example/b1","image_url":"https://img.example/b1.jpg"},
	{"id":"b2","name":"Lone Star Lounge","rating":4.1,"categories":[]}
]}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...YelpOption) *YelpClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]YelpOption{WithAPIKey("test-key"), WithBaseURL(srv.URL), WithCacheTTL(0)}, opts...)
	c, err := NewYelpClient(opts...)
	if err != nil {
		t.Fatalf("NewYelpClient: %v", err)
	}
	return c
}

func TestYelpClient_SearchDecodesBusinesses(t *testing.T) {
	var got url.Values
	var auth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/businesses/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		got = r.URL.Query()
		auth = r.Header.Get("Authorization")
		w.Write([]byte(twoBusinesses))
	})

	list := c.Search(context.Background(), Query{Location: "Dallas, TX", Category: "bars", Term: "cocktails", PriceFilter: "1,2"})
	if len(list) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(list))
	}
	if list[0].ID != "b1" || list[0].ReviewCount != 320 || list[0].PrimaryCategory() != "Bars" {
		t.Errorf("unexpected first candidate: %+v", list[0])
	}
	if list[1].PrimaryCategory() != "" || list[1].Price != "" {
		t.Errorf("expected empty optional fields, got %+v", list[1])
	}
	if auth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", auth)
	}
	want := map[string]string{
		"location":   "Dallas, TX",
		"categories": "bars",
		"term":       "cocktails",
		"price":      "1,2",
		"limit":      "10",
		"sort_by":    "rating",
	}
	for k, v := range want {
		if got.Get(k) != v {
			t.Errorf("param %s = %q, want %q", k, got.Get(k), v)
		}
	}
}

func TestYelpClient_AttractionsSkipPriceFilter(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(`{"businesses":[]}`))
	})
	for _, cat := range []string{"landmarks", "museums", "parks", "entertainment"} {
		c.Search(context.Background(), Query{Location: "Austin", Category: cat, PriceFilter: "1,2,3"})
		if got.Has("price") {
			t.Errorf("category %s should not carry a price filter", cat)
		}
	}
	c.Search(context.Background(), Query{Location: "Austin", Category: "restaurants", PriceFilter: "1,2,3"})
	if got.Get("price") != "1,2,3" {
		t.Errorf("restaurants should carry the price filter, got %q", got.Get("price"))
	}
}

func TestYelpClient_Coordinates(t *testing.T) {
	var got url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte(twoBusinesses))
	})
	c.Search(context.Background(), Query{Location: "32.7767, -96.797", Category: "bars"})
	if got.Get("latitude") != "32.7767" || got.Get("longitude") != "-96.797" {
		t.Errorf("expected coordinates, got %v", got)
	}
	if got.Has("location") {
		t.Error("location should not be sent with coordinates")
	}
}

func TestYelpClient_FailuresYieldEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{not json")) }},
		{"empty", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"businesses":[]}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			if list := c.Search(context.Background(), Query{Location: "Dallas", Category: "bars"}); len(list) != 0 {
				t.Errorf("expected no candidates, got %d", len(list))
			}
		})
	}
}

func TestYelpClient_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Write([]byte(twoBusinesses))
	}, WithTimeout(50*time.Millisecond))
	if list := c.Search(context.Background(), Query{Location: "Dallas", Category: "bars"}); len(list) != 0 {
		t.Errorf("expected timeout to yield no candidates, got %d", len(list))
	}
}

func TestYelpClient_CachesIdenticalSearches(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(twoBusinesses))
	}, WithCacheTTL(time.Minute))

	q := Query{Location: "Dallas", Category: "bars", PriceFilter: "1,2"}
	c.Search(context.Background(), q)
	list := c.Search(context.Background(), q)
	if len(list) != 2 {
		t.Fatalf("expected cached candidates, got %d", len(list))
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", calls.Load())
	}
	c.Search(context.Background(), Query{Location: "Dallas", Category: "restaurants", PriceFilter: "1,2"})
	if calls.Load() != 2 {
		t.Errorf("different query should reach the provider, got %d calls", calls.Load())
	}
}

func TestNewYelpClient_MissingKey(t *testing.T) {
	_, err := NewYelpClient()
	var missing *config.MissingCredentialError
	if !errors.As(err, &missing) || missing.Name != config.EnvYelpKey {
		t.Fatalf("expected missing YELP_API_KEY error, got %v", err)
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"32.7767,-96.7970", true},
		{" 40 , -73.9 ", true},
		{"Dallas, TX", false},
		{"91,0", false},
		{"0,181", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, _, ok := ParseCoordinates(tt.in); ok != tt.ok {
			t.Errorf("ParseCoordinates(%q) ok = %v, want %v", tt.in, ok, tt.ok)
		}
	}
}
