package consolelogin

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CountryFetcher loads the supported-country catalog.
type CountryFetcher func(ctx context.Context) ([]CountryDetail, error)

type countryCall struct {
	done      chan struct{}
	countries []CountryDetail
	err       error
}

// CountryCache memoizes the country catalog fetch. At most one fetch is in
// flight at a time and a successful result is kept for the cache's lifetime;
// a failed fetch leaves the cache empty so the next Get retries.
//
// CountryCache is safe for concurrent use. It is owned by the Engine and
// shared by every Flow the engine creates.
type CountryCache struct {
	fetch CountryFetcher
	onErr func(error)
	onHit func()

	mu        sync.Mutex
	call      *countryCall
	countries []CountryDetail
	loaded    bool
}

// NewCountryCache returns an empty cache backed by fetch.
func NewCountryCache(fetch CountryFetcher) *CountryCache {
	return &CountryCache{fetch: fetch}
}

// Get returns the catalog, fetching it on first use. Concurrent callers
// before the first resolution share one fetch. The fetch itself is not tied
// to the first caller's cancellation; a caller whose ctx ends stops waiting
// and gets ctx.Err().
func (c *CountryCache) Get(ctx context.Context) ([]CountryDetail, error) {
	if c == nil || c.fetch == nil {
		return nil, ErrEngineNotReady
	}

	c.mu.Lock()
	if c.loaded {
		out := c.countries
		c.mu.Unlock()
		return out, nil
	}
	call := c.call
	if call == nil {
		call = &countryCall{done: make(chan struct{})}
		c.call = call
		go c.run(context.WithoutCancel(ctx), call)
	}
	c.mu.Unlock()

	select {
	case <-call.done:
		return call.countries, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *CountryCache) run(ctx context.Context, call *countryCall) {
	countries, err := c.fetch(ctx)

	c.mu.Lock()
	if err != nil {
		call.err = fmt.Errorf("%w: %v", ErrCountriesUnavailable, err)
		if c.call == call {
			c.call = nil
			c.countries = nil
			c.loaded = false
		}
	} else {
		if countries == nil {
			countries = []CountryDetail{}
		}
		call.countries = countries
		if c.call == call {
			c.countries = countries
			c.loaded = true
			c.call = nil
		}
	}
	onErr, onHit := c.onErr, c.onHit
	c.mu.Unlock()

	if err != nil && onErr != nil {
		onErr(call.err)
	} else if err == nil && onHit != nil {
		onHit()
	}
	close(call.done)
}

// Peek returns the catalog without waiting. ok is false until a fetch has
// succeeded.
func (c *CountryCache) Peek() (countries []CountryDetail, ok bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countries, c.loaded
}

// Reset drops the cached catalog. An in-flight fetch still completes for its
// waiters but is not kept.
func (c *CountryCache) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.call = nil
	c.countries = nil
	c.loaded = false
	c.mu.Unlock()
}

// FindCountry returns the catalog entry with the given id.
func FindCountry(countries []CountryDetail, id string) (*CountryDetail, bool) {
	if id == "" {
		return nil, false
	}
	for i := range countries {
		if countries[i].ID == id {
			return &countries[i], true
		}
	}
	return nil, false
}

// SelectDefaultCountry picks the country a new flow starts with: the
// last-used id when it is still in the catalog, else the preferred country
// (by name substring or phone code), else the first entry. It returns nil
// for an empty catalog.
func SelectDefaultCountry(countries []CountryDetail, lastUsedID string, cfg CountriesConfig) *CountryDetail {
	if len(countries) == 0 {
		return nil
	}
	if c, ok := FindCountry(countries, lastUsedID); ok {
		return c
	}

	name := strings.ToLower(strings.TrimSpace(cfg.PreferredName))
	code := strings.TrimLeft(strings.TrimSpace(cfg.PreferredPhoneCode), "+")
	if name != "" || code != "" {
		for i := range countries {
			if name != "" && strings.Contains(strings.ToLower(countries[i].Name), name) {
				return &countries[i]
			}
			if code != "" && strings.TrimLeft(countries[i].PhoneCode, "+") == code {
				return &countries[i]
			}
		}
	}
	return &countries[0]
}
