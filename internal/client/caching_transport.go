package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// newCachingTransport wraps next with an HTTP cache used for the lookups made
// while enriching reservations (guest profiles, room prices).
func newCachingTransport(cacheDir string, next http.RoundTripper) *httpcache.Transport {
	var cache httpcache.Cache
	if cacheDir == "" {
		// Use in-memory cache if no cache directory specified
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across restarts
		cache = diskcache.New(cacheDir)
	}

	transport := httpcache.NewTransport(cache)
	transport.Transport = next
	transport.MarkCachedResponses = true

	return transport
}

// fromCache reports whether resp was served by the lookup cache.
func fromCache(resp *http.Response) bool {
	return resp.Header.Get(httpcache.XFromCache) != ""
}
