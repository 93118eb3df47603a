// Package registry implements the HTTPS wire protocol for resolving
// unspecified package versions and fetching package archives from a public
// NuGet-compatible feed. Archive bytes are never cached here — that is
// cachefetch's concern, keyed on the final resolved (id, version). Version
// *metadata* lookups are a different story: the same unversioned reference
// is re-queried on every run, so LatestVersion optionally consults a
// MultiTierCache the way the teacher's core/repository_cache.go consults
// GONUGET_HTTP_CACHE before hitting the network.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/willibrandon/csx/cache"
	"github.com/willibrandon/csx/internal/nethttp"
	"github.com/willibrandon/csx/internal/observability"
)

// metadataCacheTTL bounds how long a resolved "latest version" answer is
// trusted before LatestVersion re-queries the registry. Matches the
// 30-minute default NuGet.Client uses for its HTTP source cache.
const metadataCacheTTL = 30 * time.Minute

// ErrVersionResolutionFailed is returned when both the search endpoint and
// the flat-container index fail to produce a version for a package.
var ErrVersionResolutionFailed = errors.New("registry: version resolution failed")

// Source names the two endpoints a registry exposes. csx wires exactly
// one hard-coded public source; Source exists so a second source is a
// structural non-event, not a rewrite.
type Source struct {
	Name             string
	SearchBaseURL    string // e.g. https://azuresearch-usnc.nuget.org
	FlatContainerURL string // e.g. https://api.nuget.org/v3-flatcontainer
}

// NuGetOrg is the public nuget.org source, the only one csx wires.
var NuGetOrg = Source{
	Name:             "nuget.org",
	SearchBaseURL:    "https://azuresearch-usnc.nuget.org",
	FlatContainerURL: "https://api.nuget.org/v3-flatcontainer",
}

// Client fetches version metadata and archive bytes from a Source.
type Client struct {
	httpClient *nethttp.Client
	source     Source
	logger     observability.Logger
	metaCache  *cache.MultiTierCache
}

// NewClient creates a registry client bound to source. Metadata caching is
// disabled until UseMetadataCache is called.
func NewClient(httpClient *nethttp.Client, source Source, logger observability.Logger) *Client {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &Client{httpClient: httpClient, source: source, logger: logger}
}

// UseMetadataCache enables the L1 memory / L2 disk cache for LatestVersion
// lookups. Archive downloads are never routed through it.
func (c *Client) UseMetadataCache(mc *cache.MultiTierCache) {
	c.metaCache = mc
}

type searchResponse struct {
	Data []struct {
		Version string `json:"version"`
	} `json:"data"`
}

type flatContainerIndex struct {
	Versions []string `json:"versions"`
}

// LatestVersion resolves the newest listed version of id. It tries the
// search endpoint first; on any failure (transport error, non-200, empty
// result, malformed JSON) it falls back to the flat-container index before
// giving up with ErrVersionResolutionFailed.
func (c *Client) LatestVersion(ctx context.Context, id string) (string, error) {
	idLower := strings.ToLower(id)

	if v, err := c.latestFromSearch(ctx, idLower); err == nil {
		return v, nil
	} else {
		c.logger.DebugContext(ctx, "search lookup failed for {PackageID}, falling back to flat container: {Error}", id, err)
	}

	v, err := c.latestFromFlatContainer(ctx, idLower)
	if err != nil {
		c.logger.WarnContext(ctx, "version resolution failed for {PackageID}: {Error}", id, err)
		return "", fmt.Errorf("%w: %s: %w", ErrVersionResolutionFailed, id, err)
	}
	return v, nil
}

func (c *Client) latestFromSearch(ctx context.Context, idLower string) (string, error) {
	if v, ok := c.cacheLookup(ctx, c.source.SearchBaseURL, "search:"+idLower); ok {
		return v, nil
	}

	u := fmt.Sprintf("%s/query?q=%s&take=1", c.source.SearchBaseURL,
		url.QueryEscape("packageid:"+idLower))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].Version == "" {
		return "", fmt.Errorf("search returned no versions for %q", idLower)
	}

	v := parsed.Data[0].Version
	c.cacheStore(ctx, c.source.SearchBaseURL, "search:"+idLower, v)
	return v, nil
}

func (c *Client) latestFromFlatContainer(ctx context.Context, idLower string) (string, error) {
	if v, ok := c.cacheLookup(ctx, c.source.FlatContainerURL, "flat:"+idLower); ok {
		return v, nil
	}

	u := fmt.Sprintf("%s/%s/index.json", c.source.FlatContainerURL, idLower)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("flat container index returned status %d", resp.StatusCode)
	}

	var idx flatContainerIndex
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return "", fmt.Errorf("decode flat container index: %w", err)
	}
	if len(idx.Versions) == 0 {
		return "", fmt.Errorf("flat container index is empty for %q", idLower)
	}

	v := idx.Versions[len(idx.Versions)-1]
	c.cacheStore(ctx, c.source.FlatContainerURL, "flat:"+idLower, v)
	return v, nil
}

// cacheLookup consults the metadata cache, if one is configured. A cache
// miss or disabled cache reports ok=false so the caller falls through to
// the network.
func (c *Client) cacheLookup(ctx context.Context, sourceURL, key string) (string, bool) {
	if c.metaCache == nil {
		return "", false
	}
	data, ok, err := c.metaCache.Get(ctx, sourceURL, key, metadataCacheTTL)
	if err != nil || !ok {
		return "", false
	}
	return string(data), true
}

// cacheStore writes v into the metadata cache, if one is configured. Store
// failures are non-fatal: a missed cache write just means the next lookup
// hits the network again.
func (c *Client) cacheStore(ctx context.Context, sourceURL, key, v string) {
	if c.metaCache == nil {
		return
	}
	if err := c.metaCache.Set(ctx, sourceURL, key, strings.NewReader(v), metadataCacheTTL, nil); err != nil {
		c.logger.DebugContext(ctx, "metadata cache write failed for {Key}: {Error}", key, err)
	}
}

// Archive fetches the .nupkg bytes for (id, version).
func (c *Client) Archive(ctx context.Context, id, version string) ([]byte, error) {
	idLower := strings.ToLower(id)
	versionLower := strings.ToLower(version)

	u := fmt.Sprintf("%s/%s/%s/%s.%s.nupkg",
		c.source.FlatContainerURL, idLower, versionLower, idLower, versionLower)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.DoWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("archive download for %s %s returned status %d: %s", id, version, resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}
