// Package netbox exports network intent from a NetBox instance. The
// client walks the paginated REST endpoints for sites, prefixes, VLANs,
// and tags and normalizes the results into an intent.Set.
package netbox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/boycivenga/netgate/internal/errors"
	"github.com/boycivenga/netgate/internal/intent"
	"github.com/boycivenga/netgate/internal/logger"
)

// IntentSource is the narrow interface the export pipeline depends on.
// The NetBox client is the production implementation; tests substitute
// fixture-backed sources.
type IntentSource interface {
	FetchIntent(ctx context.Context) (*intent.Set, error)
}

// Client talks to the NetBox REST API using token authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logger.Logger
}

// NewClient builds a NetBox API client. Certificate verification may
// only be disabled outside CI: a GITHUB_ACTIONS run requesting
// insecure TLS is a configuration error, not a warning.
func NewClient(baseURL, token string, allowInsecure bool, log logger.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfiguration, errors.StageExport, "NetBox URL is not configured").
			WithSolutions(
				"Set NETBOX_URL or netbox.url in the config file",
				"Example: NETBOX_URL=https://netbox.example.com/api/",
			)
	}
	if token == "" {
		return nil, errors.New(errors.ErrorTypeConfiguration, errors.StageExport, "NetBox API token is not configured").
			WithSolutions(
				"Set NETBOX_API_TOKEN or netbox.token in the config file",
				"Generate a token in NetBox under your user profile",
			)
	}

	transport := http.DefaultTransport
	if allowInsecure {
		if os.Getenv("GITHUB_ACTIONS") == "true" {
			return nil, errors.New(errors.ErrorTypeConfiguration, errors.StageExport,
				"insecure TLS is not allowed in CI").
				WithCause("NETGATE_ALLOW_INSECURE is set while running under GitHub Actions").
				WithSolutions(
					"Install the NetBox CA certificate on the runner",
					"Remove NETGATE_ALLOW_INSECURE from the workflow environment",
				)
		}
		log.Warn("TLS certificate verification disabled for NetBox requests")
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		logger: log,
	}, nil
}

// page is the standard NetBox list envelope.
type page struct {
	Count   int               `json:"count"`
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

// getAll follows the Next links of a list endpoint until exhausted and
// returns every result object.
func (c *Client) getAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	endpoint := c.baseURL + path
	var results []json.RawMessage

	for endpoint != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.New(errors.ErrorTypeNetwork, errors.StageExport,
				fmt.Sprintf("NetBox request failed: %s", path)).
				WithCause(err.Error()).
				WithSolutions(
					"Check that the NetBox URL is reachable",
					"Verify network connectivity and any proxy settings",
				)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read NetBox response for %s: %w", path, readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, errors.New(errors.ErrorTypeConfiguration, errors.StageExport,
				fmt.Sprintf("NetBox rejected the API token (HTTP %d)", resp.StatusCode)).
				WithSolutions(
					"Check that NETBOX_API_TOKEN is valid and not expired",
					"Confirm the token has read access to dcim and ipam",
				)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, errors.New(errors.ErrorTypeNetwork, errors.StageExport,
				fmt.Sprintf("NetBox returned HTTP %d for %s", resp.StatusCode, path)).
				WithCause(truncate(string(body), 200))
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode NetBox response for %s: %w", path, err)
		}
		results = append(results, p.Results...)

		endpoint = ""
		if p.Next != nil && *p.Next != "" {
			endpoint, err = c.rewriteNext(*p.Next)
			if err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// rewriteNext re-roots a NetBox pagination link onto the configured
// base URL. NetBox builds Next links from its own idea of the host,
// which differs from the client's when it sits behind a proxy.
func (c *Client) rewriteNext(next string) (string, error) {
	nextURL, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("failed to parse pagination link %q: %w", next, err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL %q: %w", c.baseURL, err)
	}
	nextURL.Scheme = base.Scheme
	nextURL.Host = base.Host
	return nextURL.String(), nil
}

func decodeList[T any](raw []json.RawMessage, what string) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, errors.New(errors.ErrorTypeInput, errors.StageExport,
				fmt.Sprintf("NetBox returned a malformed %s record", what)).
				WithCause(err.Error())
		}
		out = append(out, item)
	}
	return out, nil
}

// FetchSites retrieves all sites from dcim/sites.
func (c *Client) FetchSites(ctx context.Context) ([]intent.Site, error) {
	raw, err := c.getAll(ctx, "/dcim/sites/")
	if err != nil {
		return nil, err
	}
	return decodeList[intent.Site](raw, "site")
}

// FetchPrefixes retrieves all prefixes from ipam/prefixes.
func (c *Client) FetchPrefixes(ctx context.Context) ([]intent.Prefix, error) {
	raw, err := c.getAll(ctx, "/ipam/prefixes/")
	if err != nil {
		return nil, err
	}
	return decodeList[intent.Prefix](raw, "prefix")
}

// FetchVLANs retrieves all VLANs from ipam/vlans.
func (c *Client) FetchVLANs(ctx context.Context) ([]intent.VLAN, error) {
	raw, err := c.getAll(ctx, "/ipam/vlans/")
	if err != nil {
		return nil, err
	}
	return decodeList[intent.VLAN](raw, "vlan")
}

// FetchTags retrieves all tags from extras/tags.
func (c *Client) FetchTags(ctx context.Context) ([]intent.Tag, error) {
	raw, err := c.getAll(ctx, "/extras/tags/")
	if err != nil {
		return nil, err
	}
	return decodeList[intent.Tag](raw, "tag")
}

// FetchIntent retrieves a complete intent export and resolves sparse
// VLAN references before returning it.
func (c *Client) FetchIntent(ctx context.Context) (*intent.Set, error) {
	sites, err := c.FetchSites(ctx)
	if err != nil {
		return nil, err
	}
	prefixes, err := c.FetchPrefixes(ctx)
	if err != nil {
		return nil, err
	}
	vlans, err := c.FetchVLANs(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := c.FetchTags(ctx)
	if err != nil {
		return nil, err
	}

	set := &intent.Set{
		Sites:    sites,
		Prefixes: prefixes,
		VLANs:    vlans,
		Tags:     tags,
	}
	set.Resolve()

	c.logger.WithFields(map[string]interface{}{
		"sites":    len(set.Sites),
		"prefixes": len(set.Prefixes),
		"vlans":    len(set.VLANs),
		"tags":     len(set.Tags),
	}).Info("Fetched intent from NetBox")

	return set, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
