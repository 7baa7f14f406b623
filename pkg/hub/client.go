package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultEndpoint = "https://huggingface.co"
	DefaultRevision = "main"

	userAgent = "hubfetch/1"
)

// StatusError reports a registry response outside the 2xx range.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Options configures a Client.
type Options struct {
	// Endpoint is the registry base URL. Defaults to DefaultEndpoint.
	Endpoint string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Revision is the branch, tag or commit files are resolved against. Defaults to DefaultRevision.
	Revision string
	// HTTPClient defaults to a client with no timeout.
	HTTPClient *http.Client
}

// Client talks to a Hugging Face Hub compatible registry.
type Client struct {
	endpoint *url.URL
	token    string
	revision string
	http     *http.Client
}

// NewClient validates opts and returns a ready Client.
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.Endpoint)
	if raw == "" {
		raw = DefaultEndpoint
	}
	endpoint, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q must use http or https", raw)
	}
	if endpoint.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", raw)
	}

	revision := strings.TrimSpace(opts.Revision)
	if revision == "" {
		revision = DefaultRevision
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(opts.Token),
		revision: revision,
		http:     httpClient,
	}, nil
}

// List returns every resource of the given kind owned by author, in registry order.
// A next link pointing at a page already fetched is an error.
func (c *Client) List(ctx context.Context, kind Kind, author string) ([]Resource, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	query := url.Values{}
	query.Set("author", author)
	query.Set("full", "true")
	next := c.endpoint.JoinPath("api", kind.apiPath())
	next.RawQuery = query.Encode()

	var resources []Resource
	seen := map[string]bool{}
	pageURL := next.String()
	for pageURL != "" {
		seen[pageURL] = true
		page, link, err := c.listPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		resources = append(resources, page...)
		if seen[link] {
			return nil, fmt.Errorf("pagination loop at %s", link)
		}
		pageURL = link
	}
	return resources, nil
}

func (c *Client) listPage(ctx context.Context, pageURL string) ([]Resource, string, error) {
	resp, err := c.Get(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", &StatusError{Method: http.MethodGet, URL: pageURL, StatusCode: resp.StatusCode}
	}

	var page []Resource
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("decode listing %s: %w", pageURL, err)
	}

	next, err := nextLink(resp.Header, resp.Request.URL)
	if err != nil {
		return nil, "", err
	}
	return page, next, nil
}

// nextLink extracts the rel="next" target from an RFC 8288 Link header.
func nextLink(h http.Header, base *url.URL) (string, error) {
	for _, header := range h.Values("Link") {
		for _, part := range strings.Split(header, ",") {
			segments := strings.Split(part, ";")
			target := strings.TrimSpace(segments[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			isNext := false
			for _, param := range segments[1:] {
				param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
				if strings.EqualFold(param, `rel="next"`) || strings.EqualFold(param, "rel=next") {
					isNext = true
				}
			}
			if !isNext {
				continue
			}
			ref, err := url.Parse(target[1 : len(target)-1])
			if err != nil {
				return "", fmt.Errorf("parse next link: %w", err)
			}
			if base != nil {
				ref = base.ResolveReference(ref)
			}
			return ref.String(), nil
		}
	}
	return "", nil
}

// FileURL returns the resolve URL for filename inside repoID at the configured revision.
func (c *Client) FileURL(kind Kind, repoID, filename string) string {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/" + kind.urlPrefix() + repoID +
		"/resolve/" + c.revision + "/" + strings.TrimLeft(filename, "/")
	u.RawPath = ""
	return u.String()
}

// Get issues an authenticated GET. Non-2xx responses are returned, not converted to errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}
