// Package provider implements the hosted-release gateway: one capability
// interface, one adapter per backend, selected by the config discriminator.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
)

// Gateway is the capability surface the orchestrator and the author
// resolution engine run against. Both backends implement it; callers never
// branch on provider identity.
type Gateway interface {
	// Name is the provider display name, for user-facing messages.
	Name() string
	// HasTag reports whether the tag exists on the remote.
	HasTag(ctx context.Context, tag string) (bool, error)
	// SendRelease creates or updates the release for the configured tag.
	SendRelease(ctx context.Context, body string) error
	// ResolveAuthors deduplicates commit authorship and best-effort
	// resolves platform logins. It mutates each commit's ResolvedAuthors
	// and never fails; lookups that error leave the login unset.
	ResolveAuthors(ctx context.Context, commits []*changelog.Commit) []*changelog.AuthorInfo
	// UploadAssets attaches files to the release. Per-file failures are
	// logged and do not abort the remaining uploads.
	UploadAssets(ctx context.Context, files []string) error
}

// UnsupportedProviderError is raised at gateway construction, before any
// network call, for an unknown discriminator.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider %q (supported: github, gitlab)", e.Provider)
}

// New selects the backend adapter for the resolved config.
func New(cfg *config.Resolved, logger *slog.Logger) (Gateway, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	switch cfg.Provider {
	case "github":
		return newGitHub(cfg, logger), nil
	case "gitlab":
		return newGitLab(cfg, logger), nil
	default:
		return nil, &UnsupportedProviderError{Provider: cfg.Provider}
	}
}

// apiClient is the minimal JSON-over-HTTP plumbing shared by both adapters.
type apiClient struct {
	http    *http.Client
	headers map[string]string
}

func newAPIClient(headers map[string]string) *apiClient {
	return &apiClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		headers: headers,
	}
}

// doJSON issues a request with an optional JSON body and decodes a 2xx
// response into out when non-nil. The status code is returned even on
// non-2xx responses so callers can branch on existence checks.
func (c *apiClient) doJSON(ctx context.Context, method, url string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response from %s: %w", url, err)
		}
	}
	return resp.StatusCode, nil
}

// doRaw sends a prepared request and decodes a 2xx JSON response.
func (c *apiClient) doRaw(req *http.Request, out any) (int, error) {
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func ok(status int) bool { return status >= 200 && status < 300 }
