package provider

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
)

// gitHub talks to the GitHub REST v3 API. Releases are first-class objects:
// draft/prerelease map directly and assets attach to the release itself.
type gitHub struct {
	cfg    *config.Resolved
	api    *apiClient
	logger *slog.Logger
}

func newGitHub(cfg *config.Resolved, logger *slog.Logger) *gitHub {
	headers := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if cfg.Token != "" {
		headers["Authorization"] = "token " + cfg.Token
	}
	return &gitHub{cfg: cfg, api: newAPIClient(headers), logger: logger}
}

func (g *gitHub) Name() string { return g.cfg.DisplayName() }

func (g *gitHub) HasTag(ctx context.Context, tag string) (bool, error) {
	u := fmt.Sprintf("%s/repos/%s/git/ref/tags/%s", g.cfg.BaseAPIURL, g.cfg.ReleaseRepo, url.PathEscape(tag))
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return false, err
	}
	return ok(status), nil
}

type githubRelease struct {
	ID        int64  `json:"id"`
	UploadURL string `json:"upload_url"`
	Body      string `json:"body"`
}

func (g *gitHub) releaseByTag(ctx context.Context, tag string) (*githubRelease, error) {
	u := fmt.Sprintf("%s/repos/%s/releases/tags/%s", g.cfg.BaseAPIURL, g.cfg.ReleaseRepo, url.PathEscape(tag))
	var rel githubRelease
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &rel)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, nil
	}
	return &rel, nil
}

func (g *gitHub) SendRelease(ctx context.Context, body string) error {
	payload := map[string]any{
		"tag_name":   g.cfg.To,
		"name":       g.cfg.Name,
		"body":       body,
		"draft":      g.cfg.Draft,
		"prerelease": g.cfg.Prerelease,
	}

	existing, err := g.releaseByTag(ctx, g.cfg.To)
	if err != nil {
		return err
	}

	method := http.MethodPost
	u := fmt.Sprintf("%s/repos/%s/releases", g.cfg.BaseAPIURL, g.cfg.ReleaseRepo)
	if existing != nil {
		method = http.MethodPatch
		u = fmt.Sprintf("%s/repos/%s/releases/%d", g.cfg.BaseAPIURL, g.cfg.ReleaseRepo, existing.ID)
	}

	status, err := g.api.doJSON(ctx, method, u, payload, nil)
	if err != nil {
		return err
	}
	if !ok(status) {
		return fmt.Errorf("github: release request returned status %d", status)
	}
	g.logger.Info("Release sent", "provider", "github", "tag", g.cfg.To, "updated", existing != nil)
	return nil
}

func (g *gitHub) ResolveAuthors(ctx context.Context, commits []*changelog.Commit) []*changelog.AuthorInfo {
	return resolveAuthors(ctx, commits, g.cfg, g, g.logger)
}

func (g *gitHub) UploadAssets(ctx context.Context, files []string) error {
	rel, err := g.releaseByTag(ctx, g.cfg.To)
	if err != nil {
		return err
	}
	if rel == nil {
		return fmt.Errorf("github: no release found for tag %s", g.cfg.To)
	}

	uploadURL := rel.UploadURL
	if i := strings.Index(uploadURL, "{"); i >= 0 {
		uploadURL = uploadURL[:i]
	}

	grp, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		file := file
		grp.Go(func() error {
			if err := g.uploadAsset(gctx, uploadURL, file); err != nil {
				// Failures are isolated per asset.
				g.logger.Warn("Asset upload failed", "file", file, "error", err)
			}
			return nil
		})
	}
	return grp.Wait()
}

func (g *gitHub) uploadAsset(ctx context.Context, uploadURL, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	u := uploadURL + "?name=" + url.QueryEscape(filepath.Base(file))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, f)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = info.Size()

	status, err := g.api.doRaw(req, nil)
	if err != nil {
		return err
	}
	if !ok(status) {
		return fmt.Errorf("upload returned status %d", status)
	}
	g.logger.Info("Asset uploaded", "file", filepath.Base(file))
	return nil
}

// identityLookup

func (g *gitHub) loginByEmail(ctx context.Context, email string) (string, error) {
	u := fmt.Sprintf("%s/search/users?q=%s", g.cfg.BaseAPIURL, url.QueryEscape(email))
	var result struct {
		Items []struct {
			Login string `json:"login"`
		} `json:"items"`
	}
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &result)
	if err != nil {
		return "", err
	}
	if !ok(status) || len(result.Items) == 0 {
		return "", nil
	}
	return result.Items[0].Login, nil
}

func (g *gitHub) loginByCommit(ctx context.Context, hash string) (string, error) {
	u := fmt.Sprintf("%s/repos/%s/commits/%s", g.cfg.BaseAPIURL, g.cfg.Repo, url.PathEscape(hash))
	var result struct {
		Author struct {
			Login string `json:"login"`
		} `json:"author"`
	}
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &result)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", nil
	}
	return result.Author.Login, nil
}
