package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
)

// gitLab talks to the GitLab REST v4 API. Releases are keyed by tag and
// created idempotently: fetch-by-tag decides POST (create) vs PUT (update).
// There is no native asset primitive; files go to the project upload store
// and get linked from the release description.
type gitLab struct {
	cfg    *config.Resolved
	api    *apiClient
	logger *slog.Logger

	// The numeric project id is immutable for a repository, so one
	// resolution is valid for the process lifetime.
	mu        sync.Mutex
	projectID string
}

func newGitLab(cfg *config.Resolved, logger *slog.Logger) *gitLab {
	headers := map[string]string{}
	if cfg.Token != "" {
		headers["PRIVATE-TOKEN"] = cfg.Token
	}
	return &gitLab{cfg: cfg, api: newAPIClient(headers), logger: logger}
}

func (g *gitLab) Name() string { return g.cfg.DisplayName() }

// resolveProjectID returns the cached project id, preferring the explicit
// config override, then the CI environment, then one API lookup.
func (g *gitLab) resolveProjectID(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.projectID != "" {
		return g.projectID, nil
	}
	if g.cfg.ProjectID != "" {
		g.projectID = g.cfg.ProjectID
		return g.projectID, nil
	}
	if id := os.Getenv("CI_PROJECT_ID"); id != "" {
		g.projectID = id
		return g.projectID, nil
	}

	u := fmt.Sprintf("%s/projects/%s", g.cfg.BaseAPIURL, url.PathEscape(g.cfg.ReleaseRepo))
	var project struct {
		ID int64 `json:"id"`
	}
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &project)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", fmt.Errorf("gitlab: project lookup for %s returned status %d", g.cfg.ReleaseRepo, status)
	}
	g.projectID = strconv.FormatInt(project.ID, 10)
	return g.projectID, nil
}

func (g *gitLab) HasTag(ctx context.Context, tag string) (bool, error) {
	id, err := g.resolveProjectID(ctx)
	if err != nil {
		return false, err
	}
	u := fmt.Sprintf("%s/projects/%s/repository/tags/%s", g.cfg.BaseAPIURL, id, url.PathEscape(tag))
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return false, err
	}
	return ok(status), nil
}

type gitlabRelease struct {
	TagName     string `json:"tag_name"`
	Description string `json:"description"`
}

func (g *gitLab) releaseByTag(ctx context.Context, projectID, tag string) (*gitlabRelease, error) {
	u := fmt.Sprintf("%s/projects/%s/releases/%s", g.cfg.BaseAPIURL, projectID, url.PathEscape(tag))
	var rel gitlabRelease
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &rel)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, nil
	}
	return &rel, nil
}

func (g *gitLab) SendRelease(ctx context.Context, body string) error {
	id, err := g.resolveProjectID(ctx)
	if err != nil {
		return err
	}

	existing, err := g.releaseByTag(ctx, id, g.cfg.To)
	if err != nil {
		return err
	}

	var status int
	if existing != nil {
		u := fmt.Sprintf("%s/projects/%s/releases/%s", g.cfg.BaseAPIURL, id, url.PathEscape(g.cfg.To))
		payload := map[string]any{"name": g.cfg.Name, "description": body}
		status, err = g.api.doJSON(ctx, http.MethodPut, u, payload, nil)
	} else {
		u := fmt.Sprintf("%s/projects/%s/releases", g.cfg.BaseAPIURL, id)
		payload := map[string]any{"tag_name": g.cfg.To, "name": g.cfg.Name, "description": body}
		status, err = g.api.doJSON(ctx, http.MethodPost, u, payload, nil)
	}
	if err != nil {
		return err
	}
	if !ok(status) {
		return fmt.Errorf("gitlab: release request returned status %d", status)
	}
	g.logger.Info("Release sent", "provider", "gitlab", "tag", g.cfg.To, "updated", existing != nil)
	return nil
}

func (g *gitLab) ResolveAuthors(ctx context.Context, commits []*changelog.Commit) []*changelog.AuthorInfo {
	return resolveAuthors(ctx, commits, g.cfg, g, g.logger)
}

func (g *gitLab) UploadAssets(ctx context.Context, files []string) error {
	id, err := g.resolveProjectID(ctx)
	if err != nil {
		return err
	}

	links := make([]string, len(files))
	grp, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		grp.Go(func() error {
			link, err := g.uploadFile(gctx, id, file)
			if err != nil {
				g.logger.Warn("Asset upload failed", "file", file, "error", err)
				return nil
			}
			links[i] = link
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	var kept []string
	for _, l := range links {
		if l != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > 0 {
		// Best-effort: a failed description update leaves the uploads
		// intact but unlinked.
		if err := g.appendAssetLinks(ctx, id, kept); err != nil {
			g.logger.Warn("Could not link assets in release description", "error", err)
		}
	}
	return nil
}

// uploadFile pushes one file to the project upload store and returns a
// markdown link to it.
func (g *gitLab) uploadFile(ctx context.Context, projectID, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(file))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/projects/%s/uploads", g.cfg.BaseAPIURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result struct {
		Markdown string `json:"markdown"`
		URL      string `json:"url"`
	}
	status, err := g.api.doRaw(req, &result)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", fmt.Errorf("upload returned status %d", status)
	}
	g.logger.Info("Asset uploaded", "file", filepath.Base(file))

	if result.Markdown != "" {
		return result.Markdown, nil
	}
	return fmt.Sprintf("[%s](%s)", filepath.Base(file), result.URL), nil
}

func (g *gitLab) appendAssetLinks(ctx context.Context, projectID string, links []string) error {
	rel, err := g.releaseByTag(ctx, projectID, g.cfg.To)
	if err != nil {
		return err
	}
	if rel == nil {
		return fmt.Errorf("no release found for tag %s", g.cfg.To)
	}

	description := rel.Description + "\n\n#### Assets\n\n- " + strings.Join(links, "\n- ") + "\n"
	u := fmt.Sprintf("%s/projects/%s/releases/%s", g.cfg.BaseAPIURL, projectID, url.PathEscape(g.cfg.To))
	status, err := g.api.doJSON(ctx, http.MethodPut, u, map[string]any{"description": description}, nil)
	if err != nil {
		return err
	}
	if !ok(status) {
		return fmt.Errorf("description update returned status %d", status)
	}
	return nil
}

// identityLookup

func (g *gitLab) loginByEmail(ctx context.Context, email string) (string, error) {
	u := fmt.Sprintf("%s/users?search=%s", g.cfg.BaseAPIURL, url.QueryEscape(email))
	var users []struct {
		Username string `json:"username"`
	}
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &users)
	if err != nil {
		return "", err
	}
	if !ok(status) || len(users) == 0 {
		return "", nil
	}
	return users[0].Username, nil
}

func (g *gitLab) loginByCommit(ctx context.Context, hash string) (string, error) {
	id, err := g.resolveProjectID(ctx)
	if err != nil {
		return "", err
	}
	u := fmt.Sprintf("%s/projects/%s/repository/commits/%s", g.cfg.BaseAPIURL, id, url.PathEscape(hash))
	var commit struct {
		AuthorName string `json:"author_name"`
	}
	status, err := g.api.doJSON(ctx, http.MethodGet, u, nil, &commit)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", nil
	}
	return commit.AuthorName, nil
}
