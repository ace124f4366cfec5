// Package release sequences the side-effecting steps of publishing a
// release: local checks first, then tag existence, then the release itself,
// then asset upload.
package release

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shiplog/shiplog/pkg/assets"
	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
	"github.com/shiplog/shiplog/pkg/git"
	"github.com/shiplog/shiplog/pkg/markdown"
	"github.com/shiplog/shiplog/pkg/parse"
	"github.com/shiplog/shiplog/pkg/provider"
)

// OutcomeKind classifies what an orchestration run actually did.
type OutcomeKind string

const (
	OutcomeDryRun      OutcomeKind = "dry-run"
	OutcomeOutputSaved OutcomeKind = "output-saved"
	OutcomeReleased    OutcomeKind = "released"
)

// Outcome is produced exactly once per run. Assets holds the normalized
// asset list when any were requested.
type Outcome struct {
	Kind   OutcomeKind
	Assets []string
}

// Context is the unit of work: built once per invocation, read-only after
// construction.
type Context struct {
	Config       *config.Resolved
	Markdown     string
	Commits      []*changelog.Commit
	Contributors []*changelog.AuthorInfo
	WebURL       string
	CompareURL   string
}

// Summary is the machine-consumable view of a prepared release.
type Summary struct {
	Markdown    string `json:"markdown"`
	From        string `json:"from"`
	To          string `json:"to"`
	Provider    string `json:"provider"`
	Repo        string `json:"repo"`
	ReleaseRepo string `json:"releaseRepo"`
	Prerelease  bool   `json:"prerelease"`
	CommitCount int    `json:"commitCount"`
	CompareURL  string `json:"compareUrl"`
}

// Summary builds the JSON summary object for the prepared context.
func (rc *Context) Summary() Summary {
	return Summary{
		Markdown:    rc.Markdown,
		From:        rc.Config.From,
		To:          rc.Config.To,
		Provider:    rc.Config.Provider,
		Repo:        rc.Config.Repo,
		ReleaseRepo: rc.Config.ReleaseRepo,
		Prerelease:  rc.Config.Prerelease,
		CommitCount: len(rc.Commits),
		CompareURL:  rc.CompareURL,
	}
}

// VCS is the slice of git the orchestrator consumes.
type VCS interface {
	Diff(from, to string) ([]git.RawCommit, error)
	IsShallowClone() bool
	CurrentBranch() (string, error)
}

// Orchestrator drives the provider gateway through the release state
// machine.
type Orchestrator struct {
	Gateway provider.Gateway
	VCS     VCS
	Logger  *slog.Logger
}

// New wires an orchestrator. A nil logger discards output.
func New(gw provider.Gateway, vcs VCS, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{Gateway: gw, VCS: vcs, Logger: logger}
}

// Prepare reads the commit range, resolves authorship and renders the
// release body. No release-mutating call happens here.
func (o *Orchestrator) Prepare(ctx context.Context, cfg *config.Resolved) (*Context, error) {
	raw, err := o.VCS.Diff(cfg.From, cfg.To)
	if err != nil {
		return nil, err
	}
	commits := parse.Commits(raw)
	contributors := o.Gateway.ResolveAuthors(ctx, commits)
	body := markdown.Render(commits, contributors, cfg)

	return &Context{
		Config:       cfg,
		Markdown:     body,
		Commits:      commits,
		Contributors: contributors,
		WebURL:       cfg.NewReleaseURL(body),
		CompareURL:   cfg.CompareURL(),
	}, nil
}

// PerformOptions carries per-invocation extras on top of the config.
type PerformOptions struct {
	// Assets are additional comma-joinable asset fragments.
	Assets []string
}

// Perform evaluates the transitions strictly in order: purely-local states
// first (dry run, output file), then the token gate, then remote checks.
// The shallow check runs after the tag check on purpose, so a missing tag
// is never masked by a truncated history.
func (o *Orchestrator) Perform(ctx context.Context, rc *Context, opts PerformOptions) (Outcome, error) {
	cfg := rc.Config

	if cfg.Dry {
		o.Logger.Info("Dry run, no release sent")
		return Outcome{Kind: OutcomeDryRun}, nil
	}

	if cfg.Output != "" {
		if err := os.WriteFile(cfg.Output, []byte(rc.Markdown), 0o644); err != nil {
			return Outcome{}, fmt.Errorf("write changelog to %s: %w", cfg.Output, err)
		}
		o.Logger.Info("Changelog written", "path", cfg.Output)
		return Outcome{Kind: OutcomeOutputSaved}, nil
	}

	if cfg.Token == "" {
		return Outcome{}, &MissingTokenError{
			Provider: cfg.DisplayName(),
			EnvVars:  cfg.TokenEnv,
			WebURL:   rc.WebURL,
		}
	}

	hasTag, err := o.Gateway.HasTag(ctx, cfg.To)
	if err != nil {
		return Outcome{}, fmt.Errorf("check tag %s: %w", cfg.To, err)
	}
	if !hasTag {
		// Best-effort: the branch only sharpens the error message.
		branch, _ := o.VCS.CurrentBranch()
		return Outcome{}, &MissingTagError{
			Provider:   cfg.DisplayName(),
			Tag:        cfg.To,
			Branch:     branch,
			WebURL:     rc.WebURL,
			CompareURL: rc.CompareURL,
		}
	}

	if len(rc.Commits) == 0 && o.VCS.IsShallowClone() {
		return Outcome{}, &ShallowRepoError{WebURL: rc.WebURL, CompareURL: rc.CompareURL}
	}

	if err := o.Gateway.SendRelease(ctx, rc.Markdown); err != nil {
		return Outcome{}, err
	}

	list := assets.Normalize(append(append([]string{}, cfg.Assets...), opts.Assets...)...)
	if len(list) > 0 {
		files := assets.Expand(list)
		if err := o.Gateway.UploadAssets(ctx, files); err != nil {
			// The release itself is out; asset delivery stays best-effort.
			o.Logger.Warn("Asset upload incomplete", "error", err)
		}
	}

	return Outcome{Kind: OutcomeReleased, Assets: list}, nil
}

// Run is the combined convenience entry point.
func (o *Orchestrator) Run(ctx context.Context, cfg *config.Resolved) (*Context, Outcome, error) {
	rc, err := o.Prepare(ctx, cfg)
	if err != nil {
		return nil, Outcome{}, err
	}
	outcome, err := o.Perform(ctx, rc, PerformOptions{})
	return rc, outcome, err
}
