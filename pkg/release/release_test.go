package release

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
	"github.com/shiplog/shiplog/pkg/git"
)

type fakeGateway struct {
	calls   []string
	hasTag  bool
	sendErr error
	files   []string
}

func (f *fakeGateway) Name() string { return "Fake" }

func (f *fakeGateway) HasTag(_ context.Context, tag string) (bool, error) {
	f.calls = append(f.calls, "hasTag")
	return f.hasTag, nil
}

func (f *fakeGateway) SendRelease(_ context.Context, body string) error {
	f.calls = append(f.calls, "sendRelease")
	return f.sendErr
}

func (f *fakeGateway) ResolveAuthors(_ context.Context, commits []*changelog.Commit) []*changelog.AuthorInfo {
	f.calls = append(f.calls, "resolveAuthors")
	return nil
}

func (f *fakeGateway) UploadAssets(_ context.Context, files []string) error {
	f.calls = append(f.calls, "uploadAssets")
	f.files = files
	return nil
}

type fakeVCS struct {
	commits []git.RawCommit
	shallow bool
	branch  string
}

func (f fakeVCS) Diff(from, to string) ([]git.RawCommit, error) { return f.commits, nil }
func (f fakeVCS) IsShallowClone() bool                          { return f.shallow }
func (f fakeVCS) CurrentBranch() (string, error)                { return f.branch, nil }

func testCfg(mutate func(*config.Resolved)) *config.Resolved {
	cfg := &config.Resolved{
		Provider:    "github",
		Repo:        "acme/widgets",
		ReleaseRepo: "acme/widgets",
		BaseURL:     "https://github.com",
		From:        "v0.9.0",
		To:          "v1.0.0",
		Name:        "v1.0.0",
		Token:       "secret",
		TokenEnv:    []string{"GITHUB_TOKEN", "GH_TOKEN"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func someCommits() []git.RawCommit {
	return []git.RawCommit{
		{Hash: "aaa111122223333", ShortHash: "aaa1111", Subject: "feat: add thing",
			AuthorName: "Jane Doe", AuthorEmail: "jane@example.com"},
	}
}

func TestPrepareBuildsContext(t *testing.T) {
	gw := &fakeGateway{}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)

	assert.Len(t, rc.Commits, 1)
	assert.Contains(t, rc.Markdown, "add thing")
	assert.Contains(t, rc.CompareURL, "compare/v0.9.0...v1.0.0")
	assert.Equal(t, []string{"resolveAuthors"}, gw.calls)
}

func TestPerformDryRunIssuesNoNetworkCalls(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(func(c *config.Resolved) { c.Dry = true }))
	require.NoError(t, err)
	gw.calls = nil

	outcome, err := o.Perform(context.Background(), rc, PerformOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDryRun, outcome.Kind)
	assert.Empty(t, gw.calls)
}

func TestPerformOutputSavedWritesExactMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CHANGELOG.md")
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(func(c *config.Resolved) { c.Output = path }))
	require.NoError(t, err)
	gw.calls = nil

	outcome, err := o.Perform(context.Background(), rc, PerformOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOutputSaved, outcome.Kind)
	assert.Empty(t, gw.calls)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rc.Markdown, string(written))
}

func TestPerformMissingTokenHaltsBeforeTagCheck(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(func(c *config.Resolved) { c.Token = "" }))
	require.NoError(t, err)
	gw.calls = nil

	_, err = o.Perform(context.Background(), rc, PerformOptions{})
	var missing *MissingTokenError
	require.ErrorAs(t, err, &missing)

	assert.Equal(t, "GitHub", missing.Provider)
	assert.Equal(t, []string{"GITHUB_TOKEN", "GH_TOKEN"}, missing.EnvVars)
	assert.NotEmpty(t, missing.WebURL)
	assert.Empty(t, gw.calls, "no network call may precede the token check")
}

func TestPerformMissingTag(t *testing.T) {
	gw := &fakeGateway{hasTag: false}
	o := New(gw, fakeVCS{commits: someCommits(), branch: "main"}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)

	_, err = o.Perform(context.Background(), rc, PerformOptions{})
	var missing *MissingTagError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "v1.0.0", missing.Tag)
	assert.Equal(t, "GitHub", missing.Provider)
	assert.Equal(t, "main", missing.Branch)
	assert.Contains(t, missing.Error(), "current branch is main")
}

func TestPerformShallowRepo(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{shallow: true}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)
	require.Empty(t, rc.Commits)

	_, err = o.Perform(context.Background(), rc, PerformOptions{})
	var shallow *ShallowRepoError
	require.ErrorAs(t, err, &shallow)
}

func TestPerformMissingTagWinsOverShallow(t *testing.T) {
	// The tag check runs first so a missing tag is never masked by a
	// truncated history.
	gw := &fakeGateway{hasTag: false}
	o := New(gw, fakeVCS{shallow: true}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)

	_, err = o.Perform(context.Background(), rc, PerformOptions{})
	var missing *MissingTagError
	require.ErrorAs(t, err, &missing)
}

func TestPerformEmptyRangeOnFullCloneReleases(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{shallow: false}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)
	require.Empty(t, rc.Commits)

	outcome, err := o.Perform(context.Background(), rc, PerformOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReleased, outcome.Kind)
}

func TestPerformReleasedWithAssets(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(func(c *config.Resolved) {
		c.Assets = []string{"a.zip, b.zip"}
	}))
	require.NoError(t, err)
	gw.calls = nil

	outcome, err := o.Perform(context.Background(), rc, PerformOptions{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeReleased, outcome.Kind)
	assert.Equal(t, []string{"a.zip", "b.zip"}, outcome.Assets)
	assert.Equal(t, []string{"hasTag", "sendRelease", "uploadAssets"}, gw.calls)
	// Non-matching patterns pass through as literal paths.
	assert.Equal(t, []string{"a.zip", "b.zip"}, gw.files)
}

func TestRunCombinesPrepareAndPerform(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, outcome, err := o.Run(context.Background(), testCfg(nil))
	require.NoError(t, err)
	require.NotNil(t, rc)
	assert.Equal(t, OutcomeReleased, outcome.Kind)
}

func TestSummary(t *testing.T) {
	gw := &fakeGateway{hasTag: true}
	o := New(gw, fakeVCS{commits: someCommits()}, nil)

	rc, err := o.Prepare(context.Background(), testCfg(nil))
	require.NoError(t, err)

	s := rc.Summary()
	assert.Equal(t, "v0.9.0", s.From)
	assert.Equal(t, "v1.0.0", s.To)
	assert.Equal(t, "github", s.Provider)
	assert.Equal(t, "acme/widgets", s.Repo)
	assert.Equal(t, 1, s.CommitCount)
	assert.Equal(t, rc.CompareURL, s.CompareURL)
}
