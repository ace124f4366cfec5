package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo builds a throwaway repository with two commits and one tag.
func initRepo(t *testing.T) Client {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_CONFIG_GLOBAL=/dev/null",
			"GIT_CONFIG_SYSTEM=/dev/null",
			"GIT_AUTHOR_NAME=Jane Doe",
			"GIT_AUTHOR_EMAIL=jane@example.com",
			"GIT_COMMITTER_NAME=Jane Doe",
			"GIT_COMMITTER_EMAIL=jane@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	write := func(name, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	run("init", "-q")
	write("a.txt", "one")
	run("add", ".")
	run("commit", "-q", "--no-gpg-sign", "-m", "feat: first change")
	run("tag", "v0.1.0")
	write("b.txt", "two")
	run("add", ".")
	run("commit", "-q", "--no-gpg-sign", "-m", "fix(core): second change\n\ndetails here\n\nCo-authored-by: Sam Smith <sam@example.com>")
	run("remote", "add", "origin", "git@github.com:acme/widgets.git")

	return Client{Dir: dir}
}

func TestDiff(t *testing.T) {
	c := initRepo(t)

	commits, err := c.Diff("v0.1.0", "HEAD")
	require.NoError(t, err)
	require.Len(t, commits, 1)

	got := commits[0]
	assert.Equal(t, "fix(core): second change", got.Subject)
	assert.Equal(t, "Jane Doe", got.AuthorName)
	assert.Equal(t, "jane@example.com", got.AuthorEmail)
	assert.Contains(t, got.Body, "Co-authored-by: Sam Smith <sam@example.com>")
	assert.NotEmpty(t, got.Hash)
	assert.NotEmpty(t, got.ShortHash)
}

func TestDiffFullHistory(t *testing.T) {
	c := initRepo(t)

	commits, err := c.Diff("", "HEAD")
	require.NoError(t, err)
	assert.Len(t, commits, 2)
}

func TestIsShallowClone(t *testing.T) {
	c := initRepo(t)
	assert.False(t, c.IsShallowClone())
}

func TestCurrentBranch(t *testing.T) {
	c := initRepo(t)

	branch, err := c.CurrentBranch()
	require.NoError(t, err)
	assert.NotEmpty(t, branch)
	assert.NotEqual(t, "HEAD", branch)
}

func TestFirstCommitHash(t *testing.T) {
	c := initRepo(t)

	first, err := c.FirstCommitHash()
	require.NoError(t, err)
	assert.Len(t, first, 40)
}

func TestLastTag(t *testing.T) {
	c := initRepo(t)

	tag, err := c.LastTag()
	require.NoError(t, err)
	assert.Equal(t, "v0.1.0", tag)
}

func TestLastMatchingTagNoMatch(t *testing.T) {
	c := initRepo(t)

	tag, err := c.LastMatchingTag(func(string) bool { return false })
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestRemoteSlug(t *testing.T) {
	c := initRepo(t)

	slug, err := c.RemoteSlug()
	require.NoError(t, err)
	assert.Equal(t, "acme/widgets", slug)
}
