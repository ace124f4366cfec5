// Package git shells out to the git binary for the handful of repository
// reads the release flow needs. It is deliberately not a general git client.
package git

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/shiplog/shiplog/pkg/config"
)

// RawCommit is an unparsed commit as read from git log.
type RawCommit struct {
	Hash        string
	ShortHash   string
	Subject     string
	Body        string
	AuthorName  string
	AuthorEmail string
}

// Client runs git against a working directory. The zero value targets the
// current directory.
type Client struct {
	Dir string
}

func (c Client) run(args ...string) (string, error) {
	base := []string{}
	if c.Dir != "" {
		base = append(base, "-C", c.Dir)
	}
	cmd := exec.Command("git", append(base, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// field and record separators for machine-readable log output.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Diff returns the raw commits in from..to, newest first. An empty from
// yields the full history up to to.
func (c Client) Diff(from, to string) ([]RawCommit, error) {
	rangeSpec := to
	if from != "" {
		rangeSpec = from + "..." + to
	}
	format := strings.Join([]string{"%H", "%h", "%s", "%an", "%ae", "%b"}, "%x1f") + "%x1e"
	out, err := c.run("--no-pager", "log", "--pretty=format:"+format, rangeSpec)
	if err != nil {
		return nil, err
	}

	var commits []RawCommit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		parts := strings.SplitN(record, fieldSep, 6)
		if len(parts) < 5 {
			continue
		}
		commit := RawCommit{
			Hash:        strings.TrimSpace(parts[0]),
			ShortHash:   strings.TrimSpace(parts[1]),
			Subject:     strings.TrimSpace(parts[2]),
			AuthorName:  strings.TrimSpace(parts[3]),
			AuthorEmail: strings.TrimSpace(parts[4]),
		}
		if len(parts) == 6 {
			commit.Body = strings.TrimSpace(parts[5])
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// IsShallowClone reports whether history has been truncated.
func (c Client) IsShallowClone() bool {
	out, err := c.run("rev-parse", "--is-shallow-repository")
	return err == nil && out == "true"
}

// CurrentBranch returns the checked-out branch name.
func (c Client) CurrentBranch() (string, error) {
	return c.run("rev-parse", "--abbrev-ref", "HEAD")
}

// FirstCommitHash returns the root commit of the current branch.
func (c Client) FirstCommitHash() (string, error) {
	out, err := c.run("rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", err
	}
	lines := strings.Split(out, "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// LastMatchingTag returns the most recent tag accepted by filter, or "" when
// none matches. A nil filter accepts every tag.
func (c Client) LastMatchingTag(filter func(string) bool) (string, error) {
	out, err := c.run("for-each-ref", "refs/tags", "--sort=-creatordate", "--format=%(refname:short)")
	if err != nil {
		return "", err
	}
	for _, tag := range strings.Split(out, "\n") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if filter == nil || filter(tag) {
			return tag, nil
		}
	}
	return "", nil
}

// LastTag returns the most recent tag, preferring version-looking ones.
func (c Client) LastTag() (string, error) {
	tag, err := c.LastMatchingTag(func(t string) bool {
		return strings.HasPrefix(t, "v") || (len(t) > 0 && t[0] >= '0' && t[0] <= '9')
	})
	if err != nil || tag != "" {
		return tag, err
	}
	return c.LastMatchingTag(nil)
}

// RemoteSlug derives "owner/repo" from the origin remote.
func (c Client) RemoteSlug() (string, error) {
	out, err := c.run("remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	slug := config.ParseRemoteSlug(out)
	if slug == "" {
		return "", fmt.Errorf("git: cannot parse remote url %q", out)
	}
	return slug, nil
}
