// Package parse turns raw git log output into structured conventional
// commits. It covers the common `type(scope)!: description` shape plus the
// trailers the release flow cares about, not the full grammar.
package parse

import (
	"regexp"
	"strings"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/git"
)

var (
	conventionalRe = regexp.MustCompile(`^(?P<type>[a-zA-Z]+)(\((?P<scope>[^)]*)\))?(?P<breaking>!)?:\s*(?P<description>.+)$`)
	coAuthorRe     = regexp.MustCompile(`(?im)^\s*co-authored-by:\s*(?P<name>[^<>]+)(<(?P<email>[^<>]*)>)?`)
	issueRe        = regexp.MustCompile(`#(\d+)`)
	trailingRefRe  = regexp.MustCompile(`\s*\(#\d+\)`)
	breakingBodyRe = regexp.MustCompile(`(?m)^BREAKING[ -]CHANGE:`)
)

// Commit parses a single raw commit. Returns nil when the subject does not
// follow the conventional shape; those commits are excluded from the
// changelog.
func Commit(raw git.RawCommit) *changelog.Commit {
	m := conventionalRe.FindStringSubmatch(raw.Subject)
	if m == nil {
		return nil
	}
	groups := map[string]string{}
	for i, name := range conventionalRe.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}

	c := &changelog.Commit{
		Hash:        raw.Hash,
		ShortHash:   raw.ShortHash,
		Message:     raw.Subject,
		Body:        raw.Body,
		Type:        strings.ToLower(groups["type"]),
		Scope:       strings.TrimSpace(groups["scope"]),
		Description: strings.TrimSpace(groups["description"]),
		IsBreaking:  groups["breaking"] == "!" || breakingBodyRe.MatchString(raw.Body),
	}

	c.Authors = append(c.Authors, changelog.RawAuthor{
		Name:  strings.TrimSpace(raw.AuthorName),
		Email: strings.TrimSpace(raw.AuthorEmail),
	})
	for _, ca := range coAuthorRe.FindAllStringSubmatch(raw.Body, -1) {
		author := changelog.RawAuthor{}
		for i, name := range coAuthorRe.SubexpNames() {
			switch name {
			case "name":
				author.Name = strings.TrimSpace(ca[i])
			case "email":
				author.Email = strings.TrimSpace(ca[i])
			}
		}
		c.Authors = append(c.Authors, author)
	}

	for _, ref := range issueRe.FindAllStringSubmatch(c.Description, -1) {
		c.References = append(c.References, changelog.Reference{Type: "issue-or-pr", Value: "#" + ref[1]})
	}
	c.References = append(c.References, changelog.Reference{Type: "hash", Value: c.ShortHash})
	// The parenthesized "(#42)" squash suffix moves into References; the
	// renderer links it instead of echoing the raw text.
	c.Description = strings.TrimSpace(trailingRefRe.ReplaceAllString(c.Description, ""))

	return c
}

// Commits parses a range of raw commits, dropping non-conventional ones.
// Order is preserved.
func Commits(raw []git.RawCommit) []*changelog.Commit {
	var out []*changelog.Commit
	for _, r := range raw {
		if c := Commit(r); c != nil {
			out = append(out, c)
		}
	}
	return out
}
