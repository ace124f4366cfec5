// Package markdown renders parsed commits into the grouped release body.
package markdown

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
)

// section maps a commit type to its changelog heading, in render order.
type section struct {
	Type  string
	Title string
}

var sections = []section{
	{"feat", "Features"},
	{"fix", "Bug Fixes"},
	{"perf", "Performance"},
	{"refactor", "Refactors"},
	{"docs", "Documentation"},
	{"build", "Build"},
	{"chore", "Chores"},
	{"test", "Tests"},
	{"ci", "CI"},
}

// Render produces the markdown body for a release. Breaking commits are
// grouped under their own leading section and do not repeat in their type
// section. Scoped entries nest under a bold scope label.
func Render(commits []*changelog.Commit, contributors []*changelog.AuthorInfo, cfg *config.Resolved) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s\n\n", cfg.Name)
	fmt.Fprintf(&b, "[compare changes](%s)\n", cfg.CompareURL())

	var breaking, regular []*changelog.Commit
	for _, c := range commits {
		if c.IsBreaking {
			breaking = append(breaking, c)
		} else {
			regular = append(regular, c)
		}
	}

	writeSection(&b, "Breaking Changes", breaking, cfg)
	for _, s := range sections {
		var group []*changelog.Commit
		for _, c := range regular {
			if c.Type == s.Type {
				group = append(group, c)
			}
		}
		writeSection(&b, s.Title, group, cfg)
	}

	if len(contributors) > 0 {
		b.WriteString("\n### Contributors\n\n")
		for _, a := range contributors {
			b.WriteString(contributorLine(a, cfg))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeSection(b *strings.Builder, title string, commits []*changelog.Commit, cfg *config.Resolved) {
	if len(commits) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)

	scoped := map[string][]*changelog.Commit{}
	var scopes []string
	for _, c := range commits {
		if c.Scope == "" {
			fmt.Fprintf(b, "- %s\n", entry(c, cfg))
			continue
		}
		if _, ok := scoped[c.Scope]; !ok {
			scopes = append(scopes, c.Scope)
		}
		scoped[c.Scope] = append(scoped[c.Scope], c)
	}

	sort.Strings(scopes)
	for _, scope := range scopes {
		fmt.Fprintf(b, "- **%s:**\n", scope)
		for _, c := range scoped[scope] {
			fmt.Fprintf(b, "  - %s\n", entry(c, cfg))
		}
	}
}

// entry renders one commit line: the description followed by its linked
// references, issue/PR refs first, the commit hash last.
func entry(c *changelog.Commit, cfg *config.Resolved) string {
	var links []string
	for _, ref := range c.References {
		switch ref.Type {
		case "issue-or-pr":
			links = append(links, fmt.Sprintf("[%s](%s)", ref.Value, cfg.IssueURL(ref.Value)))
		case "hash":
			links = append(links, fmt.Sprintf("[%s](%s)", c.ShortHash, cfg.CommitURL(c.Hash)))
		}
	}
	if len(links) == 0 {
		links = append(links, fmt.Sprintf("[%s](%s)", c.ShortHash, cfg.CommitURL(c.Hash)))
	}
	return fmt.Sprintf("%s (%s)", c.Description, strings.Join(links, ", "))
}

func contributorLine(a *changelog.AuthorInfo, cfg *config.Resolved) string {
	switch {
	case a.Login != "":
		return fmt.Sprintf("- %s ([@%s](%s/%s))", a.Name, a.Login, cfg.BaseURL, a.Login)
	case a.Email != "":
		return fmt.Sprintf("- %s <%s>", a.Name, a.Email)
	default:
		return fmt.Sprintf("- %s", a.Name)
	}
}
