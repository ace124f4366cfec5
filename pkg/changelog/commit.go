// Package changelog defines the commit and contributor model shared by the
// parser, the author resolution engine, the renderer and the release flow.
package changelog

// RawAuthor is a single attribution as it appears on a commit, before any
// identity resolution. Index 0 of a commit's author list is the primary
// author; the rest are co-authors from trailers.
type RawAuthor struct {
	Name  string
	Email string
}

// AuthorInfo is a deduplicated contributor record. Identity is by-reference:
// every commit that references the same email shares the same instance, so
// login resolution through any commit is visible to all of them.
type AuthorInfo struct {
	Name  string
	Email string

	// Login is the platform handle (GitHub/GitLab username), resolved
	// lazily and possibly left empty.
	Login string

	// Commits holds short hashes where this author is the primary author.
	// Co-authorship never accumulates here.
	Commits []string
}

// Reference points at an issue, pull request or commit mentioned in a
// commit message.
type Reference struct {
	Type  string // "issue-or-pr" | "hash"
	Value string
}

// Commit is a parsed conventional commit. Created once per commit in the
// range, mutated exactly once when ResolvedAuthors is populated, read-only
// afterwards.
type Commit struct {
	Hash      string
	ShortHash string

	Message string // raw subject line
	Body    string

	Type        string
	Scope       string
	Description string
	IsBreaking  bool

	Authors         []RawAuthor
	References      []Reference
	ResolvedAuthors []*AuthorInfo
}
