package release

import (
	"fmt"
	"strings"
)

// MissingTokenError halts orchestration before any provider call: there is
// no credential to authenticate with. It carries everything a user needs to
// finish the release by hand.
type MissingTokenError struct {
	Provider string   // display name
	EnvVars  []string // expected credential variables
	WebURL   string   // prefilled manual release URL
}

func (e *MissingTokenError) Error() string {
	return fmt.Sprintf("no %s token found (set %s), release the changelog manually: %s",
		e.Provider, strings.Join(e.EnvVars, " or "), e.WebURL)
}

// MissingTagError means the target tag does not exist on the remote yet,
// typically because a local tag has not been pushed.
type MissingTagError struct {
	Provider   string
	Tag        string
	Branch     string // checked-out branch, empty when unknown
	WebURL     string
	CompareURL string
}

func (e *MissingTagError) Error() string {
	msg := fmt.Sprintf("tag %s not found on %s", e.Tag, e.Provider)
	if e.Branch != "" {
		msg += fmt.Sprintf(" (current branch is %s)", e.Branch)
	}
	return fmt.Sprintf("%s; push the tag first or release manually: %s", msg, e.WebURL)
}

// ShallowRepoError distinguishes a truncated-history clone from a genuinely
// empty commit range. It signals an environment misconfiguration, not a
// valid empty release.
type ShallowRepoError struct {
	WebURL     string
	CompareURL string
}

func (e *ShallowRepoError) Error() string {
	return fmt.Sprintf("no commits found in a shallow clone; fetch full history (git fetch --unshallow) or release manually: %s", e.WebURL)
}
