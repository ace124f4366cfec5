package provider

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/shiplog/shiplog/pkg/changelog"
	"github.com/shiplog/shiplog/pkg/config"
)

// identityLookup is the provider-specific slice of the identity API the
// resolution engine needs. Both adapters implement it.
type identityLookup interface {
	// loginByEmail queries the provider's user search by email.
	loginByEmail(ctx context.Context, email string) (string, error)
	// loginByCommit inspects the commit-detail endpoint and returns the
	// platform name of the commit's author.
	loginByCommit(ctx context.Context, hash string) (string, error)
}

// Author names matching any of these fragments are excluded outright.
var botPatterns = []string{"[bot]", "dependabot", "(bot)"}

func isBot(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range botPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// resolveAuthors is the author resolution engine. It merges raw attributions
// into one shared AuthorInfo per email, credits commit hashes to primary
// authors only, resolves logins concurrently when a token is available, and
// returns the contributor list sorted and deduplicated.
//
// Every lookup failure degrades to an unresolved login; nothing here aborts.
func resolveAuthors(ctx context.Context, commits []*changelog.Commit, cfg *config.Resolved, lookup identityLookup, logger *slog.Logger) []*changelog.AuthorInfo {
	byEmail := map[string]*changelog.AuthorInfo{}
	var order []*changelog.AuthorInfo

	for _, c := range commits {
		for i, raw := range c.Authors {
			if raw.Name == "" || raw.Email == "" || isBot(raw.Name) {
				continue
			}
			info, seen := byEmail[raw.Email]
			if !seen {
				info = &changelog.AuthorInfo{Name: raw.Name, Email: raw.Email}
				byEmail[raw.Email] = info
				order = append(order, info)
			}
			// Only the primary author accumulates commit credit.
			if i == 0 {
				info.Commits = append(info.Commits, c.ShortHash)
			}
			c.ResolvedAuthors = append(c.ResolvedAuthors, info)
		}
	}

	// Login resolution is skipped without a token; that is not an error.
	if cfg.Token != "" && lookup != nil {
		g, gctx := errgroup.WithContext(ctx)
		for _, info := range order {
			info := info
			g.Go(func() error {
				resolveLogin(gctx, info, lookup, logger)
				return nil
			})
		}
		_ = g.Wait()
	}

	coll := collate.New(language.Und)
	sort.SliceStable(order, func(i, j int) bool {
		return coll.CompareString(sortKey(order[i]), sortKey(order[j])) < 0
	})

	// Two emails can resolve to the same platform identity; collapse them,
	// keeping the first in sort order.
	seenLogin := map[string]bool{}
	seenName := map[string]bool{}
	var out []*changelog.AuthorInfo
	for _, a := range order {
		if a.Login != "" {
			if seenLogin[a.Login] {
				continue
			}
			seenLogin[a.Login] = true
		} else {
			if seenName[a.Name] {
				continue
			}
			seenName[a.Name] = true
		}
		out = append(out, a)
	}
	return out
}

func sortKey(a *changelog.AuthorInfo) string {
	if a.Login != "" {
		return a.Login
	}
	return a.Name
}

func resolveLogin(ctx context.Context, info *changelog.AuthorInfo, lookup identityLookup, logger *slog.Logger) {
	if info.Login != "" {
		return
	}
	login, err := lookup.loginByEmail(ctx, info.Email)
	if err == nil && login != "" {
		info.Login = login
		return
	}
	if len(info.Commits) > 0 {
		login, err = lookup.loginByCommit(ctx, info.Commits[0])
		if err == nil && login != "" {
			info.Login = login
			return
		}
	}
	if err != nil {
		logger.Warn("Login resolution failed", "email", info.Email, "error", err)
	}
}
