// Package config resolves the raw, layered configuration into the immutable
// snapshot used by a single release run.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the raw, partially-filled configuration as collected from flags,
// environment and the repo-local .shiplog.yaml file.
type Config struct {
	Provider    string   `yaml:"provider" mapstructure:"provider"`
	Repo        string   `yaml:"repo" mapstructure:"repo"`
	ReleaseRepo string   `yaml:"releaseRepo" mapstructure:"releaseRepo"`
	BaseURL     string   `yaml:"baseUrl" mapstructure:"baseUrl"`
	BaseAPIURL  string   `yaml:"baseUrlApi" mapstructure:"baseUrlApi"`
	From        string   `yaml:"from" mapstructure:"from"`
	To          string   `yaml:"to" mapstructure:"to"`
	Token       string   `yaml:"-" mapstructure:"token"`
	Name        string   `yaml:"name" mapstructure:"name"`
	Draft       bool     `yaml:"draft" mapstructure:"draft"`
	Prerelease  bool     `yaml:"prerelease" mapstructure:"prerelease"`
	Dry         bool     `yaml:"-" mapstructure:"dry"`
	Output      string   `yaml:"output" mapstructure:"output"`
	Assets      []string `yaml:"assets" mapstructure:"assets"`

	// ProjectID is a GitLab-only override for the numeric project id,
	// skipping the lookup call.
	ProjectID string `yaml:"projectId" mapstructure:"projectId"`
}

// Resolved is the fully-defaulted configuration snapshot. Treat it as
// read-only after Resolve returns.
type Resolved struct {
	Provider    string
	Repo        string // source repo, "owner/name"
	ReleaseRepo string // target repo for the release, usually == Repo
	BaseURL     string
	BaseAPIURL  string
	From        string
	To          string
	Token       string
	TokenEnv    []string // env vars the token is read from
	Name        string
	Draft       bool
	Prerelease  bool
	Dry         bool
	Output      string
	Assets      []string
	ProjectID   string
}

// ConfigurationError reports an unresolvable required setting. It is fatal
// and raised before any network access.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// GitInfo supplies repository-derived defaults. A nil GitInfo skips those
// defaults.
type GitInfo interface {
	RemoteSlug() (string, error)
	LastTag() (string, error)
	FirstCommitHash() (string, error)
}

type providerDefaults struct {
	display  string
	baseURL  string
	apiURL   string
	tokenEnv []string
}

var providers = map[string]providerDefaults{
	"github": {
		display:  "GitHub",
		baseURL:  "https://github.com",
		apiURL:   "https://api.github.com",
		tokenEnv: []string{"GITHUB_TOKEN", "GH_TOKEN"},
	},
	"gitlab": {
		display:  "GitLab",
		baseURL:  "https://gitlab.com",
		apiURL:   "https://gitlab.com/api/v4",
		tokenEnv: []string{"GITLAB_TOKEN", "CI_JOB_TOKEN"},
	},
}

// DisplayName returns the human name for a provider discriminator, falling
// back to the discriminator itself.
func DisplayName(provider string) string {
	if d, ok := providers[provider]; ok {
		return d.display
	}
	return provider
}

// TokenEnvVars lists the env vars consulted for a provider's credential.
func TokenEnvVars(provider string) []string {
	if d, ok := providers[provider]; ok {
		return d.tokenEnv
	}
	return nil
}

// Load reads a repo-local YAML config file. A missing file yields a zero
// Config and no error.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve fills defaults and validates the configuration. The repo slug must
// resolve to a non-empty string or resolution fails.
func Resolve(raw Config, git GitInfo) (*Resolved, error) {
	provider := raw.Provider
	if provider == "" {
		provider = "github"
	}

	repo := raw.Repo
	if repo == "" && git != nil {
		if slug, err := git.RemoteSlug(); err == nil {
			repo = slug
		}
	}
	if repo == "" {
		return nil, &ConfigurationError{Field: "repo", Reason: "could not be resolved; set --repo or a git origin remote"}
	}

	releaseRepo := raw.ReleaseRepo
	if releaseRepo == "" {
		releaseRepo = repo
	}

	defaults := providers[provider]
	baseURL := raw.BaseURL
	if baseURL == "" {
		baseURL = defaults.baseURL
	}
	apiURL := raw.BaseAPIURL
	if apiURL == "" {
		apiURL = defaults.apiURL
	}

	tokenEnv := TokenEnvVars(provider)
	token := raw.Token
	if token == "" {
		for _, env := range tokenEnv {
			if v := os.Getenv(env); v != "" {
				token = v
				break
			}
		}
	}

	from := raw.From
	if from == "" && git != nil {
		if tag, err := git.LastTag(); err == nil && tag != "" {
			from = tag
		} else if first, err := git.FirstCommitHash(); err == nil {
			from = first
		}
	}
	to := raw.To
	if to == "" {
		to = "HEAD"
	}

	name := raw.Name
	if name == "" {
		name = to
	}

	return &Resolved{
		Provider:    provider,
		Repo:        repo,
		ReleaseRepo: releaseRepo,
		BaseURL:     baseURL,
		BaseAPIURL:  apiURL,
		From:        from,
		To:          to,
		Token:       token,
		TokenEnv:    tokenEnv,
		Name:        name,
		Draft:       raw.Draft,
		Prerelease:  raw.Prerelease,
		Dry:         raw.Dry,
		Output:      raw.Output,
		Assets:      raw.Assets,
		ProjectID:   raw.ProjectID,
	}, nil
}

// DisplayName returns the human name of the active provider.
func (r *Resolved) DisplayName() string { return DisplayName(r.Provider) }

// RepoURL is the web URL of the release-target repository.
func (r *Resolved) RepoURL() string {
	return r.BaseURL + "/" + r.ReleaseRepo
}

// CompareURL links the from..to range on the provider's compare view.
func (r *Resolved) CompareURL() string {
	if r.From == "" {
		return r.RepoURL()
	}
	if r.Provider == "gitlab" {
		return fmt.Sprintf("%s/-/compare/%s...%s", r.RepoURL(), r.From, r.To)
	}
	return fmt.Sprintf("%s/compare/%s...%s", r.RepoURL(), r.From, r.To)
}

// CommitURL links a commit hash on the provider's web UI.
func (r *Resolved) CommitURL(hash string) string {
	if r.Provider == "gitlab" {
		return fmt.Sprintf("%s/-/commit/%s", r.BaseURL+"/"+r.Repo, hash)
	}
	return fmt.Sprintf("%s/commit/%s", r.BaseURL+"/"+r.Repo, hash)
}

// IssueURL links an issue or pull request reference like "#42" on the
// source repository's web UI.
func (r *Resolved) IssueURL(ref string) string {
	number := strings.TrimPrefix(ref, "#")
	if r.Provider == "gitlab" {
		return fmt.Sprintf("%s/-/issues/%s", r.BaseURL+"/"+r.Repo, number)
	}
	return fmt.Sprintf("%s/issues/%s", r.BaseURL+"/"+r.Repo, number)
}

// NewReleaseURL builds the manual release-creation URL, prefilled with the
// rendered body so a user can finish the release by hand when orchestration
// halts.
func (r *Resolved) NewReleaseURL(body string) string {
	if r.Provider == "gitlab" {
		q := url.Values{}
		q.Set("release[tag_name]", r.To)
		q.Set("release[description]", body)
		return fmt.Sprintf("%s/-/releases/new?%s", r.RepoURL(), q.Encode())
	}
	q := url.Values{}
	q.Set("tag", r.To)
	q.Set("title", r.Name)
	q.Set("body", body)
	if r.Prerelease {
		q.Set("prerelease", "true")
	}
	return fmt.Sprintf("%s/releases/new?%s", r.RepoURL(), q.Encode())
}

// ParseRemoteSlug extracts "owner/repo" from a git remote URL. Supports
// https, ssh and scp-like forms.
func ParseRemoteSlug(remote string) string {
	remote = strings.TrimSpace(remote)
	remote = strings.TrimSuffix(remote, ".git")
	if i := strings.Index(remote, "://"); i >= 0 {
		remote = remote[i+3:]
	}
	if i := strings.Index(remote, "@"); i >= 0 {
		remote = remote[i+1:]
	}
	remote = strings.ReplaceAll(remote, ":", "/")
	parts := strings.Split(remote, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
