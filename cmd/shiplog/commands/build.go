package commands

import (
	"log/slog"
	"os"

	"github.com/shiplog/shiplog/pkg/config"
	"github.com/shiplog/shiplog/pkg/git"
	"github.com/shiplog/shiplog/pkg/provider"
	"github.com/shiplog/shiplog/pkg/release"
)

// buildOrchestrator assembles the full pipeline from the layered config.
func buildOrchestrator() (*release.Orchestrator, *config.Resolved, error) {
	raw, err := mergeFileConfig()
	if err != nil {
		return nil, nil, err
	}

	vcs := git.Client{Dir: repoDir()}
	cfg, err := config.Resolve(raw, vcs)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	gateway, err := provider.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return release.New(gateway, vcs, logger), cfg, nil
}
