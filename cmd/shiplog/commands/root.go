package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shiplog/shiplog/pkg/config"
	"github.com/shiplog/shiplog/pkg/release"
	"github.com/shiplog/shiplog/pkg/version"
)

var (
	cfgFile string
	flags   config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shiplog",
	Short: "Turn a commit range into a hosted release",
	Long: `shiplog - Changelog and Release Automation

Resolve. Render. Release.`,
	Version: version.Current,
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cfg, err := buildOrchestrator()
		if err != nil {
			return err
		}

		rc, outcome, err := o.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		switch outcome.Kind {
		case release.OutcomeDryRun:
			fmt.Println(rc.Markdown)
			fmt.Println(dimStyle.Render("(dry run, nothing sent)"))
		case release.OutcomeOutputSaved:
			fmt.Printf("Changelog written to %s\n", cfg.Output)
		case release.OutcomeReleased:
			fmt.Printf("Released %s on %s: %s/releases\n", cfg.To, cfg.DisplayName(), cfg.RepoURL())
			if len(outcome.Assets) > 0 {
				fmt.Printf("Uploaded %d asset(s)\n", len(outcome.Assets))
			}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default .shiplog.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.Provider, "provider", "", "Release provider (github, gitlab)")
	rootCmd.PersistentFlags().StringVar(&flags.Repo, "repo", "", "Source repository (owner/name)")
	rootCmd.PersistentFlags().StringVar(&flags.ReleaseRepo, "release-repo", "", "Target repository for the release, if different")
	rootCmd.PersistentFlags().StringVar(&flags.From, "from", "", "Start of the commit range (default: last tag)")
	rootCmd.PersistentFlags().StringVar(&flags.To, "to", "", "End of the commit range (default: HEAD)")
	rootCmd.PersistentFlags().StringVar(&flags.Token, "token", "", "API token (default: provider env vars)")
	rootCmd.PersistentFlags().StringVar(&flags.Name, "name", "", "Release name (default: the target tag)")
	rootCmd.PersistentFlags().BoolVar(&flags.Draft, "draft", false, "Mark the release as a draft")
	rootCmd.PersistentFlags().BoolVar(&flags.Prerelease, "prerelease", false, "Mark the release as a prerelease")
	rootCmd.Flags().BoolVar(&flags.Dry, "dry", false, "Render only, send nothing")
	rootCmd.Flags().StringVar(&flags.Output, "output", "", "Write the changelog to a file instead of releasing")
	rootCmd.Flags().StringSliceVar(&flags.Assets, "assets", nil, "Build artifacts to upload (globs, comma-separated)")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.AddCommand(ShowCmd)
}

func initConfig() {
	viper.SetEnvPrefix("shiplog")
	viper.AutomaticEnv()
}

// mergeFileConfig layers configuration: flags win over SHIPLOG_* env vars,
// which win over the repo-local config file.
func mergeFileConfig() (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = ".shiplog.yaml"
	}
	file, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	merged := flags
	if merged.Provider == "" {
		merged.Provider = viper.GetString("provider")
	}
	if merged.Token == "" {
		merged.Token = viper.GetString("token")
	}
	if merged.Repo == "" {
		merged.Repo = viper.GetString("repo")
	}
	if merged.Provider == "" {
		merged.Provider = file.Provider
	}
	if merged.Repo == "" {
		merged.Repo = file.Repo
	}
	if merged.ReleaseRepo == "" {
		merged.ReleaseRepo = file.ReleaseRepo
	}
	if merged.BaseURL == "" {
		merged.BaseURL = file.BaseURL
	}
	if merged.BaseAPIURL == "" {
		merged.BaseAPIURL = file.BaseAPIURL
	}
	if merged.From == "" {
		merged.From = file.From
	}
	if merged.To == "" {
		merged.To = file.To
	}
	if merged.Name == "" {
		merged.Name = file.Name
	}
	if merged.Output == "" {
		merged.Output = file.Output
	}
	if merged.ProjectID == "" {
		merged.ProjectID = file.ProjectID
	}
	if len(merged.Assets) == 0 {
		merged.Assets = file.Assets
	}
	if !merged.Draft {
		merged.Draft = file.Draft
	}
	if !merged.Prerelease {
		merged.Prerelease = file.Prerelease
	}
	return merged, nil
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("SHIPLOG %s", version.Current)))
	fmt.Println("Changelog and release automation for GitHub and GitLab.")

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(titleStyle.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Println("")

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println("")
}

// repoDir resolves the working directory the git commands run in.
func repoDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return filepath.Clean(dir)
}
