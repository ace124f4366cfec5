package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showJSON bool

// ShowCmd renders the changelog without touching the provider's release
// state. With --json it emits the machine-consumable summary object.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Render the changelog for the commit range without releasing",
	RunE: func(cmd *cobra.Command, args []string) error {
		o, cfg, err := buildOrchestrator()
		if err != nil {
			return err
		}

		rc, err := o.Prepare(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if showJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rc.Summary())
		}

		fmt.Println(rc.Markdown)
		return nil
	},
}

func init() {
	ShowCmd.Flags().BoolVar(&showJSON, "json", false, "Emit a JSON summary instead of markdown")
}
