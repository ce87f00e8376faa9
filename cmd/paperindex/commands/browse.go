package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"paperindex/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Search the collection interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, store, err := openService(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		m := tui.New(ctx, svc, cfg.Query.NumResults)
		_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}
