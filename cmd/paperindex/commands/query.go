package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"paperindex/internal/service"
	"paperindex/internal/tui"
)

var (
	queryNum       int
	queryFilesOnly bool
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>...",
	Short: "Find the artifacts nearest to a free-text query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List every source file in the collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)
		paths, err := svc.IndexedFilepaths(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryNum, "num", "n", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryFilesOnly, "files", false, "print only the distinct source files")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd, filesCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, store, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	n := cfg.Query.NumResults
	if queryNum > 0 {
		n = queryNum
	}
	res, err := svc.Query(ctx, strings.Join(args, " "), n)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	files := service.UniqueFilepaths(res.Hits)
	switch {
	case queryJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*service.QueryResult
			Filepaths []string `json:"filepaths"`
		}{res, files})
	case queryFilesOnly:
		for _, p := range files {
			fmt.Fprintln(out, p)
		}
	default:
		for i, h := range res.Hits {
			fmt.Fprintf(out, "%2d. %.4f  %-5s  %s\n", i+1, h.Distance, h.Metadata[service.MetaType], h.ID)
			fmt.Fprintf(out, "    %s\n", snippet(tui.Preview(h.Document), 160))
		}
	}
	return nil
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
