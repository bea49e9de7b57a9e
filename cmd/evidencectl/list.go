package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

var (
	listUser  int64
	listDay   string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's evidence records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listUser <= 0 {
			return fmt.Errorf("--user is required")
		}
		records, err := stores.Evidence.GetAll(cmd.Context(), &dto.EvidenceFilter{
			UserID: listUser,
			Day:    listDay,
			Limit:  listLimit,
		})
		if err != nil {
			return err
		}
		printEvidence(cmd.OutOrStdout(), records)
		return nil
	},
}

func init() {
	listCmd.Flags().Int64Var(&listUser, "user", 0, "User id")
	listCmd.Flags().StringVar(&listDay, "day", "", "Only records of this day (YYYY-MM-DD)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum number of records")
	rootCmd.AddCommand(listCmd)
}

func printEvidence(out io.Writer, records []model.Evidence) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No evidence found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tDAY\tCATEGORY\tFILES\tDONE\tTITLE")
	fmt.Fprintln(w, "--\t---\t--------\t-----\t----\t-----")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%t\t%s\n", r.ID, r.ScopeDay, r.CategoryID, len(r.FileURLs), r.Done, strings.TrimSpace(r.Title))
	}
	w.Flush()
}
