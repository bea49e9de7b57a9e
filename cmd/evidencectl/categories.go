package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List evidence categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cats, err := stores.Categories.GetAll(cmd.Context())
		if err != nil {
			return err
		}
		printCategories(cmd.OutOrStdout(), cats, cfg.CategoryWebcam, cfg.CategoryVideo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
}

// printCategories lists cats, marking the rows the server resolves as webcam and video.
func printCategories(out io.Writer, cats []model.Category, webcamName, videoName string) {
	if len(cats) == 0 {
		fmt.Fprintln(out, "No categories found. Run `evidencectl migrate` first.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND")
	fmt.Fprintln(w, "--\t----\t----")
	for _, c := range cats {
		kind := "-"
		switch c.Name {
		case webcamName:
			kind = model.CategorySessionScoped.String()
		case videoName:
			kind = model.CategorySingleShot.String()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, kind)
	}
	w.Flush()
}
