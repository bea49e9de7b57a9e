package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema and seed the webcam and video categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the store already created the schema.
		cats, err := repository.ResolveCategories(cmd.Context(), stores.Categories, cfg.CategoryWebcam, cfg.CategoryVideo, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema ready. %s=%d %s=%d\n",
			cfg.CategoryWebcam, cats.ID(model.CategorySessionScoped),
			cfg.CategoryVideo, cats.ID(model.CategorySingleShot))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
