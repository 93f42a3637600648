package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartlibrary/internal/catalog"
	"smartlibrary/internal/seed"
	"smartlibrary/internal/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the sample books to the catalog",
	Long: `Adds books from a YAML file (the four built-in sample books by default).
Books whose ISBN is already on the shelf are skipped, so seeding twice is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		books, err := loadSeed(seedFile)
		if err != nil {
			return err
		}

		st, err := store.Open(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := seed.Apply(cmd.Context(), catalog.NewService(st), books)
		if err != nil {
			return err
		}
		logger.Info("seed complete", zap.Int("added", res.Added), zap.Int("skipped", res.Skipped))
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d books, skipped %d already present\n", res.Added, res.Skipped)
		return nil
	},
}

func loadSeed(path string) ([]catalog.NewBook, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML file with a top-level books list")
}
