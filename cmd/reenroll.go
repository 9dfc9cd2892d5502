package cmd

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/condoplex/facegate/internal/database"
)

var reenrollCmd = &cobra.Command{
	Use:   "reenroll-all",
	Short: "Re-extract embeddings for all enrolled residents",
	Long: `Re-run embedding extraction from the stored reference photos of all
residents. Use after switching the extractor model: old embeddings are
replaced in place and residents never leave the roster.

Examples:
  # After changing EXTRACTOR_MODEL
  facegate reenroll-all

  # Limit extraction concurrency
  facegate reenroll-all --concurrency 2`,
	RunE: runReenrollAll,
}

func init() {
	rootCmd.AddCommand(reenrollCmd)

	reenrollCmd.Flags().Int("concurrency", 4, "Number of concurrent extraction calls")
	reenrollCmd.Flags().Bool("force", false, "Re-extract even when the stored model already matches")
}

func runReenrollAll(cmd *cobra.Command, args []string) error {
	concurrency := mustGetInt(cmd, "concurrency")
	if concurrency < 1 {
		concurrency = 1
	}

	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	records, err := svcs.store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing enrollments: %w", err)
	}

	force := mustGetBool(cmd, "force")
	model := svcs.client.Model()
	dim := svcs.cfg.Extractor.Dim

	var withPhoto []string
	var skipped int
	for _, r := range records {
		if r.State() == database.StateEmpty {
			continue
		}
		// Already extracted with the deployed model; nothing to redo.
		if !force && r.State() == database.StateEmbedded && r.Model == model && r.Dim == dim {
			skipped++
			continue
		}
		withPhoto = append(withPhoto, r.IdentityID)
	}
	if skipped > 0 {
		fmt.Printf("Skipping %d enrollment(s) already extracted with %s\n", skipped, model)
	}
	if len(withPhoto) == 0 {
		fmt.Println("No enrollments with photos to process")
		return nil
	}

	fmt.Printf("Re-extracting embeddings for %d resident(s)\n\n", len(withPhoto))

	bar := progressbar.NewOptions(len(withPhoto),
		progressbar.OptionSetDescription("Re-extracting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("residents"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var successCount, errorCount int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, identityID := range withPhoto {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := svcs.manager.Reenroll(cmd.Context(), id)

			mu.Lock()
			if err != nil {
				errorCount++
				fmt.Printf("\n%s: %v\n", id, err)
			} else {
				successCount++
			}
			mu.Unlock()
			bar.Add(1)
		}(identityID)
	}
	wg.Wait()
	fmt.Println()

	fmt.Printf("\nDone: %d succeeded, %d failed\n", successCount, errorCount)
	if errorCount > 0 {
		return fmt.Errorf("%d enrollment(s) failed to re-extract", errorCount)
	}
	return nil
}
