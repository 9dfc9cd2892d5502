package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify a probe photo against all enrolled residents",
	Long: `Run a 1:N identification: search the probe photo against every
embedded enrollment and report the best match, if any.

Examples:
  facegate identify --photo doorbell-frame.jpg`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("photo", "", "Path to the probe photo (required)")
	identifyCmd.MarkFlagRequired("photo")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	probe, err := os.ReadFile(mustGetString(cmd, "photo"))
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	decision, _, err := svcs.service.Identify(cmd.Context(), probe)
	if err != nil {
		return err
	}

	if !decision.Matched {
		if decision.Distance != nil {
			fmt.Printf("No match (best distance %.4f, threshold %.4f)\n",
				*decision.Distance, decision.Threshold)
		} else {
			fmt.Println("No match (no embedded enrollments)")
		}
		return nil
	}

	fmt.Printf("Matched:   %s (%s)\n", decision.IdentityID, decision.DisplayName)
	fmt.Printf("Distance:  %.4f (threshold %.4f)\n", *decision.Distance, decision.Threshold)
	return nil
}
