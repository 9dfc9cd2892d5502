package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <identity-id>",
	Short: "Verify a probe photo against one resident's enrollment",
	Long: `Run a 1:1 verification: compare a probe photo against the stored
embedding of a single resident.

Examples:
  facegate verify alice --photo doorbell-frame.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("photo", "", "Path to the probe photo (required)")
	verifyCmd.MarkFlagRequired("photo")
}

func runVerify(cmd *cobra.Command, args []string) error {
	identityID := args[0]
	probe, err := os.ReadFile(mustGetString(cmd, "photo"))
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	decision, err := svcs.service.Verify(cmd.Context(), identityID, probe)
	if err != nil {
		return err
	}

	fmt.Printf("Identity:  %s\n", decision.IdentityID)
	fmt.Printf("Matched:   %t\n", decision.Matched)
	fmt.Printf("Mode:      %s\n", decision.Mode)
	if decision.Distance != nil {
		fmt.Printf("Distance:  %.4f (threshold %.4f)\n", *decision.Distance, decision.Threshold)
	}
	return nil
}
