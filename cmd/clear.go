package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear <identity-id>",
	Short: "Remove a resident's biometric data",
	Long: `Remove the reference photo and embedding for a resident. The identity
itself is untouched; the resident can be enrolled again later.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	identityID := args[0]

	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	if err := svcs.manager.Clear(cmd.Context(), identityID); err != nil {
		return err
	}
	fmt.Printf("Cleared biometric data for %s\n", identityID)
	return nil
}
