package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/condoplex/facegate/internal/biometric"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity-id>",
	Short: "Enroll a resident from a reference photo",
	Long: `Enroll a resident by storing a reference photo and extracting its face
embedding. If extraction fails the photo is still stored and the
enrollment stays in the photo_only state; re-run enroll or reenroll-all
to retry extraction.

Examples:
  facegate enroll alice --photo alice.jpg --name "Alice Nováková"
  facegate enroll alice --photo alice-new.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("photo", "", "Path to the reference photo (required)")
	enrollCmd.Flags().String("name", "", "Display name for the resident")
	enrollCmd.MarkFlagRequired("photo")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	identityID := args[0]
	photoPath := mustGetString(cmd, "photo")
	displayName := mustGetString(cmd, "name")

	photo, err := os.ReadFile(photoPath)
	if err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}

	svcs, err := buildServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svcs.Close()

	rec, err := svcs.manager.Enroll(cmd.Context(), identityID, displayName, photo)
	if err != nil {
		if rec != nil && errors.Is(err, biometric.ErrNoFaceDetected) {
			fmt.Printf("Photo stored for %s, but no face was detected. State: %s\n", identityID, rec.State())
			return nil
		}
		return err
	}

	fmt.Printf("Enrolled %s\n", identityID)
	fmt.Printf("  State:      %s\n", rec.State())
	fmt.Printf("  Model:      %s\n", rec.Model)
	fmt.Printf("  Confidence: %.3f\n", rec.Confidence)
	return nil
}
