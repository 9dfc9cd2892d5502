package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "facegate",
	Short: "Biometric identity verification for condo residents",
	Long: `Facegate is the biometric identity verification service of the condo
management backend. It enrolls residents from reference photos, extracts
face embeddings through an InsightFace-compatible service, and answers
1:1 verification and 1:N identification requests over HTTP or the CLI.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
