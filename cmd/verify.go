package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"giveaway/internal/giveaway"
	"giveaway/internal/models"
)

var (
	verifyResultPath string
	verifyOrganizer  string

	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify a published giveaway result offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer initLogger(verbose).Close()
			data, err := os.ReadFile(verifyResultPath)
			if err != nil {
				return fmt.Errorf("read result: %w", err)
			}
			var result models.GiveawayResult
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			if !giveaway.VerifyResult(&result, verifyOrganizer) {
				return fmt.Errorf("result for winner %q does not verify", result.Winner)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: winner %s (index %d of %d), seed %s\n",
				result.Winner, result.WinnerIndex, len(result.Participants), result.RandomSeed)
			return nil
		},
	}
)

func init() {
	verifyCmd.Flags().StringVar(&verifyResultPath, "result", "", "path to the result JSON")
	verifyCmd.Flags().StringVar(&verifyOrganizer, "organizer", "", "organizer ID the result was produced for")
	_ = verifyCmd.MarkFlagRequired("result")
	_ = verifyCmd.MarkFlagRequired("organizer")
}
