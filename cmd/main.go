package main

import (
	"io"
	"os"

	"github.com/google/logger"
	"github.com/spf13/cobra"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:          "giveaway",
		Short:        "Verifiable commit-reveal giveaways",
		SilenceUsage: true,
	}
)

// initLogger sets up the default logger of the offline commands. Errors
// always reach stderr; Info and Warning lines go to stdout when v is set and
// are discarded otherwise.
func initLogger(v bool) *logger.Logger {
	return logger.Init("giveaway", v, false, io.Discard)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stdout")
	rootCmd.AddCommand(serveCmd, verifyCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
