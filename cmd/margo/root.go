package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbosity int

	rootCmd = &cobra.Command{
		Use:   "margo",
		Short: "Identify file types with magic signature rules",
		Long: `margo compiles corpora of magic signature rules and matches them
against files, reporting the best description plus MIME type and
file-extension hints.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command; main calls it exactly once.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(checkCmd)
}

// setupLogger maps -v counts to zerolog levels. Without any -v the
// LOG_LEVEL environment variable is consulted.
func setupLogger(verbosity int) {
	level := zerolog.WarnLevel
	switch verbosity {
	case 0:
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			if l, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil {
				level = l
			}
		}
	case 1:
		level = zerolog.InfoLevel
	case 2:
		level = zerolog.DebugLevel
	default:
		level = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()
}
