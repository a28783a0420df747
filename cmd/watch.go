package cmd

import (
	"bulkq/internal/watch"
	"time"

	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var (
		userID      string
		asJSON      bool
		baseBackoff time.Duration
		maxBackoff  time.Duration
	)

	var command = &cobra.Command{
		Use:   "watch",
		Short: "Follow a user's queue progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch.Run(watch.Config{
				UserID:      userID,
				JSON:        asJSON,
				BaseBackoff: baseBackoff,
				MaxBackoff:  maxBackoff,
				Out:         cmd.OutOrStdout(),
			})
		},
	}

	command.Flags().StringVarP(&userID, "user", "u", "", "User whose queue to follow")
	command.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON events")
	command.Flags().DurationVar(&baseBackoff, "base-backoff", 500*time.Millisecond, "Base backoff duration")
	command.Flags().DurationVar(&maxBackoff, "max-backoff", 30*time.Second, "Max backoff duration")
	_ = command.MarkFlagRequired("user")

	return command
}
