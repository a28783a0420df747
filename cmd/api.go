package cmd

import (
	"bulkq/internal/api"
	"bulkq/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apiCmd() *cobra.Command {
	var port int
	var command = &cobra.Command{
		Use:   "api",
		Short: "Start API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log.Info().Msgf("API server using redis %s, progress channel prefix %s, storage %s",
				cfg.Redis.Addr, cfg.Redis.ChannelPrefix, cfg.Storage.Driver)

			server, err := api.NewServer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			server.Run(port)
			return nil
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
	return command
}
