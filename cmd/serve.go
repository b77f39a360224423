package cmd

import (
	"github.com/emrgen/impact/internal/config"
	"github.com/emrgen/impact/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var grpcPort string
	var httpPort string
	var debug bool

	command := &cobra.Command{
		Use:   "serve",
		Short: "start the impact server",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			if cmd.Flag("grpc-port").Changed {
				cfg.GrpcPort = grpcPort
			}
			if cmd.Flag("http-port").Changed {
				cfg.HttpPort = httpPort
			}
			if debug {
				cfg.Debug = true
			}

			server.NewServer(cfg).Start()
		},
	}

	command.Flags().StringVarP(&grpcPort, "grpc-port", "g", "4000", "grpc port")
	command.Flags().StringVarP(&httpPort, "http-port", "p", "4001", "http port")
	command.Flags().BoolVar(&debug, "debug", false, "expose error stacks and log every request in detail")

	return command
}
