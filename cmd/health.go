package cmd

import (
	"context"
	"time"

	"github.com/emrgen/impact/internal/server"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func healthCmd() *cobra.Command {
	var addr string

	command := &cobra.Command{
		Use:     "health",
		Short:   "check the grpc health of a running server",
		Example: "impact health -a localhost:4000",
		Run: func(cmd *cobra.Command, args []string) {
			conn, err := grpc.NewClient(addr,
				grpc.WithTransportCredentials(insecure.NewCredentials()),
				grpc.WithUnaryInterceptor(server.UnaryRequestTimeInterceptor()),
			)
			if err != nil {
				color.Red("%v", err)
				return
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
			if err != nil {
				color.Red("%v", err)
				return
			}
			if res.Status != healthpb.HealthCheckResponse_SERVING {
				color.Yellow("%s", res.Status)
				return
			}
			color.Green("%s", res.Status)
		},
	}

	command.Flags().StringVarP(&addr, "addr", "a", "localhost:4000", "grpc address")

	return command
}
