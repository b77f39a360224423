package main

import (
	"os"

	"github.com/emrgen/impact/internal/config"
	"github.com/emrgen/impact/internal/server"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	cfg.Debug = true

	if grpcPort := os.Getenv("GRPC_PORT"); grpcPort != "" {
		cfg.GrpcPort = grpcPort
	}
	if httpPort := os.Getenv("HTTP_PORT"); httpPort != "" {
		cfg.HttpPort = httpPort
	}

	err := server.Start(cfg)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
