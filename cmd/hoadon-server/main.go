package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"hoadon/pkg/config"
	"hoadon/pkg/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "hoadon",
	})

	var (
		port    = flag.String("port", "3000", "Server port")
		cfgFile = flag.String("c", "", "Config file path")
	)
	flag.Parse()

	cfg, err := config.Build(*cfgFile, nil)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build server", "error", err)
	}

	addr := fmt.Sprintf("0.0.0.0:%s", *port)
	logger.Info("starting server", "addr", addr)
	if err := srv.Start(addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
