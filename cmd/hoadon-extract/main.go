package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"hoadon/pkg/config"
	"hoadon/pkg/service"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "hoadon",
	})

	var cfgFile string
	flag.StringVar(&cfgFile, "c", "", "Config file path")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		logger.Error("invalid usage", "args", args)
		fmt.Fprintf(os.Stderr, "Usage: hoadon-extract [-c config.yaml] <directory>\n")
		os.Exit(1)
	}

	cfg, err := config.Build(cfgFile, nil)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	processor, err := service.NewProcessor(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build processor", "error", err)
	}

	summary, err := processor.ProcessDirectory(context.Background(), args[0])
	if err != nil {
		logger.Fatal("processing failed", "error", err)
	}
	logger.Info("done",
		"documents", summary.Documents,
		"stored", summary.Stored,
		"duplicates", summary.Duplicates,
		"failures", summary.Failures,
	)
}
