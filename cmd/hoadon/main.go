package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"hoadon/pkg/archive"
	"hoadon/pkg/config"
	"hoadon/pkg/pdf"
	"hoadon/pkg/service"
	"hoadon/pkg/timewindow"
)

var (
	cfgFile   string
	logFile   string
	verbose   bool
	entity    string
	mass      bool
	driveLink string
	timeFlag  string
	noUpload  bool
	maxEmails int
	startDate string
	endDate   string
	outputDir string
	template  string
)

var rootCmd = &cobra.Command{
	Use:   "hoadon",
	Short: "Collect Vietnamese e-invoices from email and build tax reports",
	Long: `hoadon fetches invoice emails over IMAP, extracts the document fields
from the attachments, stores them in a local master file and renders
per-company purchase and sales workbooks, optionally uploaded to Google
Drive.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		window, err := timewindow.Parse(timeFlag)
		if err != nil {
			return err
		}
		processor, err := newProcessor(cmd)
		if err != nil {
			return err
		}
		summary, err := processor.Run(cmd.Context(), service.RunOptions{
			Window:    window,
			Entity:    entity,
			Mass:      mass,
			DriveLink: driveLink,
			MaxEmails: maxEmails,
			Upload:    true,
		})
		if err != nil {
			return err
		}
		if verbose {
			pp.Println(summary)
		}
		fmt.Print(renderRun(summary))
		return nil
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch invoice emails and append the extracted documents to the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		window, err := timewindow.Parse(timeFlag)
		if err != nil {
			return err
		}
		processor, err := newProcessor(cmd)
		if err != nil {
			return err
		}
		summary, err := processor.Collect(cmd.Context(), service.CollectOptions{
			Window:    window,
			MaxEmails: maxEmails,
			DriveLink: driveLink,
			Upload:    !noUpload,
		})
		if err != nil {
			return err
		}
		if verbose {
			pp.Println(summary)
		}
		fmt.Print(renderCollect(summary))
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build per-company purchase and sales workbooks from the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var start, end time.Time
		var err error
		if startDate != "" {
			if start, err = time.Parse("2006-01-02", startDate); err != nil {
				return fmt.Errorf("invalid --start-date %q, expected YYYY-MM-DD", startDate)
			}
		}
		if endDate != "" {
			if end, err = time.Parse("2006-01-02", endDate); err != nil {
				return fmt.Errorf("invalid --end-date %q, expected YYYY-MM-DD", endDate)
			}
		}
		processor, err := newProcessor(cmd)
		if err != nil {
			return err
		}
		summary, err := processor.Reports(cmd.Context(), service.ReportOptions{
			Entity:    entity,
			Mass:      mass,
			Start:     start,
			End:       end,
			Output:    outputDir,
			Template:  template,
			DriveLink: driveLink,
			Upload:    !noUpload,
		})
		if err != nil {
			return err
		}
		if verbose {
			pp.Println(summary)
		}
		fmt.Print(renderReports(summary))
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the external tools and configuration the pipeline depends on",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Build(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		fmt.Print(renderDoctor(doctorChecks(cfg)))
		return nil
	},
}

// check is one doctor line: what was probed, whether it is usable and what
// degrades without it.
type check struct {
	name   string
	ok     bool
	detail string
}

func doctorChecks(cfg *config.Config) []check {
	checks := []check{
		{"unrar on PATH", archive.UnrarAvailable(), "rar attachments are skipped"},
		{"pdftoppm on PATH", pdf.Available(), "scanned pdfs cannot be rasterized"},
		{"imap credentials", cfg.ValidateMail() == nil, "collect cannot reach the mailbox"},
		{"openai api key", cfg.OpenAI.APIKey != "" || os.Getenv("OPENAI_API_KEY") != "", "extraction runs on rules only"},
	}

	driveOK := false
	if cfg.Drive.CredentialsFile != "" {
		if _, err := os.Stat(cfg.Drive.CredentialsFile); err == nil {
			driveOK = true
		}
	}
	checks = append(checks, check{"drive credentials", driveOK, "reports stay local"})

	registryOK := false
	if _, err := os.Stat(cfg.Registry); err == nil {
		registryOK = true
	}
	checks = append(checks, check{"company registry", registryOK, "entity names are not canonicalized"})
	return checks
}

func newLogger() (*log.Logger, error) {
	out := io.Writer(os.Stderr)
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(out, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "hoadon",
		Level:           level,
	}), nil
}

func newProcessor(cmd *cobra.Command) (*service.Processor, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Build(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return service.NewProcessor(cfg, logger)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging and raw summary dumps")

	// Pipeline flags shared by the root run and the phase subcommands
	rootCmd.PersistentFlags().StringVar(&entity, "entity", "", "Generate the report for one company name")
	rootCmd.PersistentFlags().BoolVar(&mass, "mass-generation", false, "Generate reports for every company in the data")
	rootCmd.PersistentFlags().StringVar(&driveLink, "drive-link", "", "Google Drive folder link for uploads")
	rootCmd.PersistentFlags().StringVar(&timeFlag, "time", timewindow.DefaultLabel, "Email lookback window ("+joinLabels()+")")

	collectCmd.Flags().IntVar(&maxEmails, "max-emails", 0, "Stop after this many relevant emails (0 is unlimited)")
	collectCmd.Flags().BoolVar(&noUpload, "no-upload", false, "Skip the Drive upload even when a link is configured")

	reportCmd.Flags().StringVar(&startDate, "start-date", "", "Report range start (YYYY-MM-DD, default 30 days before end)")
	reportCmd.Flags().StringVar(&endDate, "end-date", "", "Report range end (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVar(&outputDir, "output-folder", "", "Report output directory (default company_reports)")
	reportCmd.Flags().StringVar(&template, "template", "", "Workbook template whose header row the reports are written into")
	reportCmd.Flags().BoolVar(&noUpload, "no-upload", false, "Skip the Drive upload even when a link is configured")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
