package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestBuildDefaults(t *testing.T) {
	cfg, err := Build(writeConfig(t, "{}\n"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.IMAP.Port != 993 {
		t.Errorf("imap port = %d, want 993", cfg.IMAP.Port)
	}
	if cfg.IMAP.Mailbox != "INBOX" {
		t.Errorf("mailbox = %q, want INBOX", cfg.IMAP.Mailbox)
	}
	if cfg.DataDir != "data_storage" {
		t.Errorf("data dir = %q", cfg.DataDir)
	}
	if cfg.Output != "company_reports" {
		t.Errorf("output dir = %q", cfg.Output)
	}
}

func TestBuildReadsFile(t *testing.T) {
	path := writeConfig(t, `
imap:
  server: imap.example.com
  username: ketoan@example.com
  mailbox: Invoices
registry: /etc/hoadon/companies.yaml
keywords:
  - hóa đơn
  - billing
`)
	cfg, err := Build(path, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.IMAP.Server != "imap.example.com" {
		t.Errorf("server = %q", cfg.IMAP.Server)
	}
	if cfg.IMAP.Mailbox != "Invoices" {
		t.Errorf("mailbox = %q", cfg.IMAP.Mailbox)
	}
	if len(cfg.Keywords) != 2 || cfg.Keywords[0] != "hóa đơn" {
		t.Errorf("keywords = %v", cfg.Keywords)
	}
}

func TestBuildEnvOverridesFile(t *testing.T) {
	t.Setenv("HOADON_IMAP_PASSWORD", "secret-from-env")
	path := writeConfig(t, "imap:\n  server: imap.example.com\n")

	cfg, err := Build(path, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.IMAP.Password != "secret-from-env" {
		t.Errorf("password = %q, want env value", cfg.IMAP.Password)
	}
}

func TestBuildFlagOverrides(t *testing.T) {
	path := writeConfig(t, "data_dir: from_file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data_dir", "", "")
	if err := flags.Parse([]string{"--data_dir", "from_flag"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Build(path, flags)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.DataDir != "from_flag" {
		t.Errorf("data dir = %q, want flag value", cfg.DataDir)
	}
}

func TestBuildMissingExplicitFile(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidateMail(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateMail(); err == nil {
		t.Error("expected error for empty mail settings")
	}
	cfg.IMAP = IMAP{Server: "s", Username: "u", Password: "p"}
	if err := cfg.ValidateMail(); err != nil {
		t.Errorf("ValidateMail: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
