// Package config assembles runtime configuration from a YAML file, HOADON_*
// environment variables and command line flags, in that order of precedence
// reversed (flags win).
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// IMAP holds the mailbox connection settings. The password usually arrives
// through HOADON_IMAP_PASSWORD or .env rather than the config file.
type IMAP struct {
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Mailbox  string `mapstructure:"mailbox"`
}

// OpenAI holds the optional model extractor settings.
type OpenAI struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// Drive holds the upload credentials and default destination.
type Drive struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	FolderLink      string `mapstructure:"folder_link"`
}

type Config struct {
	IMAP     IMAP     `mapstructure:"imap"`
	OpenAI   OpenAI   `mapstructure:"openai"`
	Drive    Drive    `mapstructure:"drive"`
	Registry string   `mapstructure:"registry"`
	DataDir  string   `mapstructure:"data_dir"`
	Output   string   `mapstructure:"output_dir"`
	Archive  string   `mapstructure:"archive_dir"`
	Template string   `mapstructure:"template"`
	Keywords []string `mapstructure:"keywords"`
}

// Build loads configuration. cfgFile may be empty, in which case config.yaml
// is looked up in the working directory and ~/.hoadon. flags, when given,
// override file and environment values key by key.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	gotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HOADON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hoadon")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every known key, which also makes the matching
// HOADON_* variables visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("imap.server", "")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("drive.credentials_file", "")
	v.SetDefault("drive.token_file", "")
	v.SetDefault("drive.folder_link", "")
	v.SetDefault("registry", "companies.yaml")
	v.SetDefault("data_dir", "data_storage")
	v.SetDefault("output_dir", "company_reports")
	v.SetDefault("archive_dir", "organized")
	v.SetDefault("template", "")
	v.SetDefault("keywords", []string{})
}

// ValidateMail checks the settings the collect phase cannot run without.
func (c *Config) ValidateMail() error {
	if c.IMAP.Server == "" {
		return fmt.Errorf("imap.server is not configured")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is not configured")
	}
	if c.IMAP.Password == "" {
		return fmt.Errorf("imap.password is not configured (set HOADON_IMAP_PASSWORD)")
	}
	return nil
}
