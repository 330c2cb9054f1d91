package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Config represents the CLI configuration.
type Config struct {
	API         string            `json:"api,omitempty"         yaml:"api,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"     yaml:"headers,omitempty"`
	Credentials string            `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Output      string            `json:"output,omitempty"      yaml:"output,omitempty"`
	Debug       bool              `json:"debug,omitempty"       yaml:"debug,omitempty"`

	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	Username       string     `json:"username,omitempty"         yaml:"username,omitempty"`

	Cache CacheConfig `json:"cache,omitzero" yaml:"cache,omitempty"`
}

// CacheConfig selects the response cache backend used by list commands.
type CacheConfig struct {
	Type       string `json:"type,omitempty"        yaml:"type,omitempty"`
	NATSURL    string `json:"nats_url,omitempty"    yaml:"nats_url,omitempty"`
	NATSBucket string `json:"nats_bucket,omitempty" yaml:"nats_bucket,omitempty"`
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty"`
}

// configKey describes one key accepted by config set/unset.
type configKey struct {
	set   func(config *Config, value string) error
	unset func(config *Config)
}

var configKeys = map[string]configKey{
	"api": {
		set:   func(c *Config, v string) error { c.API = v; return nil },
		unset: func(c *Config) { c.API = "" },
	},
	"credentials": {
		set:   func(c *Config, v string) error { c.Credentials = v; return nil },
		unset: func(c *Config) { c.Credentials = "" },
	},
	"output": {
		set: func(c *Config, v string) error {
			switch v {
			case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
				c.Output = v

				return nil
			default:
				return fmt.Errorf("%w: %q", constants.ErrInvalidOutput, v)
			}
		},
		unset: func(c *Config) { c.Output = "" },
	},
	"debug": {
		set: func(c *Config, v string) error {
			debug, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("parsing debug: %w", err)
			}

			c.Debug = debug

			return nil
		},
		unset: func(c *Config) { c.Debug = false },
	},
	"token": {
		set:   func(c *Config, v string) error { c.Token = v; return nil },
		unset: func(c *Config) { c.Token, c.RefreshToken, c.TokenExpiresAt = "", "", nil },
	},
	"token_url": {
		set:   func(c *Config, v string) error { c.TokenURL = v; return nil },
		unset: func(c *Config) { c.TokenURL = "" },
	},
	"client_id": {
		set:   func(c *Config, v string) error { c.ClientID = v; return nil },
		unset: func(c *Config) { c.ClientID = "" },
	},
	"client_secret": {
		set:   func(c *Config, v string) error { c.ClientSecret = v; return nil },
		unset: func(c *Config) { c.ClientSecret = "" },
	},
	"cache.type": {
		set:   func(c *Config, v string) error { c.Cache.Type = v; return nil },
		unset: func(c *Config) { c.Cache.Type = "" },
	},
	"cache.nats_url": {
		set:   func(c *Config, v string) error { c.Cache.NATSURL = v; return nil },
		unset: func(c *Config) { c.Cache.NATSURL = "" },
	},
	"cache.nats_bucket": {
		set:   func(c *Config, v string) error { c.Cache.NATSBucket = v; return nil },
		unset: func(c *Config) { c.Cache.NATSBucket = "" },
	},
	"cache.sqlite_path": {
		set:   func(c *Config, v string) error { c.Cache.SQLitePath = v; return nil },
		unset: func(c *Config) { c.Cache.SQLitePath = "" },
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage the fetchx CLI configuration stored in ~/.fetchx/config.yml.

Keys: api, credentials, output, debug, token, token_url, client_id, client_secret,
cache.type, cache.nats_url, cache.nats_bucket, cache.sqlite_path and header.NAME.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskSecrets(loadConfig())
			out := cmd.OutOrStdout()

			switch format := outputFormat(); format {
			case constants.FormatJSON:
				return StandardJSONRenderer(out, config)
			case constants.FormatYAML:
				return StandardYAMLRenderer(out, config)
			default:
				return displayConfigTable(out, config)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if err := setConfigValue(config, args[0], args[1]); err != nil {
				return err
			}

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if err := unsetConfigValue(config, args[0]); err != nil {
				return err
			}

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

func setConfigValue(config *Config, key, value string) error {
	if name, ok := strings.CutPrefix(key, "header."); ok && name != "" {
		if config.Headers == nil {
			config.Headers = make(map[string]string)
		}

		config.Headers[name] = value

		return nil
	}

	entry, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	return entry.set(config, value)
}

func unsetConfigValue(config *Config, key string) error {
	if name, ok := strings.CutPrefix(key, "header."); ok && name != "" {
		delete(config.Headers, name)

		return nil
	}

	entry, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
	}

	entry.unset(config)

	return nil
}

// loadConfig reads the configuration through viper so flags and FETCHX_* variables
// override the file.
func loadConfig() *Config {
	config := &Config{
		API:          viper.GetString("api"),
		Headers:      viper.GetStringMapString("headers"),
		Credentials:  viper.GetString("credentials"),
		Output:       viper.GetString("output"),
		Debug:        viper.GetBool("debug"),
		Token:        viper.GetString("token"),
		RefreshToken: viper.GetString("refresh_token"),
		TokenURL:     viper.GetString("token_url"),
		ClientID:     viper.GetString("client_id"),
		ClientSecret: viper.GetString("client_secret"),
		Username:     viper.GetString("username"),
		Cache: CacheConfig{
			Type:       viper.GetString("cache.type"),
			NATSURL:    viper.GetString("cache.nats_url"),
			NATSBucket: viper.GetString("cache.nats_bucket"),
			SQLitePath: viper.GetString("cache.sqlite_path"),
		},
	}

	if len(config.Headers) == 0 {
		config.Headers = nil
	}

	if expiresAt := viper.GetTime("token_expires_at"); !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	if refreshed := viper.GetTime("last_refreshed"); !refreshed.IsZero() {
		config.LastRefreshed = &refreshed
	}

	return config
}

// configFilePath returns the file in use or the default ~/.fetchx/config.yml.
func configFilePath() (string, error) {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, constants.ConfigDirName, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	viper.SetConfigFile(configFile)

	err = viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	return nil
}

func maskSecrets(config *Config) *Config {
	masked := *config
	masked.Token = mask(masked.Token)
	masked.RefreshToken = mask(masked.RefreshToken)
	masked.ClientSecret = mask(masked.ClientSecret)

	return &masked
}

func mask(value string) string {
	if value == "" {
		return ""
	}

	return "***"
}

func displayConfigTable(w io.Writer, config *Config) error {
	rows := map[string]string{
		"api":               config.API,
		"credentials":       config.Credentials,
		"output":            config.Output,
		"debug":             strconv.FormatBool(config.Debug),
		"token":             config.Token,
		"token_url":         config.TokenURL,
		"client_id":         config.ClientID,
		"client_secret":     config.ClientSecret,
		"username":          config.Username,
		"cache.type":        config.Cache.Type,
		"cache.nats_url":    config.Cache.NATSURL,
		"cache.nats_bucket": config.Cache.NATSBucket,
		"cache.sqlite_path": config.Cache.SQLitePath,
	}

	if config.TokenExpiresAt != nil {
		rows["token_expires_at"] = config.TokenExpiresAt.Format(time.RFC3339)
	}

	for name, value := range config.Headers {
		rows["header."+name] = value
	}

	keys := make([]string, 0, len(rows))
	for key, value := range rows {
		if value != "" {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")

	for _, key := range keys {
		_ = table.Append(key, rows[key])
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
