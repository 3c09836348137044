package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/opensass/eldflow/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ELDFlow configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with --dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, config.Defaults())

		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	}

	return nil
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := config.KnownKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	_, _ = cyan.Println("\n[server]")
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)
	dumpField("  port", cfg.Server.Port, defaultCfg.Server.Port, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  shutdown_timeout", cfg.Server.ShutdownTimeout, defaultCfg.Server.ShutdownTimeout, yellow, green)

	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	_, _ = cyan.Println("  [storage.mongo]")
	dumpField("    uri", redactURI(cfg.Storage.Mongo.URI), redactURI(defaultCfg.Storage.Mongo.URI), yellow, green)
	dumpField("    database", cfg.Storage.Mongo.Database, defaultCfg.Storage.Mongo.Database, yellow, green)
	dumpField("    connect_timeout", cfg.Storage.Mongo.ConnectTimeout, defaultCfg.Storage.Mongo.ConnectTimeout, yellow, green)

	_, _ = cyan.Println("\n[sessions]")
	dumpField("  backend", cfg.Sessions.Backend, defaultCfg.Sessions.Backend, yellow, green)
	_, _ = cyan.Println("  [sessions.redis]")
	dumpField("    host", cfg.Sessions.Redis.Host, defaultCfg.Sessions.Redis.Host, yellow, green)
	dumpField("    port", cfg.Sessions.Redis.Port, defaultCfg.Sessions.Redis.Port, yellow, green)
	dumpField("    password", redactSecret(cfg.Sessions.Redis.Password), redactSecret(defaultCfg.Sessions.Redis.Password), yellow, green)
	dumpField("    db", cfg.Sessions.Redis.DB, defaultCfg.Sessions.Redis.DB, yellow, green)
	dumpField("    pool_size", cfg.Sessions.Redis.PoolSize, defaultCfg.Sessions.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Sessions.Redis.MinIdleConns, defaultCfg.Sessions.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Sessions.Redis.DialTimeout, defaultCfg.Sessions.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Sessions.Redis.ReadTimeout, defaultCfg.Sessions.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Sessions.Redis.WriteTimeout, defaultCfg.Sessions.Redis.WriteTimeout, yellow, green)

	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)

	_, _ = cyan.Println("\n[dashboard]")
	dumpField("  jwt_secret", redactSecret(cfg.Dashboard.JWTSecret), redactSecret(defaultCfg.Dashboard.JWTSecret), yellow, green)
	dumpField("  session_timeout", cfg.Dashboard.SessionTimeout, defaultCfg.Dashboard.SessionTimeout, yellow, green)
	dumpField("  rate_limit", cfg.Dashboard.RateLimit, defaultCfg.Dashboard.RateLimit, yellow, green)
	dumpField("  rate_limit_window", cfg.Dashboard.RateLimitWindow, defaultCfg.Dashboard.RateLimitWindow, yellow, green)
	dumpField("  allowed_origins", cfg.Dashboard.AllowedOrigins, defaultCfg.Dashboard.AllowedOrigins, yellow, green)
	dumpField("  panel_cache_size", cfg.Dashboard.PanelCacheSize, defaultCfg.Dashboard.PanelCacheSize, yellow, green)
	dumpField("  secure_cookies", cfg.Dashboard.SecureCookies, defaultCfg.Dashboard.SecureCookies, yellow, green)

	_, _ = cyan.Println("\n[google]")
	dumpField("  maps_api_key", redactSecret(cfg.Google.MapsAPIKey), redactSecret(defaultCfg.Google.MapsAPIKey), yellow, green)
	dumpField("  base_url", cfg.Google.BaseURL, defaultCfg.Google.BaseURL, yellow, green)
	dumpField("  timeout", cfg.Google.Timeout, defaultCfg.Google.Timeout, yellow, green)
	dumpField("  max_retries", cfg.Google.MaxRetries, defaultCfg.Google.MaxRetries, yellow, green)

	_, _ = cyan.Println("\n[unsplash]")
	dumpField("  access_key", redactSecret(cfg.Unsplash.AccessKey), redactSecret(defaultCfg.Unsplash.AccessKey), yellow, green)
	dumpField("  base_url", cfg.Unsplash.BaseURL, defaultCfg.Unsplash.BaseURL, yellow, green)
	dumpField("  timeout", cfg.Unsplash.Timeout, defaultCfg.Unsplash.Timeout, yellow, green)
	dumpField("  max_retries", cfg.Unsplash.MaxRetries, defaultCfg.Unsplash.MaxRetries, yellow, green)

	_, _ = cyan.Println("\n[gemini]")
	dumpField("  api_key", redactSecret(cfg.Gemini.APIKey), redactSecret(defaultCfg.Gemini.APIKey), yellow, green)
	dumpField("  model", cfg.Gemini.Model, defaultCfg.Gemini.Model, yellow, green)
	dumpField("  base_url", cfg.Gemini.BaseURL, defaultCfg.Gemini.BaseURL, yellow, green)
	dumpField("  timeout", cfg.Gemini.Timeout, defaultCfg.Gemini.Timeout, yellow, green)
	dumpField("  max_retries", cfg.Gemini.MaxRetries, defaultCfg.Gemini.MaxRetries, yellow, green)
	dumpField("  cache_ttl", cfg.Gemini.CacheTTL, defaultCfg.Gemini.CacheTTL, yellow, green)
	dumpField("  cache_size", cfg.Gemini.CacheSize, defaultCfg.Gemini.CacheSize, yellow, green)

	_, _ = cyan.Println("\n[retention]")
	dumpField("  run_time", cfg.Retention.RunTime, defaultCfg.Retention.RunTime, yellow, green)
	dumpField("  message_days", cfg.Retention.MessageDays, defaultCfg.Retention.MessageDays, yellow, green)
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	valueStr := fmt.Sprintf("%v", value)

	if reflect.DeepEqual(value, defaultValue) {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactSecret hides a secret if it is set
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "***REDACTED***"
}

// redactURI hides credentials embedded in a connection URI.
func redactURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***REDACTED***@" + rest[at+1:]
	}
	return uri
}
