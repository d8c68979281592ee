package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/faishion/tryon-client/internal/api"
	"github.com/faishion/tryon-client/internal/config"
	"github.com/faishion/tryon-client/internal/constants"
	"github.com/faishion/tryon-client/internal/events"
	"github.com/faishion/tryon-client/internal/http"
	"github.com/faishion/tryon-client/internal/models"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage tryon configuration",
		Long: `Configuration management commands for tryon.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the catalog connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for tryon.

The configuration will be saved to ~/.config/faishion/config

Use --force to overwrite existing configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg, err := promptConfig(bufio.NewReader(cmd.InOrStdin()), out)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			bus := newEventBus()
			defer closeEventBus(bus)
			if err := saveConfig(cfg, path, bus); err != nil {
				return err
			}

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			if cfg.ChatbotAPIKey == "" {
				fmt.Fprintf(out, "  No chatbot key saved; set %s to use 'tryon chat'.\n", config.EnvChatbotKey)
			}
			fmt.Fprintln(out, "Test your configuration with: tryon config test")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")

	return cmd
}

// saveConfig writes cfg to path and announces the change on bus.
func saveConfig(cfg *config.Config, path string, bus *events.EventBus) error {
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	GetLogger().Info().Str("path", path).Msg("Configuration saved")
	bus.PublishConfigChanged(path)
	return nil
}

// promptConfig walks through the settings, offering defaults.
func promptConfig(reader *bufio.Reader, out io.Writer) (*config.Config, error) {
	cfg := config.NewConfig()

	fmt.Fprintln(out, "tryon Configuration Setup")
	fmt.Fprintln(out, "=========================")
	fmt.Fprintln(out)

	cfg.CatalogURL = promptLine(reader, out, "Catalog URL", cfg.CatalogURL)
	cfg.HistoryURL = promptLine(reader, out, "History URL", cfg.HistoryURL)

	pageSize := promptLine(reader, out, "Page size", strconv.Itoa(cfg.PageSize))
	if v, err := strconv.Atoi(pageSize); err == nil && v > 0 && v <= constants.MaxPageSize {
		cfg.PageSize = v
	}

	fmt.Fprintln(out)
	cfg.ChatbotURL = promptLine(reader, out, "Chatbot URL", cfg.ChatbotURL)
	cfg.ChatbotAPIKey = promptLine(reader, out, "Chatbot API key (blank to skip)", "")

	fmt.Fprintln(out)
	cfg.SessionBackend = promptLine(reader, out, "Session backend (file, sqlite)", cfg.SessionBackend)
	if cfg.SessionBackend == "sqlite" && !strings.HasSuffix(cfg.SessionPath, ".db") {
		cfg.SessionPath += ".db"
	}
	cfg.SessionPath = config.ExpandPath(promptLine(reader, out, "Session path", cfg.SessionPath))

	fmt.Fprintln(out)
	if promptYesNo(reader, out, "Configure proxy?") {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Proxy Configuration")
		fmt.Fprintln(out, "-------------------")
		fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
		cfg.ProxyMode = promptLine(reader, out, "Proxy mode", "system")

		if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
			cfg.ProxyHost = promptLine(reader, out, "Proxy host", "")
			port := promptLine(reader, out, "Proxy port", "8080")
			if v, err := strconv.Atoi(port); err == nil && v > 0 {
				cfg.ProxyPort = v
			}
			cfg.ProxyUser = promptLine(reader, out, "Proxy user (blank for none)", "")
			cfg.NoProxy = promptLine(reader, out, "Bypass hosts", "localhost,127.0.0.1")
		}
	} else {
		cfg.ProxyMode = "no-proxy"
	}

	return cfg, nil
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/faishion/config)
  2. Environment variables (` + config.EnvCatalogURL + `, ` + config.EnvHistoryURL + `, ` + config.EnvChatbotKey + `)

Priority: environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			showConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	}

	return cmd
}

func showConfig(out io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(out, "Current Configuration")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Endpoints:")
	fmt.Fprintf(out, "  Catalog URL: %s\n", cfg.CatalogURL)
	fmt.Fprintf(out, "  History URL: %s\n", cfg.HistoryURL)
	fmt.Fprintf(out, "  Auth URL:    %s\n", cfg.AuthURL)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Loader:")
	fmt.Fprintf(out, "  Page Size:     %d\n", cfg.PageSize)
	fmt.Fprintf(out, "  Fetch Timeout: %s\n", cfg.FetchTimeout)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Chatbot:")
	fmt.Fprintf(out, "  URL:       %s\n", cfg.ChatbotURL)
	if cfg.ChatbotAPIKey != "" {
		// Never display any portion of the key
		fmt.Fprintf(out, "  API Key:   <set (%d chars)>\n", len(cfg.ChatbotAPIKey))
	} else {
		fmt.Fprintln(out, "  API Key:   <not set>")
	}
	fmt.Fprintf(out, "  User:      %s\n", cfg.ChatbotUser)
	fmt.Fprintf(out, "  Retry Max: %d\n", cfg.ChatbotRetryMax)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Proxy Settings:")
	fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
	if cfg.ProxyHost != "" {
		fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
		fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
	}
	if cfg.ProxyUser != "" {
		fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
	}
	if cfg.NoProxy != "" {
		fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Session:")
	fmt.Fprintf(out, "  Backend: %s\n", cfg.SessionBackend)
	fmt.Fprintf(out, "  Path:    %s\n", cfg.SessionPath)
	fmt.Fprintln(out)

	if cfg.LogFile != "" || cfg.Debug {
		fmt.Fprintln(out, "Logging:")
		if cfg.LogFile != "" {
			fmt.Fprintf(out, "  File:  %s\n", cfg.LogFile)
		}
		fmt.Fprintf(out, "  Debug: %t\n", cfg.Debug)
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Configuration file: %s\n", path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "  (file does not exist - using defaults)")
	}
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the catalog connection",
		Long: `Fetch one product from the catalog with the current configuration.

Use this to verify proxy settings and network connectivity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Testing Catalog Connection")
			fmt.Fprintln(out, "==========================")
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			fmt.Fprintf(out, "Catalog URL: %s\n", cfg.CatalogURL)
			fmt.Fprintln(out, "Testing connection...")
			fmt.Fprintln(out)

			httpClient, err := http.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("failed to configure HTTP client: %w", err)
			}

			if err := testCatalog(GetContext(), httpClient, cfg); err != nil {
				logger.Errorf("Connection test failed: %v", err)
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				if kind := api.KindOf(err); kind != api.KindUnknown {
					fmt.Fprintf(out, "  Kind:  %s\n", kind)
				}
				if hint := failureHint(err); hint != "" {
					fmt.Fprintf(out, "  Hint:  %s\n", hint)
				}
				return fmt.Errorf("connection test failed")
			}

			logger.Info().Msg("Connection test successful")
			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			return nil
		},
	}

	return cmd
}

// testCatalog requests a one-item page.
func testCatalog(ctx context.Context, httpClient *nethttp.Client, cfg *config.Config) error {
	client, err := api.NewCatalogClient(httpClient, cfg.CatalogURL, cfg.FetchTimeout)
	if err != nil {
		return err
	}
	_, err = client.Fetch(ctx, models.NewQuery(1))
	return err
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config flag):")
			}

			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if fileInfo, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", fileInfo.Size())
				fmt.Fprintf(out, "Modified: %s\n", fileInfo.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: tryon config init")
			}

			return nil
		},
	}

	return cmd
}
