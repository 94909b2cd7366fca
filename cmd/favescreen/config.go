package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"favescreen/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage favescreen configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'favescreen.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging flags, environment
variables, the configuration file and defaults. Secret values are masked.`,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "favescreen.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	exampleConfig := `# Favescreen configuration file
#
# Every option can also be set with a FAVESCREEN_* environment variable,
# for example FAVESCREEN_ARCHIVE_ROOT or FAVESCREEN_MASTODON_ACCESS_TOKEN.
# Credentials are better kept out of this file: use 'favescreen auth login'.

# Local screenshot archive
archive:
  # Backup directory; holds one subtree per service
  root: "./archive"

  # Maximum screenshots per numbered subfolder
  folder_capacity: 2000

  # Named zone used for the dates embedded in each screenshot
  time_zone: "America/Los_Angeles"

# Browser rendering
render:
  device_scale_factor: 3
  viewport_width: 1920
  viewport_height: 1200

  # JPEG quality, 1-100
  screenshot_quality: 80

  # How long the interactive Twitter sign-in window stays open
  sign_in_timeout: 1h

# Photo-frame uploads (optional)
frame:
  enabled: false
  base_url: ""
  monitor_url: ""

  # Maximum photos per remote album before a new numbered pair is opened
  album_capacity: 2000

# Favorite sources; enable the ones you use
services:
  bluesky:
    enabled: false
    identifier: ""

  mastodon:
    enabled: false
    server: ""

  twitter:
    enabled: false
    user_id: ""

    # Cap on favorites scanned per run
    max_posts: 264

# HTTP transport
http:
  timeout: 30s
  requests_per_minute: 60
  max_retries: 3

# Logging
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path; leave empty to log to stderr only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	cmd.Printf("Created %s\n", configPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	masked := *cfg
	masked.Frame.Password = mask(cfg.Frame.Password)
	masked.Services.Bluesky.AppPassword = mask(cfg.Services.Bluesky.AppPassword)
	masked.Services.Mastodon.AccessToken = mask(cfg.Services.Mastodon.AccessToken)
	masked.Services.Twitter.BearerToken = mask(cfg.Services.Twitter.BearerToken)
	masked.Services.Twitter.AuthToken = mask(cfg.Services.Twitter.AuthToken)
	masked.Services.Twitter.CSRFToken = mask(cfg.Services.Twitter.CSRFToken)
	masked.Services.Twitter.SessionCookie = mask(cfg.Services.Twitter.SessionCookie)

	out, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	cmd.Print(string(out))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile, globalFlags()); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	cmd.Println("Configuration is valid")
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
