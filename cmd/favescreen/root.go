package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "favescreen",
	Short: "Archive your liked posts as tagged screenshots",
	Long: `Favescreen archives the posts you have liked on Bluesky, Mastodon and
Twitter as JPEG screenshots with the author, caption and post date embedded
as IPTC and EXIF metadata.

Screenshots are filed into capacity-bounded numbered folders under the
archive root, one subtree per service, and can optionally be published to a
photo-frame account as matching album/playlist pairs. Posts archived by a
previous run are skipped, so the command is safe to run on a schedule.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.favescreen.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`Favescreen {{.Version}}
Commit: ` + gitCommit + `
Built: ` + buildDate + `
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags builds the flag override map handed to config.Load.
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}
