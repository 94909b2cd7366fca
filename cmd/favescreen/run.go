package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"favescreen/pkg/auth"
	"favescreen/pkg/config"
	"favescreen/pkg/frame"
	"favescreen/pkg/httpx"
	"favescreen/pkg/imagemeta"
	"favescreen/pkg/logger"
	"favescreen/pkg/pipeline"
	"favescreen/pkg/render"
	"favescreen/pkg/service"
)

var (
	// Run command flags
	archiveRoot    string
	folderCapacity int
	frameEnabled   bool
	installBrowser bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive new favorites from every enabled service",
	Long: `Archive every liked post that is not already present in the local
archive.

For each enabled service the command signs in, lists the account's likes
newest first, skips the ones whose screenshot already exists anywhere under
the service's archive subtree, and captures the rest. Each capture is tagged
with IPTC and EXIF metadata and filed into the first numbered folder with
room left.

With a configured photo-frame account the new screenshots are also uploaded
into capacity-bounded "<Service> Favorites <n>" album/playlist pairs.

Token-based services (Bluesky, Mastodon) authenticate with stored
credentials; Twitter opens an interactive browser window on the first run
and reuses the saved session afterwards.`,
	Example: `  # Archive using the default config locations
  favescreen run

  # Archive into a specific directory with smaller folders
  favescreen run --archive-root ~/backup/favorites --folder-capacity 500

  # One-off run without the photo-frame upload leg
  favescreen run --frame-enabled=false

  # First run on a fresh machine: fetch the browser first
  favescreen run --install-browser`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&archiveRoot, "archive-root", "o", "", "backup directory for screenshots")
	runCmd.Flags().IntVar(&folderCapacity, "folder-capacity", 0, "maximum screenshots per numbered folder")
	runCmd.Flags().BoolVar(&frameEnabled, "frame-enabled", false, "publish new screenshots to the photo-frame account")
	runCmd.Flags().BoolVar(&installBrowser, "install-browser", false, "download the headless browser before running")
}

func runArchive(cmd *cobra.Command, args []string) error {
	flags := globalFlags()
	if archiveRoot != "" {
		flags["archive-root"] = archiveRoot
	}
	if folderCapacity > 0 {
		flags["folder-capacity"] = folderCapacity
	}
	if cmd.Flags().Changed("frame-enabled") {
		flags["frame-enabled"] = frameEnabled
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("favescreen starting")

	if mgr, err := auth.NewManager(); err == nil {
		applyCredentials(cfg, mgr)
	} else {
		log.WithError(err).Warn("credential store unavailable, using config values only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if installBrowser {
		if err := render.Install(); err != nil {
			return fmt.Errorf("failed to install browser: %w", err)
		}
	}

	browser, err := render.NewBrowser(cfg.Render, stateDir(), log)
	if err != nil {
		return err
	}
	defer browser.Close()

	loc, err := cfg.Archive.Location()
	if err != nil {
		return err
	}
	tagger := imagemeta.NewTagger(loc)

	sources := buildSources(cfg, log)
	if len(sources) == 0 {
		return fmt.Errorf("no services enabled; enable at least one under services in the config")
	}

	var publisher pipeline.Publisher
	if cfg.Frame.Enabled {
		client, err := frame.NewClient(cfg.Frame, httpx.New(cfg.HTTP, log), log)
		if err != nil {
			return err
		}
		if err := client.SignIn(ctx); err != nil {
			return fmt.Errorf("photo-frame sign-in failed: %w", err)
		}
		defer client.SignOut(context.Background())
		publisher = frame.NewLibrary(client, cfg.Frame, log)
	}

	summary, err := pipeline.New(cfg, browser, tagger, publisher, log).Run(ctx, sources)
	if summary != nil {
		printSummary(cmd, summary, cfg.Frame.Enabled)
	}
	return err
}

// buildSources constructs one source per enabled service, each with its own
// HTTP client so sign-in headers never leak across services.
func buildSources(cfg *config.Config, log logger.Logger) []service.Source {
	var sources []service.Source
	if cfg.Services.Bluesky.Enabled {
		sources = append(sources, service.NewBluesky(cfg.Services.Bluesky, httpx.New(cfg.HTTP, log), log))
	}
	if cfg.Services.Mastodon.Enabled {
		sources = append(sources, service.NewMastodon(cfg.Services.Mastodon, httpx.New(cfg.HTTP, log), log))
	}
	if cfg.Services.Twitter.Enabled {
		sources = append(sources, service.NewTwitter(cfg.Services.Twitter, cfg.Render.SignInTimeout, httpx.New(cfg.HTTP, log), log))
	}
	return sources
}

// applyCredentials fills config secrets left empty by file, env and flags
// from the credential store.
func applyCredentials(cfg *config.Config, mgr *auth.Manager) {
	if cred, err := mgr.Retrieve("bluesky"); err == nil {
		if cfg.Services.Bluesky.Identifier == "" {
			cfg.Services.Bluesky.Identifier = cred.Username
		}
		if cfg.Services.Bluesky.AppPassword == "" {
			cfg.Services.Bluesky.AppPassword = cred.Password
		}
	}
	if cred, err := mgr.Retrieve("mastodon"); err == nil {
		if cfg.Services.Mastodon.Server == "" {
			cfg.Services.Mastodon.Server = cred.Username
		}
		if cfg.Services.Mastodon.AccessToken == "" {
			cfg.Services.Mastodon.AccessToken = cred.Token
		}
	}
	if cred, err := mgr.Retrieve("twitter"); err == nil {
		if cfg.Services.Twitter.BearerToken == "" {
			cfg.Services.Twitter.BearerToken = cred.Token
		}
		if cfg.Services.Twitter.AuthToken == "" {
			cfg.Services.Twitter.AuthToken = cred.Cookies["auth_token"]
		}
		if cfg.Services.Twitter.CSRFToken == "" {
			cfg.Services.Twitter.CSRFToken = cred.Cookies["ct0"]
		}
		if cfg.Services.Twitter.SessionCookie == "" {
			cfg.Services.Twitter.SessionCookie = cred.Cookies["session"]
		}
		if cfg.Services.Twitter.UserID == "" {
			cfg.Services.Twitter.UserID = cred.Username
		}
	}
	if cred, err := mgr.Retrieve("frame"); err == nil {
		if cfg.Frame.Username == "" {
			cfg.Frame.Username = cred.Username
		}
		if cfg.Frame.Password == "" {
			cfg.Frame.Password = cred.Password
		}
	}
}

// stateDir returns where browser session state files live.
func stateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "favescreen", "sessions")
	}
	return filepath.Join(".favescreen", "sessions")
}

func printSummary(cmd *cobra.Command, s *pipeline.Summary, frameEnabled bool) {
	cmd.Printf("Listed %d favorites: %d already archived, %d archived now, %d failed\n",
		s.Listed, s.Skipped, s.Archived, s.Failed)
	if frameEnabled {
		cmd.Printf("Published %d to the photo frame, %d uploads failed\n",
			s.Published, s.PublishFails)
	}
}
