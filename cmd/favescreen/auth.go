package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"favescreen/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage service credentials",
	Long: `Manage the credentials favescreen uses to sign in.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Services: bluesky, mastodon, twitter, frame.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login <service>",
	Short: "Store credentials for a service",
	Long: `Store credentials for one service. What you are prompted for depends on
the service:

  bluesky   handle and app password (Settings > App Passwords)
  mastodon  server URL and access token (Preferences > Development)
  twitter   bearer token plus the auth_token and ct0 cookies from a
            signed-in browser session
  frame     photo-frame account email and password`,
	Example: `  favescreen auth login bluesky
  favescreen auth login frame`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <service>",
	Short: "Remove stored credentials for a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Long:  `List all stored credentials with secret values masked.`,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	service := strings.ToLower(strings.TrimSpace(args[0]))

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	cred := &auth.Credential{
		Service:      service,
		LastModified: time.Now(),
	}

	switch service {
	case "bluesky":
		if cred.Username, err = prompt(reader, "Bluesky handle (e.g. alice.bsky.social): "); err != nil {
			return err
		}
		if cred.Password, err = promptSecret("App password: "); err != nil {
			return err
		}
	case "mastodon":
		if cred.Username, err = prompt(reader, "Server URL (e.g. https://mastodon.social): "); err != nil {
			return err
		}
		if cred.Token, err = promptSecret("Access token: "); err != nil {
			return err
		}
	case "twitter":
		if cred.Username, err = prompt(reader, "Numeric user ID: "); err != nil {
			return err
		}
		if cred.Token, err = promptSecret("Bearer token: "); err != nil {
			return err
		}
		cred.Cookies = make(map[string]string)
		if cred.Cookies["auth_token"], err = promptSecret("auth_token cookie: "); err != nil {
			return err
		}
		if cred.Cookies["ct0"], err = promptSecret("ct0 cookie: "); err != nil {
			return err
		}
	case "frame":
		if cred.Username, err = prompt(reader, "Photo-frame account email: "); err != nil {
			return err
		}
		if cred.Password, err = promptSecret("Password: "); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown service %q (expected bluesky, mastodon, twitter or frame)", service)
	}

	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	cmd.Printf("Stored credentials for %s\n", service)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	service := strings.ToLower(strings.TrimSpace(args[0]))

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(service); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	cmd.Printf("Removed credentials for %s\n", service)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(creds) == 0 {
		cmd.Println("No stored credentials. Use 'favescreen auth login <service>' to add some.")
		return nil
	}

	for _, cred := range creds {
		masked := auth.Sanitize(cred)
		cmd.Printf("%s\n", masked.Service)
		if masked.Username != "" {
			cmd.Printf("  username: %s\n", masked.Username)
		}
		if masked.Password != "" {
			cmd.Printf("  password: %s\n", masked.Password)
		}
		if masked.Token != "" {
			cmd.Printf("  token:    %s\n", masked.Token)
		}
		for name, value := range masked.Cookies {
			cmd.Printf("  cookie %s: %s\n", name, value)
		}
		if !masked.LastModified.IsZero() {
			cmd.Printf("  updated:  %s\n", masked.LastModified.Format("2006-01-02 15:04"))
		}
	}
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSpace(input)
	if value == "" {
		return "", fmt.Errorf("a value is required")
	}
	return value, nil
}

func promptSecret(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", fmt.Errorf("a value is required")
	}
	return value, nil
}
