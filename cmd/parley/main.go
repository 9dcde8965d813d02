package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/session"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "parley",
	Short:         "Terminal client for the parley chat service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			if dir, err := stateDir(); err == nil {
				path = filepath.Join(dir, "config.yaml")
			}
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.parley/config.yaml)")

	rootCmd.AddCommand(
		registerCmd,
		loginCmd,
		logoutCmd,
		meCmd,
		searchCmd,
		contactsCmd,
		conversationsCmd,
		chatCmd,
		sendFileCmd,
	)
	sendFileCmd.Flags().String("caption", "", "caption for the uploaded file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// stateDir returns ~/.parley, creating it if needed
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".parley")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create state directory: %w", err)
	}
	return dir, nil
}

func tokenPath() (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token"), nil
}

func loadToken() string {
	path, err := tokenPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func clearToken() {
	if path, err := tokenPath(); err == nil {
		os.Remove(path)
	}
}

// newSession builds the session graph from the loaded config
func newSession() (*session.Session, error) {
	return session.New(session.Options{
		BaseURL:           cfg.Server.APIBaseURL,
		SocketURL:         cfg.Server.SocketURL,
		ReconnectAttempts: cfg.Socket.ReconnectAttempts,
		ReconnectDelay:    cfg.Socket.ReconnectDelay,
		ReconnectDelayMax: cfg.Socket.ReconnectDelayMax,
		TypingTimeout:     cfg.Chat.TypingTimeout,
		PageSize:          cfg.Chat.PageSize,
		MaxUploadSize:     cfg.Chat.MaxUploadSize,
	})
}
