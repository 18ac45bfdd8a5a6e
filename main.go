package main

import (
	"os"

	"github.com/spf13/cobra"

	"language-toolkit/internal/config"
	"language-toolkit/internal/logger"
	"language-toolkit/models"
)

// loadConfig layers the config file, then the environment, then flags.
func loadConfig(path, serverURL, token, logLevel string) (*models.Config, error) {
	cfg, err := models.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	cfg.LoadFromEnvironment()

	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if token != "" {
		cfg.APIToken = token
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	lvl, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	if cfg.LogJSON {
		logger.SetJSONOutput(os.Stderr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	config.LoadEnvironment()

	var (
		cfgPath   string
		serverURL string
		token     string
		logLevel  string
		cfg       *models.Config
	)

	rootCmd := &cobra.Command{
		Use:   "language-toolkit",
		Short: "Translation, transcription, speech and document conversion service",
		Long: `language-toolkit runs a task server that translates text and documents,
transcribes audio, synthesizes speech and converts documents, and a client
for submitting and following those tasks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = loadConfig(cfgPath, serverURL, token, logLevel)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (default: ~/.config/language-toolkit/config.json)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Server URL for client commands")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token for the server API")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	getConfig := func() *models.Config { return cfg }
	rootCmd.AddCommand(
		newServeCmd(getConfig),
		newSubmitCmd(getConfig),
		newStatusCmd(getConfig),
		newListCmd(getConfig),
		newWatchCmd(getConfig),
		newDownloadCmd(getConfig),
		newCancelCmd(getConfig),
		newDeleteCmd(getConfig),
		newLanguagesCmd(getConfig),
	)

	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
