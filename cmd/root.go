package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/scribevault/internal/logging"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "scribevault",
	Short: "Secure meeting-artifact pipeline server",
	Long: `scribevault ingests recorded meeting audio from a bot provider,
	transcodes and encrypts it at rest, coordinates transcription and
	summarization, and serves the results back to clients under a
	per-request encrypted envelope.
`,
}

// Execute adds all child commands to the root command. Called once by
// main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	logging.Init(false)

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug contents")
	rootCmd.PersistentFlags().String("config", "", "Pathname of the configuration file")
	rootCmd.PersistentFlags().String("master-key", "", "Hex-encoded 32-byte master key (SERVER_MASTER_KEY)")
	rootCmd.PersistentFlags().String("ip", "", "HTTP listen IP (default 0.0.0.0)")
	rootCmd.PersistentFlags().String("port", "", "HTTP listen port (default 3002)")
	rootCmd.PersistentFlags().String("db-type", "", "Metadata store backend: sqlite or postgres")
	rootCmd.PersistentFlags().String("db-dsn", "", "Metadata store connection string")
	rootCmd.PersistentFlags().String("vault-dir", "", "Directory for encrypted artifact storage")
	rootCmd.PersistentFlags().String("bot-base-url", "", "Bot provider API base URL")
	rootCmd.PersistentFlags().String("bot-api-key", "", "Bot provider API key")

	v.SetEnvPrefix("scribevault")
	v.AutomaticEnv()

	// The spec's documented deployment interface uses SERVER_MASTER_KEY
	// and PORT directly, not the SCRIBEVAULT_-prefixed names
	// AutomaticEnv would otherwise require.
	_ = v.BindEnv("master_key", "SERVER_MASTER_KEY")
	_ = v.BindEnv("http.port", "PORT")
}

// loadRootConfig binds the persistent flags into viper, reads an optional
// config file, and applies the debug flag to the shared log level. Called
// by each subcommand's PreRunE, mirroring the teacher's
// rootCmdLoadConfig pattern.
func loadRootConfig(cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err == nil && configPath != "" {
		slog.Debug("loading configuration file", "path", configPath)
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	if v.GetBool("debug") {
		logging.Level.Set(slog.LevelDebug)
	}
	return nil
}
