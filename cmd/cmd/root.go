package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/env"
	"github.com/ostafen/doclookup/internal/logger"
	"github.com/spf13/cobra"
)

const DefaultConfigPath = "/etc/doclookup/doclookup.yaml"

func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     env.AppName,
		Short:   env.AppName + " - document lookup proxy",
		Version: env.Version,
	}

	rootCmd.PersistentFlags().StringP("config", "c", DefaultConfigPath, "path of the configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(
		DefineServeCommand(),
		DefineResolveCommand(),
		DefineFieldsCommand(),
		DefineCheckCommand(),
	)

	return rootCmd
}

// loadConfig reads the configuration file named by the --config flag and
// applies the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		if _, err := logger.ParseLevel(level); err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// stderrLogger returns the logger of the short-lived commands. level may be
// overridden by the --log-level flag.
func stderrLogger(cmd *cobra.Command, level string) (*slog.Logger, error) {
	if s, _ := cmd.Flags().GetString("log-level"); s != "" {
		level = s
	}

	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logger.New(os.Stderr, lvl), nil
}

func PrintLogo() {
	fmt.Println("     _            _             _               ")
	fmt.Println("  __| | ___   ___| | ___   ___ | | ___   _ _ __  ")
	fmt.Println(" / _` |/ _ \\ / __| |/ _ \\ / _ \\| |/ / | | | '_ \\ ")
	fmt.Println("| (_| | (_) | (__| | (_) | (_) |   <| |_| | |_) |")
	fmt.Println(" \\__,_|\\___/ \\___|_|\\___/ \\___/|_|\\_\\\\__,_| .__/ ")
	fmt.Println("                                         |_|    ")
	fmt.Println()
	fmt.Println("Document lookup proxy")
	fmt.Println()
	fmt.Printf("Version:   %s\n", env.Version)
	fmt.Printf("Commit:    %s\n", env.CommitHash)
	fmt.Printf("Build Time: %s\n", env.BuildTime)
	fmt.Println(" ")
}
