// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package cmd

import (
	"log/slog"
	"os"
	"os/signal"

	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/env"
	"github.com/ostafen/doclookup/internal/logger"
	"github.com/ostafen/doclookup/internal/server"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/pkg/sysinfo"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func DefineServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lookup proxy",
		Long: `The 'serve' command applies the directives of every configured location, connects to the document store
and starts proxying requests. For locations with a couchlookup_read_doc directive, the document named by the
key expression is fetched and its declared top-level fields are forwarded upstream as X-Cl-* headers.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunServe,
	}

	cmd.Flags().String("listen", "", "override the configured listen address")
	cmd.Flags().String("log-file", "", "write logs to the specified file instead of stderr")
	cmd.Flags().Bool("no-logo", false, "do not print the logo at startup")
	return cmd
}

func RunServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, unix.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if logFile, _ := cmd.Flags().GetString("log-file"); logFile != "" {
		cfg.LogFile = logFile
	}

	if noLogo, _ := cmd.Flags().GetBool("no-logo"); !noLogo {
		PrintLogo()
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	log, logFile, err := logger.Setup(cfg.LogFile, level)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}
	slog.SetDefault(log)

	host := sysinfo.Stat()
	log.Info("starting",
		"version", env.Version,
		"commit", env.CommitHash,
		"os", host.OS+"/"+host.Arch,
		"release", host.Release,
		"go", host.GoVersion,
	)

	sites, err := cfg.Build(ctx, log, store.Open)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		return err
	}
	defer func() {
		if err := config.CloseSites(sites); err != nil {
			log.Warn("could not close document store clients", "err", err)
		}
	}()

	srv := server.New(sites, log, server.Options{
		Addr:            cfg.Listen,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	return srv.Run(ctx)
}
