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
	"fmt"
	"time"

	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Long: `The 'check' command parses the configuration file and applies the directives of every location,
reporting the first error found. With --connect, the document store of every location is contacted as well.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunCheck,
	}

	cmd.Flags().Bool("connect", false, "connect to the document store of every location")
	return cmd
}

func RunCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := stderrLogger(cmd, "WARN")
	if err != nil {
		return err
	}

	open := config.OfflineOpener
	if connect, _ := cmd.Flags().GetBool("connect"); connect {
		open = store.Open
	}

	start := time.Now()
	sites, err := cfg.Build(cmd.Context(), log, open)
	if err != nil {
		return err
	}
	defer config.CloseSites(sites)

	opts, _ := cfg.StoreOptions()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration OK (%s)\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Backend:           %s\n", cfg.Backend)
	fmt.Fprintf(out, "Max document size: %s\n", format.FormatBytes(int64(opts.MaxDocumentSize)))
	fmt.Fprintf(out, "Locations:         %d\n", len(sites))

	for _, site := range sites {
		vars := 0
		if site.Enabled() {
			vars = site.Fields.Len()
		}
		fmt.Fprintf(out, "  %s -> %s (%d variables)\n", site.Path, site.Upstream, vars)
	}
	return nil
}
