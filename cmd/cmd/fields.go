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
	"text/tabwriter"

	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/server"
	"github.com/spf13/cobra"
)

func DefineFieldsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the variables declared by the configuration",
		Long: `The 'fields' command displays a table of the variables declared by the couchlookup_read_doc directives.
Each variable includes its location, the document key expression with the request variable it reads, and the
upstream header carrying its value.
The document store is not contacted.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunFields,
	}
	return cmd
}

func RunFields(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := stderrLogger(cmd, "WARN")
	if err != nil {
		return err
	}

	sites, err := cfg.Build(cmd.Context(), log, config.OfflineOpener)
	if err != nil {
		return err
	}
	defer config.CloseSites(sites)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tKEY\tSOURCE\tVARIABLE\tHEADER")

	for _, site := range sites {
		if !site.Enabled() {
			continue
		}

		for _, name := range site.Fields.Registry().Names() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				site.Path,
				site.Key.String(),
				site.Key.Variable(),
				name,
				server.HeaderName(name),
			)
		}
	}
	return w.Flush()
}
