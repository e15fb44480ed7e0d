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
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/creds"
	"github.com/ostafen/doclookup/internal/lookup"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/internal/vars"
	"github.com/ostafen/doclookup/pkg/table"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"
)

func DefineResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <key>",
		Short: "Resolve the variables of a document",
		Long: `The 'resolve' command fetches the document stored under <key> and prints, as JSON, the variables a request
would receive. The fields come from the couchlookup_read_doc directive of --location, or from --fields.
With --doc, the document is read from a local file instead of the store.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunResolve,
	}

	cmd.Flags().StringP("location", "l", "", "path of the location whose fields are resolved (default: the first with a lookup)")
	cmd.Flags().StringP("doc", "d", "", "read the document from the specified file")
	cmd.Flags().StringP("fields", "f", "", "comma separated fields to resolve, without reading the configuration (requires --doc)")
	return cmd
}

type resolveOutput struct {
	Key     string            `json:"key"`
	Outcome string            `json:"outcome"`
	Matched int               `json:"matched"`
	Skipped int               `json:"skipped"`
	Error   string            `json:"error,omitempty"`
	Values  map[string]string `json:"values"`
}

func RunResolve(cmd *cobra.Command, args []string) error {
	key := args[0]

	docPath, _ := cmd.Flags().GetString("doc")
	fieldList, _ := cmd.Flags().GetString("fields")
	location, _ := cmd.Flags().GetString("location")

	if fieldList != "" && docPath == "" {
		return errors.New("--fields requires --doc")
	}

	var doc []byte
	if docPath != "" {
		data, err := os.ReadFile(docPath)
		if err != nil {
			return err
		}
		doc = data
	}

	resolver, closeFn, err := newResolver(cmd, key, doc, fieldList, location)
	if err != nil {
		return err
	}
	defer closeFn()

	log, err := stderrLogger(cmd, "WARN")
	if err != nil {
		return err
	}
	ctx := slogcontext.NewCtx(cmd.Context(), log)

	values := resolver.Fields().NewValues()
	res := resolver.Resolve(ctx, []byte(key), values)

	out := resolveOutput{
		Key:     key,
		Outcome: res.Outcome.String(),
		Matched: res.Matched,
		Skipped: res.Skipped,
		Values:  values.Map(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// newResolver builds the resolver of the command, either from the fields
// given on the command line or from the configuration.
func newResolver(cmd *cobra.Command, key string, doc []byte, fieldList, location string) (*lookup.Resolver, func(), error) {
	if fieldList != "" {
		fields, err := lookup.NewFields(lookup.DefaultCapacity, vars.Prefix)
		if err != nil {
			return nil, nil, err
		}
		for _, f := range vars.SplitFields(fieldList) {
			if _, err := fields.Declare(f); err != nil && !errors.Is(err, table.ErrDuplicate) {
				return nil, nil, err
			}
		}
		return lookup.New(memoryStore(key, doc), fields, lookup.DefaultOptions()), func() {}, nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	log, err := stderrLogger(cmd, "WARN")
	if err != nil {
		return nil, nil, err
	}

	open := config.Opener(store.Open)
	if doc != nil {
		open = func(context.Context, string, creds.Credentials, store.Options) (store.Client, error) {
			return memoryStore(key, doc), nil
		}
	}

	sites, err := cfg.Build(cmd.Context(), log, open)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = config.CloseSites(sites) }

	for _, site := range sites {
		if site.Enabled() && (location == "" || site.Path == location) {
			return site.Resolver, closeFn, nil
		}
	}

	closeFn()
	if location != "" {
		return nil, nil, fmt.Errorf("location %q not found or without %s", location, config.DirectiveReadDoc)
	}
	return nil, nil, fmt.Errorf("no location has a %s directive", config.DirectiveReadDoc)
}

// memoryStore returns a store holding only doc, under key.
func memoryStore(key string, doc []byte) *store.Memory {
	mem := store.NewMemory()
	mem.Put(key, doc)
	return mem
}
