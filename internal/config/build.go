package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ostafen/doclookup/internal/creds"
	"github.com/ostafen/doclookup/internal/keyexpr"
	"github.com/ostafen/doclookup/internal/lookup"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/internal/vars"
	"github.com/ostafen/doclookup/pkg/table"
)

const (
	DirectiveCreds   = "couchlookup_creds"
	DirectiveReadDoc = "couchlookup_read_doc"
)

var (
	ErrUnknownDirective   = errors.New("unknown directive")
	ErrArgumentCount      = errors.New("invalid number of arguments")
	ErrDirectiveOrder     = errors.New("directive out of order")
	ErrDuplicateDirective = errors.New("directive is duplicate")
)

// Opener creates a document store client. store.Open is used in production.
type Opener func(ctx context.Context, backend string, c creds.Credentials, opts store.Options) (store.Client, error)

// OfflineOpener returns in-memory clients, so that a configuration can be
// checked without reaching the store.
func OfflineOpener(context.Context, string, creds.Credentials, store.Options) (store.Client, error) {
	return store.NewMemory(), nil
}

// Site is a location after its directives have been applied.
type Site struct {
	Path     string
	Upstream *url.URL

	// set by couchlookup_creds
	Creds  *creds.Credentials
	Client store.Client

	// set by couchlookup_read_doc
	Key      *keyexpr.Expr
	Fields   *lookup.Fields
	Resolver *lookup.Resolver
}

// Enabled reports whether requests to the site trigger a lookup.
func (s *Site) Enabled() bool {
	return s.Resolver != nil
}

func (s *Site) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

// Build applies the directives of every location, opening one client per
// location. On failure, clients opened so far are closed.
func (c *Config) Build(ctx context.Context, logger *slog.Logger, open Opener) ([]*Site, error) {
	storeOpts, err := c.StoreOptions()
	if err != nil {
		return nil, err
	}

	sites := make([]*Site, 0, len(c.Locations))
	for _, loc := range c.Locations {
		b := &siteBuilder{
			cfg:       c,
			storeOpts: storeOpts,
			open:      open,
			logger:    logger.With("location", loc.Path),
		}

		site, err := b.build(ctx, loc)
		if err != nil {
			_ = CloseSites(sites)
			return nil, fmt.Errorf("location %q: %w", loc.Path, err)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// CloseSites closes the clients of all sites.
func CloseSites(sites []*Site) error {
	var errs []error
	for _, s := range sites {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

type siteBuilder struct {
	cfg       *Config
	storeOpts store.Options
	open      Opener
	logger    *slog.Logger

	site *Site
}

func (b *siteBuilder) build(ctx context.Context, loc Location) (*Site, error) {
	upstream, err := parseUpstream(loc.Upstream)
	if err != nil {
		return nil, err
	}

	b.site = &Site{
		Path:     loc.Path,
		Upstream: upstream,
	}

	for _, line := range loc.Directives {
		if err := b.apply(ctx, line); err != nil {
			_ = b.site.Close()
			return nil, err
		}
	}
	return b.site, nil
}

func (b *siteBuilder) apply(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return fmt.Errorf("%w: empty directive", ErrUnknownDirective)
	}

	name, args := args[0], args[1:]
	switch name {
	case DirectiveCreds:
		if len(args) != 1 {
			return fmt.Errorf("%s: %w: expected FILE", name, ErrArgumentCount)
		}
		return b.creds(ctx, args[0])

	case DirectiveReadDoc:
		if len(args) != 2 {
			return fmt.Errorf("%s: %w: expected KEY FIELDS", name, ErrArgumentCount)
		}
		return b.readDoc(args[0], args[1])
	}
	return fmt.Errorf("%w %q", ErrUnknownDirective, name)
}

func (b *siteBuilder) creds(ctx context.Context, path string) error {
	if b.site.Creds != nil {
		return fmt.Errorf("%s: %w", DirectiveCreds, ErrDuplicateDirective)
	}

	c, err := creds.Load(path)
	if err != nil {
		return fmt.Errorf("%s: %w", DirectiveCreds, err)
	}

	client, err := b.open(ctx, b.cfg.Backend, c, b.storeOpts)
	if err != nil {
		return fmt.Errorf("%s: %w", DirectiveCreds, err)
	}

	b.site.Creds = &c
	b.site.Client = client

	b.logger.Info("document store ready", "backend", b.cfg.Backend, "instance", c.String())
	return nil
}

func (b *siteBuilder) readDoc(key, list string) error {
	if b.site.Client == nil {
		return fmt.Errorf("%s: %w: need to specify %s first", DirectiveReadDoc, ErrDirectiveOrder, DirectiveCreds)
	}
	if b.site.Resolver != nil {
		return fmt.Errorf("%s: %w", DirectiveReadDoc, ErrDuplicateDirective)
	}

	expr, err := keyexpr.Compile(key)
	if err != nil {
		return fmt.Errorf("%s: %w", DirectiveReadDoc, err)
	}

	fields, err := lookup.NewFields(lookup.DefaultCapacity, vars.Prefix)
	if err != nil {
		return err
	}

	for _, field := range vars.SplitFields(list) {
		name, err := fields.Declare(field)
		switch {
		case errors.Is(err, table.ErrDuplicate):
			b.logger.Warn("field declared twice, ignoring", "field", field)
		case err != nil:
			return fmt.Errorf("%s: %w", DirectiveReadDoc, err)
		default:
			b.logger.Debug("declared variable", "name", name)
		}
	}

	b.site.Key = expr
	b.site.Fields = fields
	b.site.Resolver = lookup.New(b.site.Client, fields, b.cfg.LookupOptions())
	return nil
}
