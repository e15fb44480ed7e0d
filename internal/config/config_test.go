package config_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/creds"
	"github.com/ostafen/doclookup/internal/keyexpr"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/pkg/table"
	"github.com/stretchr/testify/require"
)

func writeCreds(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "creds")
	require.NoError(t, os.WriteFile(path, []byte("db.local:users:app:secret\n"), 0600))
	return path
}

func location(directives ...string) string {
	var sb strings.Builder
	sb.WriteString("locations:\n  - path: /api/\n    upstream: http://127.0.0.1:9000\n    directives:\n")
	for _, d := range directives {
		fmt.Fprintf(&sb, "      - %s\n", d)
	}
	return sb.String()
}

type recorder struct {
	opened []creds.Credentials
	opts   []store.Options
}

func (r *recorder) open(_ context.Context, _ string, c creds.Credentials, opts store.Options) (store.Client, error) {
	r.opened = append(r.opened, c)
	r.opts = append(r.opts, opts)
	return store.NewMemory(), nil
}

func build(t *testing.T, data string) ([]*config.Site, *recorder, *bytes.Buffer, error) {
	t.Helper()

	cfg, err := config.Parse([]byte(data))
	require.NoError(t, err)

	var buf bytes.Buffer
	rec := &recorder{}
	sites, err := cfg.Build(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)), rec.open)
	return sites, rec, &buf, err
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(location()))
	require.NoError(t, err)

	require.Equal(t, config.DefaultListen, cfg.Listen)
	require.Equal(t, store.BackendRedis, cfg.Backend)
	require.Equal(t, 128, cfg.MaxTokens)

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<20), opts.MaxDocumentSize)
	require.Equal(t, store.DefaultBootstrapTimeout, opts.BootstrapTimeout)
}

func TestParse_Overrides(t *testing.T) {
	data := `
listen: ":9090"
log_level: debug
backend: postgres
max_document_size: 64KB
bootstrap_timeout: 3s
sslmode: require
max_tokens: 256
` + location()

	cfg, err := config.Parse([]byte(data))
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Listen)
	require.Equal(t, 256, cfg.LookupOptions().MaxTokens)

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	require.Equal(t, uint64(64<<10), opts.MaxDocumentSize)
	require.Equal(t, 3*time.Second, opts.BootstrapTimeout)
	require.Equal(t, "require", opts.SSLMode)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "colour: blue\n" + location(),
		"bad level":       "log_level: LOUD\n" + location(),
		"bad backend":     "backend: couch\n" + location(),
		"bad size":        "max_document_size: lots\n" + location(),
		"bad tokens":      "max_tokens: 0\n" + location(),
		"no locations":    "listen: \":80\"\n",
		"relative path":   "locations:\n  - path: api\n    upstream: http://x\n",
		"bad upstream":    "locations:\n  - path: /api/\n    upstream: ftp://x\n",
		"duplicate paths": "locations:\n  - path: /a\n    upstream: http://x\n  - path: /a\n    upstream: http://y\n",
	}

	for name, data := range cases {
		_, err := config.Parse([]byte(data))
		require.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doclookup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(location()), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Locations, 1)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	credsPath := writeCreds(t)

	sites, rec, _, err := build(t, location(
		"couchlookup_creds "+credsPath,
		"couchlookup_read_doc user::${http_x_user_id} name,email,plan",
	))
	require.NoError(t, err)
	require.Len(t, sites, 1)

	site := sites[0]
	require.True(t, site.Enabled())
	require.Equal(t, "/api/", site.Path)
	require.Equal(t, "127.0.0.1:9000", site.Upstream.Host)
	require.Equal(t, "http_x_user_id", site.Key.Variable())
	require.Equal(t, []string{"cl_name", "cl_email", "cl_plan"}, site.Fields.Registry().Names())

	require.Len(t, rec.opened, 1)
	require.Equal(t, creds.Credentials{Host: "db.local", Bucket: "users", Username: "app", Password: "secret"}, rec.opened[0])
	require.Equal(t, uint64(1<<20), rec.opts[0].MaxDocumentSize)

	require.NoError(t, config.CloseSites(sites))
}

func TestBuild_CredsOnly(t *testing.T) {
	sites, _, _, err := build(t, location("couchlookup_creds "+writeCreds(t)))
	require.NoError(t, err)
	require.False(t, sites[0].Enabled())
}

func TestBuild_ReadDocBeforeCreds(t *testing.T) {
	_, rec, _, err := build(t, location(
		"couchlookup_read_doc ${arg_id} name",
		"couchlookup_creds "+writeCreds(t),
	))
	require.ErrorIs(t, err, config.ErrDirectiveOrder)
	require.Contains(t, err.Error(), "couchlookup_creds")
	require.Empty(t, rec.opened)
}

func TestBuild_DirectiveErrors(t *testing.T) {
	credsPath := writeCreds(t)

	cases := map[string]struct {
		directives []string
		err        error
	}{
		"unknown": {
			[]string{"couchlookup_write_doc x y"},
			config.ErrUnknownDirective,
		},
		"creds arity": {
			[]string{"couchlookup_creds"},
			config.ErrArgumentCount,
		},
		"read_doc arity": {
			[]string{"couchlookup_creds " + credsPath, "couchlookup_read_doc ${arg_id}"},
			config.ErrArgumentCount,
		},
		"creds twice": {
			[]string{"couchlookup_creds " + credsPath, "couchlookup_creds " + credsPath},
			config.ErrDuplicateDirective,
		},
		"no placeholder": {
			[]string{"couchlookup_creds " + credsPath, "couchlookup_read_doc static name"},
			keyexpr.ErrVariableCount,
		},
		"missing creds token": {
			[]string{"couchlookup_creds " + writeFile(t, "host:bucket:user")},
			creds.ErrMissingToken,
		},
	}

	for name, c := range cases {
		_, _, _, err := build(t, location(c.directives...))
		require.ErrorIs(t, err, c.err, name)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBuild_DuplicateFieldIsSkipped(t *testing.T) {
	sites, _, logs, err := build(t, location(
		"couchlookup_creds "+writeCreds(t),
		"couchlookup_read_doc ${arg_id} name,email,name",
	))
	require.NoError(t, err)
	require.Equal(t, []string{"cl_name", "cl_email"}, sites[0].Fields.Registry().Names())
	require.Contains(t, logs.String(), "field declared twice")
}

func TestBuild_TableFull(t *testing.T) {
	fields := make([]string, 65)
	for i := range fields {
		fields[i] = fmt.Sprintf("f%d", i)
	}

	_, _, _, err := build(t, location(
		"couchlookup_creds "+writeCreds(t),
		"couchlookup_read_doc ${arg_id} "+strings.Join(fields, ","),
	))
	require.ErrorIs(t, err, table.ErrFull)
}

func TestBuild_LocationsAreIndependent(t *testing.T) {
	credsPath := writeCreds(t)

	data := fmt.Sprintf(`
locations:
  - path: /a/
    upstream: http://a
    directives:
      - couchlookup_creds %[1]s
      - couchlookup_read_doc ${arg_id} x
  - path: /b/
    upstream: http://b
    directives:
      - couchlookup_creds %[1]s
      - couchlookup_read_doc ${arg_id} x,y
`, credsPath)

	sites, rec, _, err := build(t, data)
	require.NoError(t, err)
	require.Len(t, rec.opened, 2)
	require.Equal(t, 1, sites[0].Fields.Len())
	require.Equal(t, 2, sites[1].Fields.Len())
	require.NotSame(t, sites[0].Client, sites[1].Client)
}

func TestOfflineOpener(t *testing.T) {
	client, err := config.OfflineOpener(context.Background(), store.BackendRedis, creds.Credentials{}, store.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
