package lookup_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/ostafen/doclookup/internal/lookup"
	"github.com/ostafen/doclookup/internal/metrics"
	"github.com/ostafen/doclookup/internal/store"
	"github.com/ostafen/doclookup/internal/vars"
	"github.com/ostafen/doclookup/pkg/jsontok"
	"github.com/ostafen/doclookup/pkg/table"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	slogcontext "github.com/veqryn/slog-context"
)

func newFields(t *testing.T, names ...string) *lookup.Fields {
	t.Helper()

	f, err := lookup.NewFields(lookup.DefaultCapacity, vars.Prefix)
	require.NoError(t, err)

	for _, name := range names {
		_, err := f.Declare(name)
		require.NoError(t, err)
	}
	return f
}

// logCtx returns a context carrying a logger which writes to the returned buffer.
func logCtx() (context.Context, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return slogcontext.NewCtx(context.Background(), logger), &buf
}

func logLines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// requireAssigned checks that every declared variable holds a value.
func requireAssigned(t *testing.T, fields *lookup.Fields, values *vars.Values) {
	t.Helper()

	for _, name := range fields.Registry().Names() {
		_, ok := values.Lookup(name)
		require.True(t, ok, name)
	}
}

func resolve(t *testing.T, fields *lookup.Fields, doc string) (*vars.Values, lookup.Result, *bytes.Buffer) {
	t.Helper()

	mem := store.NewMemory()
	mem.Put("k", []byte(doc))

	ctx, buf := logCtx()
	values := fields.NewValues()
	res := lookup.New(mem, fields, lookup.DefaultOptions()).Resolve(ctx, []byte("k"), values)
	requireAssigned(t, fields, values)
	return values, res, buf
}

func TestFields_Declare(t *testing.T) {
	f, err := lookup.NewFields(2, "cl_")
	require.NoError(t, err)

	name, err := f.Declare("email")
	require.NoError(t, err)
	require.Equal(t, "cl_email", name)

	_, err = f.Declare("email")
	require.ErrorIs(t, err, table.ErrDuplicate)
	require.Equal(t, 1, f.Len())

	_, err = f.Declare("name")
	require.NoError(t, err)

	_, err = f.Declare("plan")
	require.ErrorIs(t, err, table.ErrFull)
	require.Equal(t, 2, f.Len())

	slot, ok := f.Slot([]byte("cl_name"))
	require.True(t, ok)
	require.Equal(t, "cl_name", f.Registry().Name(slot))

	_, ok = f.Slot([]byte("name"))
	require.False(t, ok)
}

func TestResolve_TopLevelOnly(t *testing.T) {
	fields := newFields(t, "a", "b", "c")

	values, res, _ := resolve(t, fields, `{"a": {"b": 1}, "c": 2}`)
	require.Equal(t, lookup.OK, res.Outcome)
	require.Equal(t, 2, res.Matched)

	require.Equal(t, map[string]string{
		"cl_a": `{"b": 1}`,
		"cl_b": "",
		"cl_c": "2",
	}, values.Map())
}

func TestResolve_RawText(t *testing.T) {
	fields := newFields(t, "name", "email", "age", "admin", "manager", "tags")

	doc := `{"name":"bob","email":"bob@example.com","age":42,"admin":true,"manager":null,"tags":["a","b"]}`
	values, res, buf := resolve(t, fields, doc)
	require.Equal(t, lookup.OK, res.Outcome)
	require.Equal(t, 6, res.Matched)
	require.Empty(t, logLines(buf))

	require.Equal(t, map[string]string{
		"cl_name":    "bob",
		"cl_email":   "bob@example.com",
		"cl_age":     "42",
		"cl_admin":   "true",
		"cl_manager": "null",
		"cl_tags":    `["a","b"]`,
	}, values.Map())
}

func TestResolve_SkipsNestedKeys(t *testing.T) {
	fields := newFields(t, "y", "z")

	values, res, _ := resolve(t, fields, `{"x":[{"y":1}],"z":2}`)
	require.Equal(t, lookup.OK, res.Outcome)
	require.Equal(t, 1, res.Matched)

	v, _ := values.Lookup("cl_y")
	require.Equal(t, "", v)
	v, _ = values.Lookup("cl_z")
	require.Equal(t, "2", v)
}

func TestResolve_StringValuesNotMistakenForKeys(t *testing.T) {
	fields := newFields(t, "b")

	values, _, _ := resolve(t, fields, `{"a":"b","c":"d"}`)

	v, _ := values.Lookup("cl_b")
	require.Equal(t, "", v)
}

func TestResolve_LastDuplicateWins(t *testing.T) {
	fields := newFields(t, "a")

	values, res, _ := resolve(t, fields, `{"a":1,"a":2}`)
	require.Equal(t, 2, res.Matched)

	v, _ := values.Lookup("cl_a")
	require.Equal(t, "2", v)
}

func TestResolve_AbsentFields(t *testing.T) {
	fields := newFields(t, "missing")

	for _, doc := range []string{`{}`, `{"other":1}`} {
		values, res, buf := resolve(t, fields, doc)
		require.Equal(t, lookup.OK, res.Outcome)
		require.Zero(t, res.Matched)
		require.Empty(t, logLines(buf))

		v, ok := values.Lookup("cl_missing")
		require.True(t, ok)
		require.Equal(t, "", v)
	}
}

func TestResolve_FetchFailure(t *testing.T) {
	fields := newFields(t, "a", "b")

	mem := store.NewMemory()
	mem.Fail("down", store.ConnectionError)

	for key, st := range map[string]store.Status{
		"absent": store.NotFound,
		"down":   store.ConnectionError,
	} {
		ctx, buf := logCtx()
		values := fields.NewValues()

		res := lookup.New(mem, fields, lookup.DefaultOptions()).Resolve(ctx, []byte(key), values)
		require.Equal(t, lookup.FetchFailed, res.Outcome, key)
		require.Equal(t, st, store.StatusOf(res.Err), key)
		requireAssigned(t, fields, values)
		require.Equal(t, map[string]string{"cl_a": "", "cl_b": ""}, values.Map())

		lines := logLines(buf)
		require.Len(t, lines, 1, key)
		require.Contains(t, lines[0], "could not read document")
		require.Contains(t, lines[0], st.String())
	}
}

func TestResolve_ParseFailure(t *testing.T) {
	fields := newFields(t, "a")

	cases := map[string]struct {
		err error
		msg string
	}{
		`{"a":1,}`:                              {jsontok.ErrInvalid, "corrupted"},
		`{"a":"unterminated`:                     {jsontok.ErrTruncated, "too short"},
		"[" + strings.Repeat("1,", 200) + "1]": {jsontok.ErrTokenBudget, "too large"},
	}

	for doc, c := range cases {
		values, res, buf := resolve(t, fields, doc)
		require.Equal(t, lookup.ParseFailed, res.Outcome)
		require.ErrorIs(t, res.Err, c.err)

		v, _ := values.Lookup("cl_a")
		require.Equal(t, "", v)

		lines := logLines(buf)
		require.Len(t, lines, 1)
		require.Contains(t, lines[0], c.msg)
	}
}

func TestResolve_SchemaFailure(t *testing.T) {
	fields := newFields(t, "a")

	for _, doc := range []string{``, `  `, `[{"a":1}]`, `"a"`, `42`} {
		values, res, buf := resolve(t, fields, doc)
		require.Equal(t, lookup.SchemaFailed, res.Outcome, doc)
		require.ErrorIs(t, res.Err, lookup.ErrNotObject)

		v, _ := values.Lookup("cl_a")
		require.Equal(t, "", v)
		require.Len(t, logLines(buf), 1)
	}
}

func TestResolve_OversizedKey(t *testing.T) {
	long := strings.Repeat("k", lookup.DefaultKeyBufferSize)
	fields := newFields(t, long, "ok")

	values, res, buf := resolve(t, fields, `{"`+long+`":"x","ok":"y"}`)
	require.Equal(t, lookup.OK, res.Outcome)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, 1, res.Matched)

	v, _ := values.Lookup("cl_" + long)
	require.Equal(t, "", v)
	v, _ = values.Lookup("cl_ok")
	require.Equal(t, "y", v)

	lines := logLines(buf)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], "level=WARN")
}

func TestResolve_KeyAtBufferLimit(t *testing.T) {
	key := strings.Repeat("k", lookup.DefaultKeyBufferSize-len(vars.Prefix))
	fields := newFields(t, key)

	values, res, _ := resolve(t, fields, `{"`+key+`":1}`)
	require.Zero(t, res.Skipped)

	v, _ := values.Lookup("cl_" + key)
	require.Equal(t, "1", v)
}

func TestResolve_ConcurrentRequests(t *testing.T) {
	fields := newFields(t, "n")

	mem := store.NewMemory()
	mem.Put("one", []byte(`{"n":1}`))
	mem.Put("two", []byte(`{"n":2}`))

	r := lookup.New(mem, fields, lookup.DefaultOptions())

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()

			for i := 0; i < 100; i++ {
				key, want := "one", "1"
				if i%2 == 1 {
					key, want = "two", "2"
				}

				values := fields.NewValues()
				r.Resolve(context.Background(), []byte(key), values)
				if v, _ := values.Lookup("cl_n"); v != want {
					t.Errorf("got %q, want %q", v, want)
					return
				}
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}

// The values of top-level members must agree with an independent JSON
// implementation.
func TestResolve_MatchesGJSON(t *testing.T) {
	docs := []string{
		`{"name":"alice","age":30,"nested":{"name":"inner","deep":[1,{"age":2}]},"ok":false,"none":null}`,
		`{"list":[[],[[]],{}],"num":-1.5e3,"str":"with \"escape\"","empty":""}`,
		`{ "spaced" : { "a" : 1 } , "after" : "x" }`,
	}
	names := []string{"name", "age", "nested", "deep", "ok", "none", "list", "num", "str", "empty", "spaced", "after", "a"}

	fields := newFields(t, names...)

	for _, doc := range docs {
		values, res, _ := resolve(t, fields, doc)
		require.Equal(t, lookup.OK, res.Outcome)

		for _, name := range names {
			got, _ := values.Lookup(vars.Name(vars.Prefix, name))

			want := ""
			if r := gjson.Get(doc, name); r.Exists() {
				want = r.Raw
				if r.Type == gjson.String {
					want = want[1 : len(want)-1]
				}
			}
			require.Equal(t, want, got, "%s in %s", name, doc)
		}
	}
}

func TestResolve_Metrics(t *testing.T) {
	fields := newFields(t, "a")

	ok := metrics.Resolutions.WithLabelValues(lookup.OK.String())
	schema := metrics.Resolutions.WithLabelValues(lookup.SchemaFailed.String())

	okBefore := testutil.ToFloat64(ok)
	schemaBefore := testutil.ToFloat64(schema)
	skippedBefore := testutil.ToFloat64(metrics.SkippedKeys)

	resolve(t, fields, `{"a":1}`)
	resolve(t, fields, `[]`)
	resolve(t, fields, `{"`+strings.Repeat("x", lookup.DefaultKeyBufferSize)+`":1}`)

	require.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	require.Equal(t, schemaBefore+1, testutil.ToFloat64(schema))
	require.Equal(t, skippedBefore+1, testutil.ToFloat64(metrics.SkippedKeys))
}
