package jsontok_test

import (
	"strings"
	"testing"

	"github.com/ostafen/doclookup/pkg/jsontok"
	"github.com/stretchr/testify/require"
)

func spans(data string, tokens []jsontok.Token) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = data[tok.Start:tok.End]
	}
	return out
}

func TestParse_FlatObject(t *testing.T) {
	data := `{"name": "bob", "age": 42, "admin": true, "manager": null}`

	tokens, err := jsontok.Parse([]byte(data), 128)
	require.NoError(t, err)
	require.Len(t, tokens, 9)

	require.Equal(t, jsontok.Token{Type: jsontok.Object, Start: 0, End: len(data), Size: 4}, tokens[0])
	require.Equal(t, []string{
		data,
		"name", "bob",
		"age", "42",
		"admin", "true",
		"manager", "null",
	}, spans(data, tokens))

	types := []jsontok.Type{
		jsontok.Object,
		jsontok.String, jsontok.String,
		jsontok.String, jsontok.Number,
		jsontok.String, jsontok.Bool,
		jsontok.String, jsontok.Null,
	}
	for i, tok := range tokens {
		require.Equal(t, types[i], tok.Type, "token %d", i)
	}

	for _, i := range []int{1, 3, 5, 7} {
		require.Equal(t, 1, tokens[i].Size, "keys have their value as only child")
	}
}

func TestParse_Nested(t *testing.T) {
	data := `{"x":[{"y":1},2],"z":{"w":{}}}`

	tokens, err := jsontok.Parse([]byte(data), 128)
	require.NoError(t, err)

	require.Equal(t, []string{
		data,
		"x", `[{"y":1},2]`, `{"y":1}`, "y", "1", "2",
		"z", `{"w":{}}`, "w", "{}",
	}, spans(data, tokens))

	require.Equal(t, 2, tokens[0].Size) // x, z
	require.Equal(t, 2, tokens[2].Size) // two elements
	require.Equal(t, 1, tokens[3].Size) // y
	require.Equal(t, 1, tokens[8].Size) // w
	require.Equal(t, 0, tokens[10].Size)
}

func TestParse_TopLevelScalars(t *testing.T) {
	for _, data := range []string{`42`, `-0.5e+10`, `"str"`, `true`, `false`, `null`, `[]`, ` [1, 2] `} {
		tokens, err := jsontok.Parse([]byte(data), 16)
		require.NoError(t, err, data)
		require.NotEmpty(t, tokens, data)
	}
}

func TestParse_Empty(t *testing.T) {
	for _, data := range []string{"", "  \n\t"} {
		tokens, err := jsontok.Parse([]byte(data), 16)
		require.NoError(t, err)
		require.Empty(t, tokens)
	}
}

func TestParse_Escapes(t *testing.T) {
	data := `{"k\"ey":"a\\bé\n"}`

	tokens, err := jsontok.Parse([]byte(data), 16)
	require.NoError(t, err)
	require.Equal(t, []string{data, `k\"ey`, `a\\bé\n`}, spans(data, tokens))
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		`{"a" 1}`,
		`{"a":1,}`,
		`[1,]`,
		`{,}`,
		`{1:2}`,
		`{"a":1}x`,
		`{"a":1}{}`,
		`{"a":tru }`,
		`{"a":01}`,
		`{"a":1.}`,
		`{"a":-}`,
		`{"a":nul]`,
		`{"a":1]`,
		`[1}`,
		`}`,
		`{"a":"\x"}`,
		`{"a":"\u12g4"}`,
		"{\"a\":\"line\nbreak\"}",
		`{"a":'single'}`,
		`01`,
		`[01`,
		`{"a":-01`,
		`{"a":1.2.`,
		`{"a":1e5e`,
	}

	for _, data := range cases {
		_, err := jsontok.Parse([]byte(data), 128)
		require.ErrorIs(t, err, jsontok.ErrInvalid, data)
	}
}

func TestParse_Truncated(t *testing.T) {
	cases := []string{
		`{`,
		`[`,
		`{"a"`,
		`{"a":`,
		`{"a":1`,
		`{"a":"bo`,
		`{"a":"bo\`,
		`{"a":"\u00`,
		`{"a":[1,2`,
		`{"a":tr`,
		`{"a":-1.`,
		`{"a":-`,
		`{"a":1e`,
		`{"a":1E+`,
		`0.`,
		`"abc`,
		`nul`,
	}

	for _, data := range cases {
		_, err := jsontok.Parse([]byte(data), 128)
		require.ErrorIs(t, err, jsontok.ErrTruncated, data)
	}
}

func TestParse_TokenBudget(t *testing.T) {
	data := `{"a":1,"b":2}` // 5 tokens

	tokens, err := jsontok.Parse([]byte(data), 5)
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	_, err = jsontok.Parse([]byte(data), 4)
	require.ErrorIs(t, err, jsontok.ErrTokenBudget)

	_, err = jsontok.Parse([]byte(data), 0)
	require.ErrorIs(t, err, jsontok.ErrTokenBudget)

	big := "[" + strings.Repeat("1,", 200) + "1]"
	_, err = jsontok.Parse([]byte(big), 128)
	require.ErrorIs(t, err, jsontok.ErrTokenBudget)
}

func TestSkip(t *testing.T) {
	data := `{"x":[{"y":1},2],"z":{"w":{}},"v":3}`

	tokens, err := jsontok.Parse([]byte(data), 128)
	require.NoError(t, err)

	require.Equal(t, len(tokens), jsontok.Skip(tokens, 0))

	// x's value spans indices 2..6, so the next key is z at 7
	require.Equal(t, 7, jsontok.Skip(tokens, 2))
	require.Equal(t, "z", data[tokens[7].Start:tokens[7].End])

	// z's value spans 8..10, next key is v at 11
	require.Equal(t, 11, jsontok.Skip(tokens, 8))
	require.Equal(t, "v", data[tokens[11].Start:tokens[11].End])

	// scalars span exactly one token
	require.Equal(t, 13, jsontok.Skip(tokens, 12))

	// a key covers its value too
	require.Equal(t, 7, jsontok.Skip(tokens, 1))
}

func TestType_String(t *testing.T) {
	require.Equal(t, "object", jsontok.Object.String())
	require.Equal(t, "null", jsontok.Null.String())
	require.Equal(t, "undefined", jsontok.Type(99).String())
}
