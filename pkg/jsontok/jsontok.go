// Package jsontok splits a JSON document into a flat, ordered sequence of
// typed byte spans without building a tree.
//
// The output follows the layout popularized by jsmn: token 0 spans the whole
// top-level value, containers are followed by their children, and every
// object key is immediately followed by its value. A key has size 1 (its
// value), an object has one child per key, an array one per element.
// Nested containers therefore occupy contiguous index ranges which Skip can
// step over without recursion.
package jsontok

import "errors"

// Type is the kind of value a Token spans.
type Type uint8

const (
	Undefined Type = iota
	Object
	Array
	String
	Number
	Bool
	Null
)

func (t Type) String() string {
	switch t {
	case Object:
		return "object"
	case Array:
		return "array"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Null:
		return "null"
	default:
		return "undefined"
	}
}

// Token is a typed span of the input. Start and End are byte offsets; for
// strings the span excludes the quotes.
type Token struct {
	Type  Type
	Start int
	End   int
	Size  int
}

var (
	// ErrInvalid reports a malformed token or trailing data after the top-level value.
	ErrInvalid = errors.New("jsontok: invalid character")
	// ErrTokenBudget reports that the document needs more tokens than allowed.
	ErrTokenBudget = errors.New("jsontok: token budget exceeded")
	// ErrTruncated reports that the input ends in the middle of a value.
	ErrTruncated = errors.New("jsontok: unexpected end of input")
)

// Skip returns the index right after the subtree rooted at tokens[i].
// If the sequence is shorter than the subtree claims, len(tokens) is returned.
func Skip(tokens []Token, i int) int {
	for pending := 1; pending > 0 && i < len(tokens); i++ {
		pending += tokens[i].Size - 1
	}
	return i
}
