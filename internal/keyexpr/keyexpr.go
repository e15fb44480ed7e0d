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
package keyexpr

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "${"
	endTag   = "}"
)

var (
	ErrSyntax          = errors.New("malformed key expression")
	ErrVariableCount   = errors.New("key expression must reference exactly one variable")
	ErrUnknownVariable = errors.New("unknown variable")
)

type getter func(r *http.Request) string

// Expr is a compiled document-key expression, such as "user::${http_x_user_id}".
// The literal text is kept as is and the single placeholder is replaced with a
// value taken from the request.
type Expr struct {
	raw      string
	variable string
	tpl      *fasttemplate.Template
	get      getter
}

// Compile parses s. The expression must contain exactly one placeholder
// naming a known variable.
func Compile(s string) (*Expr, error) {
	tpl, err := fasttemplate.NewTemplate(s, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	var tags []string
	_, err = tpl.ExecuteFuncStringWithErr(func(w io.Writer, tag string) (int, error) {
		tags = append(tags, strings.TrimSpace(tag))
		return 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	if len(tags) != 1 {
		return nil, fmt.Errorf("%w: %q has %d", ErrVariableCount, s, len(tags))
	}

	get, err := variable(tags[0])
	if err != nil {
		return nil, err
	}

	return &Expr{
		raw:      s,
		variable: tags[0],
		tpl:      tpl,
		get:      get,
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(s string) *Expr {
	e, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Eval computes the key for r. Missing request data evaluates to an empty
// string.
func (e *Expr) Eval(r *http.Request) string {
	return e.tpl.ExecuteFuncString(func(w io.Writer, _ string) (int, error) {
		return io.WriteString(w, e.get(r))
	})
}

// Variable returns the name of the referenced variable.
func (e *Expr) Variable() string {
	return e.variable
}

func (e *Expr) String() string {
	return e.raw
}

func variable(name string) (getter, error) {
	switch name {
	case "uri":
		return func(r *http.Request) string { return r.URL.Path }, nil
	case "request_uri":
		return func(r *http.Request) string { return r.RequestURI }, nil
	case "request_method":
		return func(r *http.Request) string { return r.Method }, nil
	case "host":
		return func(r *http.Request) string { return stripPort(r.Host) }, nil
	case "remote_addr":
		return func(r *http.Request) string { return stripPort(r.RemoteAddr) }, nil
	}

	if header, ok := strings.CutPrefix(name, "http_"); ok && header != "" {
		header = strings.ReplaceAll(header, "_", "-")
		return func(r *http.Request) string { return r.Header.Get(header) }, nil
	}

	if arg, ok := strings.CutPrefix(name, "arg_"); ok && arg != "" {
		return func(r *http.Request) string { return r.URL.Query().Get(arg) }, nil
	}

	if cookie, ok := strings.CutPrefix(name, "cookie_"); ok && cookie != "" {
		return func(r *http.Request) string {
			c, err := r.Cookie(cookie)
			if err != nil {
				return ""
			}
			return c.Value
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownVariable, name)
}

func stripPort(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return host
}
