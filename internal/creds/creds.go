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
package creds

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Syntax is the expected layout of a credentials file.
const Syntax = "HOST:BUCKET:USERNAME:PASSWORD"

// ErrMissingToken is returned when the credentials file holds less than four tokens.
var ErrMissingToken = errors.New("missing credentials token")

// Credentials holds the connection parameters of a document store.
type Credentials struct {
	Host     string
	Bucket   string
	Username string
	Password string
}

// String hides the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s/%s", c.Username, c.Host, c.Bucket)
}

// Parse reads credentials from data. Tokens are separated by ':' or newlines;
// empty tokens are skipped, and anything after the fourth token is ignored.
func Parse(data []byte) (Credentials, error) {
	tokens := strings.FieldsFunc(string(data), func(r rune) bool {
		return r == ':' || r == '\n'
	})

	names := []string{"host", "bucket", "username", "password"}
	if len(tokens) < len(names) {
		return Credentials{}, fmt.Errorf("%w: could not read key %s. Creds syntax: `%s`",
			ErrMissingToken, names[len(tokens)], Syntax)
	}

	return Credentials{
		Host:     strings.TrimSpace(tokens[0]),
		Bucket:   strings.TrimSpace(tokens[1]),
		Username: strings.TrimSpace(tokens[2]),
		Password: strings.TrimRight(tokens[3], "\r"),
	}, nil
}

// Load reads and parses the credentials file at path.
func Load(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("could not read credentials file %q: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return Credentials{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
