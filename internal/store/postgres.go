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
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
	"github.com/ostafen/doclookup/internal/creds"
)

const defaultPostgresPort = "5432"

// Postgres reads documents from a table named after the bucket, with
// columns (key text primary key, doc text or jsonb). The database defaults
// to the user name.
type Postgres struct {
	db      *sql.DB
	query   string
	maxSize uint64
}

func NewPostgres(c creds.Credentials, opts Options) (*Postgres, error) {
	db, err := sql.Open("postgres", postgresDSN(c, opts))
	if err != nil {
		return nil, fmt.Errorf("could not create postgres instance: %w", err)
	}

	return &Postgres{
		db:      db,
		query:   fmt.Sprintf("SELECT doc FROM %s WHERE key = $1", pq.QuoteIdentifier(c.Bucket)),
		maxSize: opts.MaxDocumentSize,
	}, nil
}

func postgresDSN(c creds.Credentials, opts Options) string {
	params := [][2]string{
		{"host", c.Host},
		{"port", defaultPostgresPort},
		{"user", c.Username},
		{"password", c.Password},
	}
	if opts.SSLMode != "" {
		params = append(params, [2]string{"sslmode", opts.SSLMode})
	}
	if opts.DialTimeout > 0 {
		params = append(params, [2]string{"connect_timeout", fmt.Sprint(max(1, int(opts.DialTimeout.Seconds())))})
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p[0] + "=" + quoteDSNValue(p[1])
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func (p *Postgres) Get(ctx context.Context, key []byte) (*Document, error) {
	var data []byte
	if err := p.db.QueryRowContext(ctx, p.query, string(key)).Scan(&data); err != nil {
		return nil, postgresError(err)
	}

	if err := checkSize(data, p.maxSize); err != nil {
		return nil, err
	}
	return NewDocument(data), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func postgresError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return statusError(NotFound, "", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// class 08: connection exception
		if pqErr.Code.Class() == "08" {
			return statusError(ConnectionError, string(pqErr.Code), err)
		}
		return statusError(Other, string(pqErr.Code), err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return statusError(ConnectionError, "", err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return statusError(ConnectionError, "", err)
	}
	return statusError(Other, "", err)
}
