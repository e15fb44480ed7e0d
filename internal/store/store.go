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
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ostafen/doclookup/internal/creds"
	"github.com/valyala/bytebufferpool"
)

// Client fetches documents by key. Implementations must be safe for
// concurrent use.
type Client interface {
	// Get returns the document stored under key. Errors are *StatusError.
	Get(ctx context.Context, key []byte) (*Document, error)
	Close() error
}

// Status classifies the outcome of a fetch.
type Status int

const (
	Success Status = iota
	NotFound
	ConnectionError
	Other
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case NotFound:
		return "not found"
	case ConnectionError:
		return "connection error"
	default:
		return "other"
	}
}

// StatusError is the error returned by Client.Get. Code carries the
// backend-specific error code, if any.
type StatusError struct {
	Status Status
	Code   string
	Err    error
}

func (e *StatusError) Error() string {
	msg := e.Status.String()
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the Status carried by err.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return Other
}

func statusError(st Status, code string, err error) error {
	return &StatusError{Status: st, Code: code, Err: err}
}

var ErrTooLarge = errors.New("document exceeds size limit")

var documentPool bytebufferpool.Pool

// Document is a fetched document. Its buffer is pooled: it must be released
// once, after which Bytes must not be used anymore.
type Document struct {
	buf *bytebufferpool.ByteBuffer
}

// NewDocument copies data into a pooled buffer.
func NewDocument(data []byte) *Document {
	buf := documentPool.Get()
	_, _ = buf.Write(data)
	return &Document{buf: buf}
}

func (d *Document) Bytes() []byte {
	if d.buf == nil {
		return nil
	}
	return d.buf.B
}

func (d *Document) Len() int {
	return len(d.Bytes())
}

// Release returns the buffer to the pool. Subsequent calls do nothing.
func (d *Document) Release() {
	if d.buf == nil {
		return
	}
	documentPool.Put(d.buf)
	d.buf = nil
}

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Backends lists the backends accepted by Open.
var Backends = []string{BackendRedis, BackendPostgres}

const (
	DefaultMaxDocumentSize  = 1 << 20
	DefaultBootstrapTimeout = 10 * time.Second
	DefaultDialTimeout      = 2 * time.Second
)

type Options struct {
	// MaxDocumentSize bounds the size of fetched documents; zero disables the check.
	MaxDocumentSize uint64
	// BootstrapTimeout bounds the time spent waiting for the store to answer at startup.
	BootstrapTimeout time.Duration
	DialTimeout      time.Duration
	// SSLMode is passed to postgres connections.
	SSLMode string
}

func DefaultOptions() Options {
	return Options{
		MaxDocumentSize:  DefaultMaxDocumentSize,
		BootstrapTimeout: DefaultBootstrapTimeout,
		DialTimeout:      DefaultDialTimeout,
		SSLMode:          "disable",
	}
}

// Open creates a client for backend and waits until the store answers.
func Open(ctx context.Context, backend string, c creds.Credentials, opts Options) (Client, error) {
	var client interface {
		Client
		Ping(ctx context.Context) error
	}

	switch backend {
	case BackendRedis:
		client = NewRedis(c, opts)
	case BackendPostgres:
		pg, err := NewPostgres(c, opts)
		if err != nil {
			return nil, err
		}
		client = pg
	default:
		return nil, fmt.Errorf("unknown backend %q (supported: %v)", backend, Backends)
	}

	if err := bootstrap(ctx, client.Ping, opts.BootstrapTimeout); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not bootstrap %s instance %s: %w", backend, c, err)
	}
	return client, nil
}

// bootstrap retries ping with exponential backoff until it succeeds or
// timeout elapses. A non-positive timeout means a single attempt.
func bootstrap(ctx context.Context, ping func(context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		return ping(ctx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		return ping(ctx)
	}, backoff.WithContext(b, ctx))
}

func checkSize(data []byte, limit uint64) error {
	if limit > 0 && uint64(len(data)) > limit {
		return statusError(Other, "", fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), limit))
	}
	return nil
}
