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
	"io"
	"net"
	"strings"

	"github.com/ostafen/doclookup/internal/creds"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPort = "6379"

// Redis reads documents stored as plain string values. The bucket acts as a
// key namespace: key k is read from "<bucket>:<k>".
type Redis struct {
	rdb     *redis.Client
	prefix  string
	maxSize uint64
}

func NewRedis(c creds.Credentials, opts Options) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:        net.JoinHostPort(c.Host, defaultRedisPort),
		Username:    c.Username,
		Password:    c.Password,
		DialTimeout: opts.DialTimeout,
		// lookups are single-shot
		MaxRetries: -1,
	})

	return &Redis{
		rdb:     rdb,
		prefix:  c.Bucket + ":",
		maxSize: opts.MaxDocumentSize,
	}
}

func (r *Redis) Key(key []byte) string {
	return r.prefix + string(key)
}

func (r *Redis) Get(ctx context.Context, key []byte) (*Document, error) {
	data, err := r.rdb.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		return nil, redisError(err)
	}

	if err := checkSize(data, r.maxSize); err != nil {
		return nil, err
	}
	return NewDocument(data), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func redisError(err error) error {
	if errors.Is(err, redis.Nil) {
		return statusError(NotFound, "", err)
	}

	var rerr redis.Error
	if errors.As(err, &rerr) {
		// server replies look like "WRONGTYPE Operation against a key..."
		code, _, _ := strings.Cut(rerr.Error(), " ")
		return statusError(Other, code, err)
	}

	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return statusError(ConnectionError, "", err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return statusError(ConnectionError, "", err)
	}
	return statusError(Other, "", err)
}
