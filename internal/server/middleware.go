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
package server

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/ostafen/doclookup/internal/config"
	"github.com/ostafen/doclookup/internal/vars"
	slogcontext "github.com/veqryn/slog-context"
)

const RequestIDHeader = "X-Request-Id"

// HeaderName returns the upstream header carrying variable name:
// cl_email becomes X-Cl-Email.
func HeaderName(name string) string {
	return "X-" + textproto.CanonicalMIMEHeaderKey(strings.ReplaceAll(name, "_", "-"))
}

// headerValue makes value safe to be sent as a header value: control bytes
// other than tab, which raw JSON may hold, become spaces.
func headerValue(value string) string {
	if strings.IndexFunc(value, isHeaderCTL) < 0 {
		return value
	}

	b := []byte(value)
	for i, c := range b {
		if isHeaderCTL(rune(c)) {
			b[i] = ' '
		}
	}
	return string(b)
}

func isHeaderCTL(r rune) bool {
	return (r < 0x20 && r != '\t') || r == 0x7f
}

// withRequestLogger assigns an id to the request and attaches a logger
// carrying it to the request context.
func withRequestLogger(base *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)

			logger := base.With("request_id", id, "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(slogcontext.NewCtx(r.Context(), logger)))
		})
	}
}

// Lookup resolves the document of the request before handing it to next.
// The values are attached to the request context and forwarded as headers;
// incoming headers with the same names are overwritten.
func Lookup(site *config.Site) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if !site.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := site.Key.Eval(r)

			values := site.Fields.NewValues()
			res := site.Resolver.Resolve(r.Context(), []byte(key), values)

			slogcontext.FromCtx(r.Context()).Debug("document resolved",
				"key", key,
				"outcome", res.Outcome.String(),
				"matched", res.Matched,
			)

			values.Each(func(name, value string) {
				r.Header.Set(HeaderName(name), headerValue(value))
			})
			next.ServeHTTP(w, r.WithContext(vars.ContextWithValues(r.Context(), values)))
		})
	}
}

func newProxy(site *config.Site) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(site.Upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slogcontext.FromCtx(r.Context()).Error("upstream request failed", "upstream", site.Upstream.String(), "err", err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return proxy
}
