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
package vars

import (
	"context"
	"strings"
)

// Prefix is prepended to every declared field name to build the variable
// name exposed to the host and used as lookup key.
const Prefix = "cl_"

// Name applies the naming template to a declared field name.
func Name(prefix, field string) string {
	return prefix + field
}

// SplitFields splits a comma-separated field list, trimming every entry and
// dropping empty ones.
func SplitFields(list string) []string {
	parts := strings.Split(list, ",")

	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// Slot is a stable handle to a per-request output value.
type Slot struct {
	Index int
}

// Registry assigns a Slot to each variable name. It is filled during
// configuration and is read-only afterwards.
type Registry struct {
	names []string
	index map[string]Slot
}

func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]Slot),
	}
}

// Add registers name and returns its slot. Registering the same name twice
// returns the slot assigned the first time, with added set to false.
func (r *Registry) Add(name string) (slot Slot, added bool) {
	if s, ok := r.index[name]; ok {
		return s, false
	}

	s := Slot{Index: len(r.names)}
	r.names = append(r.names, name)
	r.index[name] = s
	return s, true
}

// Lookup returns the slot registered for name.
func (r *Registry) Lookup(name string) (Slot, bool) {
	s, ok := r.index[name]
	return s, ok
}

// Name returns the variable name of slot.
func (r *Registry) Name(s Slot) string {
	return r.names[s.Index]
}

// Names returns the registered names in slot order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int {
	return len(r.names)
}

// NewValues allocates the output array for one request.
func (r *Registry) NewValues() *Values {
	return &Values{
		reg:  r,
		vals: make([]string, len(r.names)),
		set:  make([]bool, len(r.names)),
	}
}

// Values holds the output of one resolution. A value is unset until Set is
// called on its slot.
type Values struct {
	reg  *Registry
	vals []string
	set  []bool
}

func (v *Values) Set(s Slot, value string) {
	v.vals[s.Index] = value
	v.set[s.Index] = true
}

func (v *Values) Get(s Slot) (string, bool) {
	return v.vals[s.Index], v.set[s.Index]
}

// Lookup returns the value of the variable called name.
func (v *Values) Lookup(name string) (string, bool) {
	s, ok := v.reg.Lookup(name)
	if !ok {
		return "", false
	}
	return v.Get(s)
}

func (v *Values) IsSet(s Slot) bool {
	return v.set[s.Index]
}

func (v *Values) Len() int {
	return len(v.vals)
}

// Each calls fn with the name and value of every variable which has been set,
// in slot order.
func (v *Values) Each(fn func(name, value string)) {
	for i, ok := range v.set {
		if ok {
			fn(v.reg.names[i], v.vals[i])
		}
	}
}

// Map returns the set variables keyed by name.
func (v *Values) Map() map[string]string {
	m := make(map[string]string, len(v.vals))
	v.Each(func(name, value string) {
		m[name] = value
	})
	return m
}

type ctxKeyValues struct{}

// ContextWithValues attaches the resolved values to ctx.
func ContextWithValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, ctxKeyValues{}, v)
}

// ValuesFromContext retrieves the values attached by ContextWithValues.
func ValuesFromContext(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(ctxKeyValues{}).(*Values)
	return v, ok
}
