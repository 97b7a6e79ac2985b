// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package scoped provides a mapping from a string to any data type that is "scoped".
package scoped

import (
	"strings"
	"sync"

	"github.com/gomlx/stagednet/pkg/support/xslices"
)

// Params provides a mapping from string to any data type that is "scoped":
//
//   - For every scope there is a map of string to data.
//   - Accessing a key triggers a search from the current scope up to the root scope, the
//     first result found is returned.
//
// Example: let's say the current Params hold:
//
//	Scope: "/": { "hidden_size":100, "out_size": 2, "leaky_tau": 0.05 }
//	Scope: "/hidden": { "out_size": 3 }
//	Scope: "/hidden/cell": { "hidden_size": 10 }
//
//	Params.Get("/hidden/cell", "hidden_size") -> 10
//	Params.Get("/hidden/cell", "out_size") -> 3
//	Params.Get("/hidden/cell", "leaky_tau") -> 0.05
//	Params.Get("/hidden/cell", "w") -> Not found.
//
// Notice that "/" (== Separator) separates parts of the scope path, and the root
// scope is referred to as "/". There is no "empty" scope, and every scope name must start with
// a Separator.
//
// Params is safe for concurrent use.
type Params struct {
	Separator string

	mu         sync.RWMutex
	scopeToMap map[string]map[string]any
}

// New creates an empty Params.
func New(scopeSeparator string) *Params {
	return &Params{
		Separator:  scopeSeparator,
		scopeToMap: make(map[string]map[string]any),
	}
}

// Clone returns a deep copy of the Params.
func (p *Params) Clone() *Params {
	p.mu.RLock()
	defer p.mu.RUnlock()
	newParams := New(p.Separator)
	for scope, dataMap := range p.scopeToMap {
		newParams.scopeToMap[scope] = make(map[string]any, len(dataMap))
		for key, value := range dataMap {
			newParams.scopeToMap[scope][key] = value
		}
	}
	return newParams
}

// Set sets the value for the given key, in the given scope.
func (p *Params) Set(scope, key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dataMap, found := p.scopeToMap[scope]
	if !found {
		dataMap = make(map[string]any)
		p.scopeToMap[scope] = dataMap
	}
	dataMap[key] = value
}

// Get retrieves the value for the given key in the given scope or any parent scope.
// E.g: Get("/a/b", "myKey") will search for "myKey" in scopes "/a/b", "/a" and "/"
// consecutively until "myKey" is found.
//
// It returns the first value found if any, and whether some value was found.
func (p *Params) Get(scope, key string) (value any, found bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for {
		if dataMap, ok := p.scopeToMap[scope]; ok {
			if value, found = dataMap[key]; found {
				return
			}
		}
		if scope == p.Separator || scope == "" {
			return nil, false
		}
		idx := strings.LastIndex(scope, p.Separator)
		if idx <= 0 {
			scope = p.Separator
		} else {
			scope = scope[:idx]
		}
	}
}

// Enumerate enumerates all parameters stored, sorted by scope and then by key, and calls the
// given closure with them.
func (p *Params) Enumerate(fn func(scope, key string, value any)) {
	p.mu.RLock()
	type entry struct {
		scope, key string
		value      any
	}
	var entries []entry
	for _, scope := range xslices.SortedKeys(p.scopeToMap) {
		keyValues := p.scopeToMap[scope]
		for _, key := range xslices.SortedKeys(keyValues) {
			entries = append(entries, entry{scope, key, keyValues[key]})
		}
	}
	p.mu.RUnlock()
	for _, e := range entries {
		fn(e.scope, e.key, e.value)
	}
}
