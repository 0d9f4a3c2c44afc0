/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package esdb

import (
	"regexp"
	"strings"
)

// Filter restricts readAll/catch-up subscriptions to a subset of stream
// names, compiled from a sequence of patterns into a single anchored
// alternation (§4.5). Construct with NewIncludeFilter/NewExcludeFilter.
type Filter struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// NewIncludeFilter compiles patterns into an include filter. If include is
// non-empty, any exclude filter on the same request is ignored, per §4.5.
func NewIncludeFilter(patterns ...string) (*Filter, error) {
	re, err := compileAlternation(patterns)
	if err != nil {
		return nil, err
	}
	return &Filter{include: re}, nil
}

// NewExcludeFilter compiles patterns into an exclude filter.
func NewExcludeFilter(patterns ...string) (*Filter, error) {
	re, err := compileAlternation(patterns)
	if err != nil {
		return nil, err
	}
	return &Filter{exclude: re}, nil
}

func compileAlternation(patterns []string) (*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	anchored := make([]string, len(patterns))
	for i, p := range patterns {
		anchored[i] = "(?:" + p + ")"
	}
	return regexp.Compile("^(?:" + strings.Join(anchored, "|") + ")$")
}

// Matches reports whether streamID passes this filter.
func (f *Filter) Matches(streamID string) bool {
	if f == nil {
		return true
	}
	if f.include != nil {
		return f.include.MatchString(streamID)
	}
	if f.exclude != nil {
		return !f.exclude.MatchString(streamID)
	}
	return true
}

// IsExclude reports whether f is an exclude-style filter (as opposed to
// include-style). A zero-value/nil Filter is neither.
func (f *Filter) IsExclude() bool {
	return f != nil && f.exclude != nil
}

// String returns the compiled anchored-alternation pattern this filter
// sends over the wire (its include or exclude regex, whichever is set),
// or "" for a nil/empty Filter.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	if f.include != nil {
		return f.include.String()
	}
	if f.exclude != nil {
		return f.exclude.String()
	}
	return ""
}

// DefaultExcludeSystemEventsFilter excludes every `$`-prefixed system
// stream. It is never applied implicitly (callers opt in) — see
// SPEC_FULL §C.2.
var DefaultExcludeSystemEventsFilter = mustExclude(`\$.*`)

func mustExclude(pattern string) *Filter {
	f, err := NewExcludeFilter(pattern)
	if err != nil {
		panic(err)
	}
	return f
}
