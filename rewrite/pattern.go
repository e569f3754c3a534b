// Copyright 2025 vectir Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rewrite provides the pattern abstraction and the greedy
// fixed-point driver that applies a pattern set to a program until no
// pattern matches or an iteration budget runs out.
//
// Patterns are stateless values: the same pattern instance may be
// evaluated against unrelated operations, in any order, without carrying
// state from one match to the next.
package rewrite

import (
	"github.com/pkg/errors"

	"github.com/vectir/vectir/vir"
)

// ErrNoMatch is the sentinel a pattern returns when it does not apply to
// an operation. It is not a failure: the driver simply tries the next
// pattern. Check it with errors.Is.
var ErrNoMatch = errors.New("pattern did not match")

// Pattern matches one operation and rewrites it in place through the
// rewriter. MatchAndRewrite must either return ErrNoMatch without
// mutating the program, or perform a complete replacement.
type Pattern interface {
	// Name identifies the pattern in debug output.
	Name() string

	// Benefit orders application: higher-benefit patterns are tried
	// first. Ties keep registration order.
	Benefit() int

	// MatchAndRewrite applies the pattern to op, or returns ErrNoMatch.
	MatchAndRewrite(op *vir.Operation, r *Rewriter) error
}

// PatternSet is a caller-owned, ordered collection of patterns.
// Duplicate additions are tolerated; they only cost redundant match
// attempts.
type PatternSet struct {
	patterns []Pattern
}

// Add appends patterns to the set.
func (ps *PatternSet) Add(patterns ...Pattern) {
	ps.patterns = append(ps.patterns, patterns...)
}

// Len returns the number of registered patterns.
func (ps *PatternSet) Len() int { return len(ps.patterns) }

// Rewriter is the mutation façade handed to patterns: a builder
// positioned at the matched operation plus replacement helpers.
type Rewriter struct {
	*vir.Builder
}

// ReplaceOpWith substitutes op's results with the given values and
// erases op.
func (r *Rewriter) ReplaceOpWith(op *vir.Operation, with ...*vir.Value) {
	r.ReplaceOp(op, with...)
}
