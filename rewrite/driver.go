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

package rewrite

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/vectir/vectir/vir"
)

// debugRewrite enables debug output for the driver.
// Set DEBUG_REWRITE in the environment to turn it on.
var debugRewrite = os.Getenv("DEBUG_REWRITE") != ""

func debugPrint(format string, args ...any) {
	if debugRewrite {
		fmt.Printf("[rewrite] "+format+"\n", args...)
	}
}

// defaultMaxIterations bounds the fixed-point loop. One iteration is a
// full sweep over the program; progressive lowerings typically converge
// in a handful of sweeps.
const defaultMaxIterations = 32

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	maxIterations int
}

// WithMaxIterations overrides the sweep budget.
func WithMaxIterations(n int) ApplyOption {
	return func(c *applyConfig) { c.maxIterations = n }
}

// Apply runs the greedy fixed-point loop: sweep every operation, apply
// the first matching pattern (highest benefit first), eliminate dead
// side-effect-free operations, and repeat until a sweep changes nothing.
// It reports whether a fixed point was reached within the budget. A
// pattern error other than ErrNoMatch aborts the run.
func Apply(fn *vir.Func, ps *PatternSet, opts ...ApplyOption) (bool, error) {
	cfg := applyConfig{maxIterations: defaultMaxIterations}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Stable sort keeps registration order among equal benefits, which
	// makes the driver deterministic across runs.
	patterns := append([]Pattern(nil), ps.patterns...)
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Benefit() > patterns[j].Benefit()
	})

	for iter := 0; iter < cfg.maxIterations; iter++ {
		changed, err := sweep(fn, patterns)
		if err != nil {
			return false, err
		}
		changed = eliminateDead(fn) || changed
		if !changed {
			debugPrint("fixed point after %d sweeps", iter)
			return true, nil
		}
	}
	return false, nil
}

// sweep tries every pattern on every operation once, in program order.
func sweep(fn *vir.Func, patterns []Pattern) (bool, error) {
	// Snapshot: patterns splice operations in and out while we iterate.
	var worklist []*vir.Operation
	fn.Walk(func(op *vir.Operation) bool {
		worklist = append(worklist, op)
		return true
	})

	changed := false
	for _, op := range worklist {
		if op.Erased() {
			continue
		}
		for _, p := range patterns {
			b := vir.NewBuilder(fn)
			b.SetInsertionPointBefore(op)
			err := p.MatchAndRewrite(op, &Rewriter{Builder: b})
			if errors.Is(err, ErrNoMatch) {
				continue
			}
			if err != nil {
				return false, errors.WithMessagef(err, "pattern %s on %s", p.Name(), op.Kind)
			}
			debugPrint("applied %s to %s", p.Name(), op.Kind)
			changed = true
			break
		}
	}
	return changed, nil
}

// eliminateDead removes operations whose results are unused and which
// have no side effects. This is the external dead-code elimination the
// slice lowering relies on to clean up fully-consumed aggregates.
func eliminateDead(fn *vir.Func) bool {
	b := vir.NewBuilder(fn)
	removed := false
	for {
		var dead []*vir.Operation
		fn.Walk(func(op *vir.Operation) bool {
			if op.Erased() || op.HasSideEffects() {
				return true
			}
			for _, res := range op.Results {
				if res.HasUses() {
					return true
				}
			}
			dead = append(dead, op)
			return true
		})
		if len(dead) == 0 {
			return removed
		}
		for _, op := range dead {
			if !op.Erased() {
				debugPrint("dce %s", op.Kind)
				b.Erase(op)
			}
		}
		removed = true
	}
}
