// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stackflow

import (
	"go/ast"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/internal/analysistest"
	"github.com/google/go-cmp/cmp"
)

const listings = `
.unit t

.method t.use (string)()
    return
.end

.method t.straight ()()
.locals 1
    ldc "tcp"
    store 0
    load 0
    invokestatic t.use (string)()
    return
.end

.method t.literal ()()
    ldc "udp"
    invokestatic t.use (string)()
    return
.end

.method t.unconditionalFirst (bool)()
.locals 2
    ldc "passive"
    store 1
    load 0
    if L1
    ldc "gps"
    store 1
L1:
    load 1
    invokestatic t.use (string)()
    return
.end

.method t.loop (bool)()
.locals 2
    ldc "a"
    store 1
L1:
    load 0
    if L2
    ldc "b"
    store 1
    goto L1
L2:
    load 1
    invokestatic t.use (string)()
    return
.end

.method t.statics ()()
    getstatic t.provider "passive"
    invokestatic t.use (string)()
    getstatic t.mutable
    invokestatic t.use (string)()
    return
.end

.method t.get (bool)(string)
    load 0
    if L1
    ldc "x"
    return
L1:
    ldc "y"
    return
.end

.method t.calls (bool)()
    load 0
    invokestatic t.get (bool)(string)
    invokestatic t.use (string)()
    invokestatic t.external ()(string)
    invokestatic t.use (string)()
    return
.end

.method t.rec (bool)(string)
    load 0
    if L1
    ldc "base"
    return
L1:
    load 0
    invokestatic t.rec (bool)(string)
    return
.end

.method t.recursion ()()
    ldc 1
    invokestatic t.rec (bool)(string)
    invokestatic t.use (string)()
    return
.end

.method t.virtual ()()
    ldc "recv"
    ldc "tcp"
    ldc ":80"
    invokevirtual t.server.dial (string,string)()
    return
.end

.method t.stackOps ()()
    ldc "x"
    dup
    pop
    invokestatic t.use (string)()
    ldc "a"
    ldc "b"
    swap
    invokevirtual t.server.dial (string,string)()
    ldc "a"
    ldc "b"
    op concat 2 1
    invokestatic t.use (string)()
    return
.end

.method t.underflow ()()
    invokestatic t.use (string)()
    return
.end

.method t.c ()(string)
    ldc "deep"
    return
.end

.method t.b ()(string)
    invokestatic t.c ()(string)
    return
.end

.method t.a ()(string)
    invokestatic t.b ()(string)
    return
.end

.method t.depth ()()
    invokestatic t.a ()(string)
    invokestatic t.use (string)()
    return
.end

.method t.broken ()()
    ldc "tcp"
    invokestatic t.use (string)()
    goto L9
.end
`

func newListingResolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	unit, err := bytecode.ParseString(listings)
	if err != nil {
		t.Fatalf("could not parse listings: %v", err)
	}
	return NewResolver(unit, opts)
}

// invokes returns the indexes of the invoke instructions of the method with the given key
func invokes(t *testing.T, r *Resolver, key string) (*bytecode.Method, []int) {
	t.Helper()
	m := r.Unit().Method(key)
	if m == nil {
		t.Fatalf("no method %s", key)
	}
	var res []int
	for _, i := range m.Invokes() {
		if m.Code[i].Callee() != "t.rec" && m.Code[i].Callee() != "t.get" && m.Code[i].Callee() != "t.external" &&
			m.Code[i].Callee() != "t.a" {
			res = append(res, i)
		}
	}
	return m, res
}

func TestResolveListings(t *testing.T) {
	r := newListingResolver(t, Options{})
	for _, c := range []struct {
		method string
		want   [][]string
	}{
		{"t.straight", [][]string{{"tcp"}}},
		{"t.literal", [][]string{{"udp"}}},
		{"t.unconditionalFirst", [][]string{{"passive", "gps"}}},
		{"t.loop", [][]string{{"a", "b"}}},
		{"t.statics", [][]string{{"passive"}, {}}},
		{"t.calls", [][]string{{"x", "y"}, {}}},
		{"t.recursion", [][]string{{"base"}}},
		{"t.virtual", [][]string{{"tcp"}}},
		{"t.stackOps", [][]string{{"x"}, {"b"}, {}}},
		{"t.underflow", [][]string{{}}},
		{"t.depth", [][]string{{"deep"}}},
	} {
		m, calls := invokes(t, r, c.method)
		if len(calls) != len(c.want) {
			t.Fatalf("%s: expected %d calls, found %d", c.method, len(c.want), len(calls))
		}
		for i, call := range calls {
			got := r.ResolvePossibleStringValues(m, call, 0).Values()
			if got == nil {
				got = []string{}
			}
			if diff := cmp.Diff(c.want[i], got); diff != "" {
				t.Errorf("%s, call %d: unexpected values (-want +got):\n%s", c.method, i, diff)
			}
		}
	}
}

func TestResolveProvenance(t *testing.T) {
	r := newListingResolver(t, Options{})
	for _, c := range []struct {
		method string
		want   strflow.Provenance
	}{
		{"t.straight", strflow.TracedVariable},
		{"t.literal", strflow.Literal},
		{"t.statics", strflow.QualifiedConstant},
		{"t.calls", strflow.TracedReturn},
		{"t.stackOps", strflow.Literal},
	} {
		m, calls := invokes(t, r, c.method)
		res := r.ResolvePossibleStringValues(m, calls[0], 0)
		if len(res) == 0 || res[0].Provenance != c.want {
			t.Errorf("%s: expected %s, got %s", c.method, c.want, res)
		}
	}
}

func TestResolveRejectsBadRequests(t *testing.T) {
	r := newListingResolver(t, Options{})
	m, calls := invokes(t, r, "t.virtual")
	for name, res := range map[string]strflow.CandidateSet{
		"argument out of range": r.ResolvePossibleStringValues(m, calls[0], 2),
		"negative argument":     r.ResolvePossibleStringValues(m, calls[0], -1),
		"not an invoke":         r.ResolvePossibleStringValues(m, 0, 0),
		"out of code":           r.ResolvePossibleStringValues(m, len(m.Code), 0),
		"nil method":            r.ResolvePossibleStringValues(nil, 0, 0),
	} {
		if res == nil || len(res) != 0 {
			t.Errorf("%s: expected an empty set, got %v", name, res)
		}
	}
	if got := r.ResolvePossibleStringValues(m, calls[0], 1).Values(); len(got) != 1 || got[0] != ":80" {
		t.Errorf("second argument should be :80, got %v", got)
	}
}

func TestResolveBrokenMethod(t *testing.T) {
	r := newListingResolver(t, Options{})
	m := r.Unit().Method("t.broken")
	if res := r.ResolvePossibleStringValues(m, 1, 0); len(res) != 0 {
		t.Errorf("a method without control-flow graph resolves nothing, got %v", res)
	}
}

func TestMaxDepthBoundsCallTraces(t *testing.T) {
	for depth, want := range map[int][]string{1: {}, 2: {}, 3: {"deep"}} {
		r := newListingResolver(t, Options{MaxDepth: depth})
		m, calls := invokes(t, r, "t.depth")
		got := r.ResolvePossibleStringValues(m, calls[0], 0).Values()
		if got == nil {
			got = []string{}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("depth %d: unexpected values (-want +got):\n%s", depth, diff)
		}
	}
}

func TestMaxPathsBoundsEnumeration(t *testing.T) {
	r := newListingResolver(t, Options{MaxPaths: 1})
	m, calls := invokes(t, r, "t.loop")
	if got := r.ResolvePossibleStringValues(m, calls[0], 0); len(got) != 0 {
		t.Errorf("a single block visit cannot reach the call, got %v", got)
	}
	m, calls = invokes(t, r, "t.literal")
	if got := r.ResolvePossibleStringValues(m, calls[0], 0).Values(); len(got) != 1 {
		t.Errorf("a call in the entry block needs a single visit, got %v", got)
	}
}

func TestResolvePreviousConstant(t *testing.T) {
	r := newListingResolver(t, Options{})
	m, calls := invokes(t, r, "t.literal")
	if got := r.ResolvePreviousConstant(m, calls[0]).Values(); len(got) != 1 || got[0] != "udp" {
		t.Errorf("expected udp, got %v", got)
	}
	m, calls = invokes(t, r, "t.straight")
	if got := r.ResolvePreviousConstant(m, calls[0]); len(got) != 0 {
		t.Errorf("a load before the call resolves nothing, got %v", got)
	}
	unit, err := bytecode.ParseString(".method t.f ()()\n    ldc \"tcp\"\nL1:\n    line 3\n    invokestatic t.use (string)()\n    return\n.end")
	if err != nil {
		t.Fatalf("could not parse: %v", err)
	}
	m = unit.Method("t.f")
	if got := NewResolver(unit, Options{}).ResolvePreviousConstant(m, 3).Values(); len(got) != 1 || got[0] != "tcp" {
		t.Errorf("labels and line markers should be skipped, got %v", got)
	}
	if got := r.ResolvePreviousConstant(m, 0); got == nil || len(got) != 0 {
		t.Errorf("expected an empty set, got %v", got)
	}
}

func TestResolveIsIdempotentAndConcurrent(t *testing.T) {
	r := newListingResolver(t, Options{})
	m, calls := invokes(t, r, "t.loop")
	first := r.ResolvePossibleStringValues(m, calls[0], 0)
	var wg sync.WaitGroup
	results := make([]strflow.CandidateSet, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.ResolvePossibleStringValues(m, calls[0], 0)
		}(i)
	}
	wg.Wait()
	for _, res := range results {
		if diff := cmp.Diff(first, res); diff != "" {
			t.Errorf("results differ between requests (-first +other):\n%s", diff)
		}
	}
}

// The lowered form of the shared programs resolves to the same values as their syntax. Lowering may change the
// order of conditional values, so values are compared as sets.
func TestResolveSharedPrograms(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "testdata", "values.go"))
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	pkg := analysistest.Build(t, string(src))
	expected := analysistest.GetExpectedValues(pkg.Fset, []*ast.File{pkg.File})
	r := NewResolver(bytecode.Lower(pkg.SSA), Options{})
	seen := map[analysistest.LPos]bool{}
	for _, m := range r.Unit().Methods {
		for _, call := range m.Invokes() {
			in := m.Code[call]
			if in.Callee() != "p.use" {
				continue
			}
			pos := analysistest.RemoveColumn(pkg.Fset.Position(in.Pos))
			want, ok := expected[pos]
			if !ok {
				continue
			}
			seen[pos] = true
			got := r.ResolvePossibleStringValues(m, call, 0).Values()
			if diff := cmp.Diff(sorted(want), sorted(got)); diff != "" {
				t.Errorf("%s: unexpected values (-want +got):\n%s", pos, diff)
			}
		}
	}
	for pos := range expected {
		if !seen[pos] {
			t.Errorf("%s: annotated call not found in the lowered code", pos)
		}
	}
}

// The path-sensitive walk drops a conditional write that a later write shadows. The syntax engine keeps it.
func TestResolveShadowedConditionalWrite(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "testdata", "divergent.go"))
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	pkg := analysistest.Build(t, string(src))
	r := NewResolver(bytecode.Lower(pkg.SSA), Options{})
	var got [][]string
	for _, m := range r.Unit().Methods {
		for _, call := range m.Invokes() {
			if m.Code[call].Callee() == "p.use" {
				got = append(got, r.ResolvePossibleStringValues(m, call, 0).Values())
			}
		}
	}
	if diff := cmp.Diff([][]string{{"network"}}, got); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

func sorted(values []string) []string {
	res := append([]string{}, values...)
	sort.Strings(res)
	return res
}
