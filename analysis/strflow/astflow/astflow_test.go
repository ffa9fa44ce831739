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

package astflow

import (
	"go/ast"
	"os"
	"path/filepath"
	"testing"

	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/internal/analysistest"
	"github.com/google/go-cmp/cmp"
)

func newTestResolver(t *testing.T, src string, opts Options) (*Resolver, *analysistest.Package) {
	pkg := analysistest.Build(t, src)
	r := NewResolver(Frontend{Fset: pkg.Fset, Files: []*ast.File{pkg.File}, Info: pkg.Info}, opts)
	return r, pkg
}

// checkAnnotatedCalls resolves the first argument of every call to use and compares the values with the @Values
// annotation of the line.
func checkAnnotatedCalls(t *testing.T, src string, opts Options) {
	r, pkg := newTestResolver(t, src, opts)
	files := []*ast.File{pkg.File}
	expected := analysistest.GetExpectedValues(pkg.Fset, files)
	seen := map[analysistest.LPos]bool{}
	for _, site := range analysistest.FindCalls(pkg.Fset, files, pkg.Info, "use") {
		want, ok := expected[site.Pos]
		if !ok {
			continue
		}
		seen[site.Pos] = true
		got := r.ResolvePossibleStringValues(site.Call, 0).Values()
		if got == nil {
			got = []string{}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s: unexpected values (-want +got):\n%s", site.Pos, diff)
		}
	}
	for pos := range expected {
		if !seen[pos] {
			t.Errorf("%s: annotation without call to use", pos)
		}
	}
}

func TestResolveSharedPrograms(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "testdata", "values.go"))
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	checkAnnotatedCalls(t, string(src), Options{})
}

// A shadowed conditional write stays a candidate on syntax trees. The graph engine resolves the same call to network
// only.
func TestResolveShadowedConditionalWrite(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "testdata", "divergent.go"))
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	r, pkg := newTestResolver(t, string(src), Options{})
	sites := analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use")
	if len(sites) != 1 {
		t.Fatalf("expected one call to use, got %d", len(sites))
	}
	if diff := cmp.Diff([]string{"network", "gps"}, r.ResolvePossibleStringValues(sites[0].Call, 0).Values()); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
}

const treeOnlySrc = `package p

func use(s string) {}

type other struct{}

func (o other) name() string { return "gps" }

func helper() string { return "network" }

func conditionalSurvives(c bool) {
	x := "passive"
	if c {
		x = "gps"
	}
	x = "network"
	use(x) // @Values(network, gps)
}

func switches(k int) {
	x := "passive"
	switch k {
	case 1:
		x = "gps"
	case 2:
		x = "network"
	}
	use(x) // @Values(passive, gps, network)
}

func typeSwitch(v any) {
	x := "passive"
	switch v.(type) {
	case int:
		x = "gps"
	}
	use(x) // @Values(passive, gps)
}

func closures() {
	x := "passive"
	f := func() { x = "gps" }
	f()
	use(x) // @Values(passive, gps)
}

func deferred() {
	x := "passive"
	defer func() { x = "gps" }()
	use(x) // @Values(passive)
}

func deferredInLoop(xs []int) {
	x := "passive"
	for range xs {
		defer func() { x = "gps" }()
		use(x) // @Values(passive)
	}
}

func deferredUse(c bool) {
	x := "passive"
	defer func() {
		if c {
			x = "gps"
		}
		use(x) // @Values(passive, gps)
	}()
}

func loops(xs []int) {
	x := "passive"
	for range xs {
		x = "gps"
	}
	use(x) // @Values(passive, gps)
}

func initStatements() {
	x := "passive"
	if x = "gps"; len(x) > 2 {
		use(x) // @Values(gps)
	}
}

func useInsideBranch(c bool) {
	x := "passive"
	if c {
		x = "gps"
		use(x) // @Values(passive, gps)
	}
}

func nestedLocalCall() {
	x := string(helper())
	use(x) // @Values(network)
}

func nestedForeignCall(o other) {
	x := string(o.name())
	use(x) // @Values()
}

func selfReference() {
	x := "gps"
	x = (x)
	use(x) // @Values()
}

func parenthesized() {
	x := ("gps")
	use(x) // @Values(gps)
}
`

func TestResolveTreeOnlyPrograms(t *testing.T) {
	checkAnnotatedCalls(t, treeOnlySrc, Options{})
}

const provenanceSrc = `package p

const Network = "network"

func use(s ...string) {}

func get() string { return "gps" }

func f() {
	x := "passive"
	use("tcp")
	use(Network)
	use(x)
	use(get())
	use("a", "b")
}
`

func TestProvenanceIsFirstHop(t *testing.T) {
	r, pkg := newTestResolver(t, provenanceSrc, Options{})
	sites := analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use")
	if len(sites) != 5 {
		t.Fatalf("expected 5 calls, got %d", len(sites))
	}
	want := []strflow.Provenance{strflow.Literal, strflow.QualifiedConstant, strflow.TracedVariable,
		strflow.TracedReturn}
	for i, p := range want {
		res := r.ResolvePossibleStringValues(sites[i].Call, 0)
		if len(res) != 1 {
			t.Errorf("%s: expected one value, got %s", sites[i].Pos, res)
			continue
		}
		if res[0].Provenance != p {
			t.Errorf("%s: expected provenance %s, got %s", sites[i].Pos, p, res[0].Provenance)
		}
		if !res[0].Pos.IsValid() {
			t.Errorf("%s: expected a valid position for %s", sites[i].Pos, res[0])
		}
	}
}

func TestResolveArgumentPosition(t *testing.T) {
	r, pkg := newTestResolver(t, provenanceSrc, Options{})
	sites := analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use")
	call := sites[4].Call
	if diff := cmp.Diff([]string{"b"}, r.ResolvePossibleStringValues(call, 1).Values()); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}
	for _, arg := range []int{-1, 2} {
		res := r.ResolvePossibleStringValues(call, arg)
		if res == nil || len(res) != 0 {
			t.Errorf("argument %d out of range should give an empty set, got %v", arg, res)
		}
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "testdata", "values.go"))
	if err != nil {
		t.Fatalf("could not read test program: %v", err)
	}
	r, pkg := newTestResolver(t, string(src), Options{})
	for _, site := range analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use") {
		first := r.ResolvePossibleStringValues(site.Call, 0)
		second := r.ResolvePossibleStringValues(site.Call, 0)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s: resolution is not idempotent (-first +second):\n%s", site.Pos, diff)
		}
	}
}

const depthSrc = `package p

func use(s string) {}

func f() {
	a := "network"
	b := a
	c := b
	use(c)
}
`

func TestMaxDepthBoundsTraces(t *testing.T) {
	for _, tc := range []struct {
		depth int
		want  []string
	}{
		{depth: 1, want: []string{}},
		{depth: 2, want: []string{}},
		{depth: 3, want: []string{"network"}},
	} {
		r, pkg := newTestResolver(t, depthSrc, Options{MaxDepth: tc.depth})
		sites := analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use")
		got := r.ResolvePossibleStringValues(sites[0].Call, 0).Values()
		if got == nil {
			got = []string{}
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("depth %d: unexpected values (-want +got):\n%s", tc.depth, diff)
		}
	}
}

func TestTryExtract(t *testing.T) {
	r, pkg := newTestResolver(t, provenanceSrc, Options{})
	sites := analysistest.FindCalls(pkg.Fset, []*ast.File{pkg.File}, pkg.Info, "use")
	if c, ok := r.TryExtract(sites[0].Call.Args[0]); !ok || c.Value != "tcp" || c.Provenance != strflow.Literal {
		t.Errorf("expected literal tcp, got %v %v", c, ok)
	}
	if c, ok := r.TryExtract(sites[1].Call.Args[0]); !ok || c.Value != "network" ||
		c.Provenance != strflow.QualifiedConstant {
		t.Errorf("expected constant network, got %v %v", c, ok)
	}
	if _, ok := r.TryExtract(sites[2].Call.Args[0]); ok {
		t.Errorf("a local variable is not extracted without tracing")
	}
	if _, ok := r.TryExtract(sites[3].Call.Args[0]); ok {
		t.Errorf("a call is not extracted without tracing")
	}
}
