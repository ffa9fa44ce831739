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

package bytecode_test

import (
	"testing"

	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/internal/analysistest"
)

const lowerSrc = `package p

var provider = "passive"
var mutable = "a"

func init() { mutable = "b" }

func use(s string) {}

func pick(c bool) string {
	x := "gps"
	if c {
		x = "network"
	}
	use(x)
	use(provider)
	use(mutable)
	return x
}

type server struct{ kind string }

func (s *server) network() string { return "tcp" }

func (s *server) dial() {
	use(s.network())
	f := func() string { return "udp" }
	use(f())
	use(s.kind)
}
`

func lower(t *testing.T) *bytecode.Unit {
	t.Helper()
	return bytecode.Lower(analysistest.Build(t, lowerSrc).SSA)
}

func TestLowerMethods(t *testing.T) {
	unit := lower(t)
	for _, key := range []string{"p.init", "p.init#1", "p.use", "p.pick", "p.server.network", "p.server.dial",
		"p.server.dial$1"} {
		if unit.Method(key) == nil {
			t.Errorf("method %s missing from %v", key, unit.Methods)
		}
	}
	if unit.Name != "p" {
		t.Errorf("unexpected unit name %q", unit.Name)
	}
	pick := unit.Method("p.pick")
	if pick.Desc.String() != "(bool)(string)" {
		t.Errorf("unexpected descriptor %s", pick.Desc)
	}
	if pick.Locals < 1 {
		t.Errorf("the parameter should have a slot")
	}
}

// Each block of a lowered method starts and ends with an empty stack
func TestLowerBalancedBlocks(t *testing.T) {
	unit := lower(t)
	for _, m := range unit.Methods {
		cfg, err := bytecode.BuildCFG(m)
		if err != nil {
			t.Fatalf("could not build cfg of %s: %v\n%s", m, err, unit)
		}
		for _, b := range cfg.Blocks {
			depth := 0
			for _, in := range m.Code[b.Start:b.End] {
				pops, pushes := in.StackEffect()
				if in.Op == bytecode.RETURN {
					pops = len(m.Desc.Results)
				}
				depth -= pops
				if depth < 0 {
					t.Fatalf("stack underflow at %v in %s", in, m)
				}
				depth += pushes
			}
			if depth != 0 {
				t.Errorf("block %d of %s ends with %d entries", b.Index, m, depth)
			}
		}
	}
}

func TestLowerGlobals(t *testing.T) {
	pick := lower(t).Method("p.pick")
	found := map[string]bytecode.Instruction{}
	for _, in := range pick.Code {
		if in.Op == bytecode.GETSTATIC {
			found[in.Text] = in
		}
	}
	if in := found["p.provider"]; !in.HasStr || in.Str != "passive" {
		t.Errorf("provider should be a known constant, got %v", in)
	}
	if in, ok := found["p.mutable"]; !ok || in.HasStr {
		t.Errorf("mutable is written by init and should be unknown, got %v", in)
	}
}

func TestLowerPhiMoves(t *testing.T) {
	pick := lower(t).Method("p.pick")
	stores := map[string]int{}
	for i, in := range pick.Code[:len(pick.Code)-1] {
		if in.Op == bytecode.LDC && in.HasStr && pick.Code[i+1].Op == bytecode.STORE {
			stores[in.Str] = pick.Code[i+1].Slot
		}
	}
	gps, ok1 := stores["gps"]
	network, ok2 := stores["network"]
	if !ok1 || !ok2 || gps != network {
		t.Errorf("both branches should store into the slot of x, got %v\n%s", stores, bytecode.NewUnit("", pick))
	}
}

func TestLowerCalls(t *testing.T) {
	unit := lower(t)
	dial := unit.Method("p.server.dial")
	var callees []string
	for _, i := range dial.Invokes() {
		in := dial.Code[i]
		callees = append(callees, in.Op.String()+" "+in.Callee())
		if unit.Callee(dial, i) == nil {
			t.Errorf("%v should call a method of the unit", in)
		}
	}
	want := []string{
		"invokevirtual p.server.network",
		"invokestatic p.use",
		"invokestatic p.server.dial$1",
		"invokestatic p.use",
		"invokestatic p.use",
	}
	if len(callees) != len(want) {
		t.Fatalf("unexpected calls %v", callees)
	}
	for i := range want {
		if callees[i] != want[i] {
			t.Errorf("call %d is %s, expected %s", i, callees[i], want[i])
		}
	}
}
