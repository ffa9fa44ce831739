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
	"strings"
	"testing"

	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/google/go-cmp/cmp"
)

const dialListing = `
.unit example
; the network is chosen by a flag
.method example.dial (bool)()
.locals 2
    ldc "tcp" ; default
    store 1
    load 0
    if L1
    ldc "udp;4"
    store 1
L1:
    load 1
    ldc ":80"
    invokestatic net.Dial (string,string)(net.Conn,error)
    pop
    pop
    return
.end

.method example.server.name ()(string)
    getstatic example.defaultName "passive"
    op concat 1 1
    return
.end
`

func TestParse(t *testing.T) {
	unit, err := bytecode.ParseString(dialListing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unit.Name != "example" || len(unit.Methods) != 2 {
		t.Fatalf("unexpected unit %q with %d methods", unit.Name, len(unit.Methods))
	}
	dial := unit.Method("example.dial")
	if dial == nil {
		t.Fatalf("dial not found in %v", unit.Methods)
	}
	if dial.Locals != 2 || len(dial.Desc.Params) != 1 || dial.Desc.Params[0] != "bool" {
		t.Errorf("unexpected header %s with %d locals", dial, dial.Locals)
	}
	if in := dial.Code[4]; in.Op != bytecode.LDC || !in.HasStr || in.Str != "udp;4" {
		t.Errorf("semicolon in string should not start a comment, got %v", in)
	}
	invokes := dial.Invokes()
	if len(invokes) != 1 {
		t.Fatalf("expected one invoke, got %v", invokes)
	}
	call := dial.Code[invokes[0]]
	if call.Callee() != "net.Dial" || !call.Desc.IsString(0) || !call.Desc.IsString(1) || call.Desc.IsString(2) {
		t.Errorf("unexpected call %v", call)
	}
	if pops, pushes := call.StackEffect(); pops != 2 || pushes != 2 {
		t.Errorf("unexpected stack effect %d %d", pops, pushes)
	}

	name := unit.Method("example.server.name")
	if name == nil || name.Locals != 0 {
		t.Fatalf("method with receiver not parsed: %v", unit.Methods)
	}
	if in := name.Code[0]; in.Op != bytecode.GETSTATIC || in.Text != "example.defaultName" || in.Str != "passive" {
		t.Errorf("unexpected getstatic %v", in)
	}
	if in := name.Code[1]; in.Op != bytecode.OP || in.Pops != 1 || in.Pushes != 1 || in.Text != "concat" {
		t.Errorf("unexpected op %v", in)
	}
}

func TestParseRoundTrip(t *testing.T) {
	unit, err := bytecode.ParseString(dialListing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := bytecode.ParseString(unit.String())
	if err != nil {
		t.Fatalf("could not parse printed unit: %v\n%s", err, unit)
	}
	if diff := cmp.Diff(unit.Methods, again.Methods); diff != "" {
		t.Errorf("printed unit differs (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for name, src := range map[string]string{
		"outside":    "ldc \"tcp\"",
		"unknown":    ".method a.f ()()\n    jump L1\n.end",
		"no end":     ".method a.f ()()\n    return",
		"descriptor": ".method a.f (string\n.end",
		"nested":     ".method a.f ()()\n.method a.g ()()\n.end",
		"operand":    ".method a.f ()()\n    pop 1\n.end",
		"slot":       ".method a.f ()()\n    load x\n.end",
		"string":     ".method a.f ()()\n    ldc \"tcp\n.end",
		"invoke":     ".method a.f ()()\n    invokestatic Dial ()()\n.end",
		"op":         ".method a.f ()()\n    op concat 2\n.end",
		"directive":  ".class a",
	} {
		if _, err := bytecode.ParseString(src); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestDescriptor(t *testing.T) {
	d, err := bytecode.ParseDescriptor("(string,int)(bool)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(bytecode.Descriptor{Params: []string{"string", "int"}, Results: []string{"bool"}}, d); diff != "" {
		t.Errorf("unexpected descriptor (-want +got):\n%s", diff)
	}
	if d.String() != "(string,int)(bool)" {
		t.Errorf("unexpected string %s", d)
	}
	if !d.IsString(0) || d.IsString(1) || d.IsString(5) || d.IsString(-1) {
		t.Errorf("IsString is wrong for %s", d)
	}
	empty, err := bytecode.ParseDescriptor("()()")
	if err != nil || len(empty.Params) != 0 || len(empty.Results) != 0 {
		t.Errorf("unexpected empty descriptor %v %v", empty, err)
	}
	for _, bad := range []string{"", "(string)", "(string,)()", "()()x", "string()"} {
		if _, err := bytecode.ParseDescriptor(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestUnitAddReplaces(t *testing.T) {
	unit := bytecode.NewUnit("u",
		&bytecode.Method{Owner: "u", Name: "b"},
		&bytecode.Method{Owner: "u", Name: "a"})
	replacement := &bytecode.Method{Owner: "u", Name: "b", Locals: 3}
	unit.Add(replacement)
	keys := make([]string, len(unit.Methods))
	for i, m := range unit.Methods {
		keys[i] = m.Key()
	}
	if strings.Join(keys, " ") != "u.a u.b" || unit.Method("u.b") != replacement {
		t.Errorf("unexpected methods %v", keys)
	}
	var nilUnit *bytecode.Unit
	if nilUnit.Method("u.a") != nil {
		t.Errorf("nil unit should have no method")
	}
}
