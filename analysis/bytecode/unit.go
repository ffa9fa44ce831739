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

package bytecode

import (
	"sort"
	"strings"
)

// A Method is a listing with its identity
type Method struct {
	// Owner is the package path, followed by the receiver type name for methods
	Owner string
	Name  string
	Desc  Descriptor

	// Locals is the number of local slots used by the code; parameters occupy the first slots
	Locals int

	Code []Instruction
}

// Key returns the name invoke instructions use to refer to the method
func (m *Method) Key() string {
	return m.Owner + "." + m.Name
}

func (m *Method) String() string {
	return m.Key() + m.Desc.String()
}

// Invokes returns the indexes of the invoke instructions of the method, in code order
func (m *Method) Invokes() []int {
	var res []int
	for i, in := range m.Code {
		if in.Op.IsInvoke() {
			res = append(res, i)
		}
	}
	return res
}

// A Unit is a set of methods compiled together. Calls to methods outside of the unit are opaque.
type Unit struct {
	Name    string
	Methods []*Method

	index map[string]*Method
}

// NewUnit returns a unit with the methods given, sorted by key
func NewUnit(name string, methods ...*Method) *Unit {
	u := &Unit{Name: name}
	for _, m := range methods {
		u.Add(m)
	}
	return u
}

// Add adds a method to the unit. A method with the same key replaces the previous one.
func (u *Unit) Add(m *Method) {
	if u.index == nil {
		u.index = map[string]*Method{}
	}
	if old, ok := u.index[m.Key()]; ok {
		for i, x := range u.Methods {
			if x == old {
				u.Methods[i] = m
			}
		}
	} else {
		u.Methods = append(u.Methods, m)
		sort.Slice(u.Methods, func(i, j int) bool { return u.Methods[i].Key() < u.Methods[j].Key() })
	}
	u.index[m.Key()] = m
}

// Method returns the method with the given key, or nil if it does not belong to the unit
func (u *Unit) Method(key string) *Method {
	if u == nil {
		return nil
	}
	return u.index[key]
}

// Callee returns the method of the unit called by the instruction at index i of m, or nil
func (u *Unit) Callee(m *Method, i int) *Method {
	if i < 0 || i >= len(m.Code) || !m.Code[i].Op.IsInvoke() {
		return nil
	}
	return u.Method(m.Code[i].Callee())
}

// splitKey splits a method key at its last dot
func splitKey(key string) (owner string, name string, ok bool) {
	i := strings.LastIndexByte(key, '.')
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
