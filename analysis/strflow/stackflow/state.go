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
	"go/token"

	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/internal/graphutil"
)

type entryKind int

const (
	unknownEntry entryKind = iota
	constEntry
	resultEntry
)

// An entry is the abstract value of a stack entry or a local slot
type entry struct {
	kind entryKind

	// value and provenance of a constant entry
	value      string
	provenance strflow.Provenance
	pos        token.Pos

	// block is the block of the instruction that produced the entry
	block int

	// local is set once the entry has been loaded from a slot
	local bool

	// callee and index of a result entry: the index-th result of a call to callee
	callee *bytecode.Method
	index  int
}

// pathState is the state of the simulation along one path. States are forked at each successor so that paths never
// share their stack or slots.
type pathState struct {
	stack []entry
	slots []entry

	// path holds the blocks visited, innermost last
	path *graphutil.Tree[int]

	underflow bool
}

func newPathState(m *bytecode.Method) pathState {
	return pathState{
		slots: make([]entry, m.Locals),
		path:  graphutil.NewTree(-1),
	}
}

// Fork implements strflow.State. Values are classified by the block that produced them, not by the path, so the
// conditional flag is not used.
func (s pathState) Fork(bool) pathState {
	return pathState{
		stack:     append([]entry(nil), s.stack...),
		slots:     append([]entry(nil), s.slots...),
		path:      s.path,
		underflow: s.underflow,
	}
}

func (s *pathState) push(e entry) {
	s.stack = append(s.stack, e)
}

// pop removes the top of the stack. Popping an empty stack yields an unknown entry.
func (s *pathState) pop() entry {
	if len(s.stack) == 0 {
		s.underflow = true
		return entry{}
	}
	e := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return e
}

func (s *pathState) load(slot int) entry {
	if slot < 0 || slot >= len(s.slots) {
		return entry{}
	}
	e := s.slots[slot]
	if e.kind != unknownEntry {
		e.local = true
	}
	return e
}

func (s *pathState) store(slot int, e entry) {
	if slot < 0 {
		return
	}
	for slot >= len(s.slots) {
		s.slots = append(s.slots, entry{})
	}
	s.slots[slot] = e
}

// step simulates in, an instruction of block b
func (s *pathState) step(unit *bytecode.Unit, in bytecode.Instruction, b int) {
	switch in.Op {
	case bytecode.LDC:
		if in.HasStr {
			s.push(entry{kind: constEntry, value: in.Str, provenance: strflow.Literal, pos: in.Pos, block: b})
		} else {
			s.push(entry{block: b})
		}
	case bytecode.GETSTATIC:
		if in.HasStr {
			s.push(entry{kind: constEntry, value: in.Str, provenance: strflow.QualifiedConstant, pos: in.Pos, block: b})
		} else {
			s.push(entry{block: b})
		}
	case bytecode.LOAD:
		s.push(s.load(in.Slot))
	case bytecode.STORE:
		s.store(in.Slot, s.pop())
	case bytecode.DUP:
		e := s.pop()
		s.push(e)
		s.push(e)
	case bytecode.SWAP:
		x := s.pop()
		y := s.pop()
		s.push(x)
		s.push(y)
	case bytecode.INVOKESTATIC, bytecode.INVOKEVIRTUAL:
		pops, pushes := in.StackEffect()
		s.drop(pops)
		callee := unit.Method(in.Callee())
		for i := 0; i < pushes; i++ {
			if callee != nil {
				s.push(entry{kind: resultEntry, callee: callee, index: i, pos: in.Pos, block: b})
			} else {
				s.push(entry{block: b})
			}
		}
	default:
		pops, pushes := in.StackEffect()
		s.drop(pops)
		for i := 0; i < pushes; i++ {
			s.push(entry{block: b})
		}
	}
}

func (s *pathState) drop(n int) {
	for i := 0; i < n; i++ {
		s.pop()
	}
}

// operand returns the entry consumed at position i of the operands of an instruction popping n entries
func (s *pathState) operand(n int, i int) entry {
	j := len(s.stack) - n + i
	if j < 0 || j >= len(s.stack) || i >= n {
		s.underflow = s.underflow || j < 0
		return entry{}
	}
	return s.stack[j]
}
