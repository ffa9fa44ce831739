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

// Package bytecode defines the stack-based instruction listings analyzed by the instruction-graph resolver, a textual
// assembly for writing them by hand, their control-flow graphs, and the lowering of Go SSA functions into listings.
//
// A listing is a sequence of instructions over an operand stack and a table of numbered local slots. Labels are
// pseudo-instructions that mark jump targets; line markers attach source positions to the code that follows them.
package bytecode

import (
	"fmt"
	"go/token"
	"strconv"
	"strings"
)

// An Opcode is the operation of an instruction
type Opcode int

const (
	// NOP does nothing
	NOP Opcode = iota
	// LABEL marks a jump target
	LABEL
	// LINE marks the source line of the following instructions
	LINE
	// LDC pushes a constant
	LDC
	// GETSTATIC pushes the value of a package-level variable
	GETSTATIC
	// LOAD pushes the value of a local slot
	LOAD
	// STORE pops the top of the stack into a local slot
	STORE
	// POP discards the top of the stack
	POP
	// DUP duplicates the top of the stack
	DUP
	// SWAP exchanges the two topmost entries
	SWAP
	// OP is any other computation: it pops Pops entries and pushes Pushes unknown values
	OP
	// INVOKESTATIC calls a function
	INVOKESTATIC
	// INVOKEVIRTUAL calls a method; the receiver is below the arguments on the stack
	INVOKEVIRTUAL
	// IF pops a condition and jumps to a label or falls through
	IF
	// GOTO jumps to a label
	GOTO
	// RETURN pops the results and leaves the method
	RETURN
	// THROW pops a value and leaves the method abnormally
	THROW
)

var opcodeNames = [...]string{
	NOP:           "nop",
	LABEL:         "label",
	LINE:          "line",
	LDC:           "ldc",
	GETSTATIC:     "getstatic",
	LOAD:          "load",
	STORE:         "store",
	POP:           "pop",
	DUP:           "dup",
	SWAP:          "swap",
	OP:            "op",
	INVOKESTATIC:  "invokestatic",
	INVOKEVIRTUAL: "invokevirtual",
	IF:            "if",
	GOTO:          "goto",
	RETURN:        "return",
	THROW:         "throw",
}

func (op Opcode) String() string {
	if op < 0 || int(op) >= len(opcodeNames) {
		return "Opcode(" + strconv.Itoa(int(op)) + ")"
	}
	return opcodeNames[op]
}

func parseOpcode(s string) (Opcode, bool) {
	for op, name := range opcodeNames {
		if name == s && Opcode(op) != LABEL {
			return Opcode(op), true
		}
	}
	return NOP, false
}

// IsInvoke returns true for the call opcodes
func (op Opcode) IsInvoke() bool {
	return op == INVOKESTATIC || op == INVOKEVIRTUAL
}

// IsJump returns true for the opcodes that end a basic block
func (op Opcode) IsJump() bool {
	return op == IF || op == GOTO || op == RETURN || op == THROW
}

// An Instruction is one element of a listing. Only the fields relevant to the opcode are set.
type Instruction struct {
	Op Opcode

	// Str is the string constant of an LDC, or the known value of a GETSTATIC, when HasStr is set
	Str    string
	HasStr bool

	// Text is the label of LABEL, IF and GOTO, the source text of a non-string LDC, the variable of a GETSTATIC and
	// the operation name of an OP
	Text string

	// Slot is the local slot of LOAD and STORE, and the line number of LINE
	Slot int

	// Pops and Pushes are the stack effect of OP
	Pops   int
	Pushes int

	// Owner, Name and Desc identify the callee of an invoke
	Owner string
	Name  string
	Desc  Descriptor

	// Pos is the source position of the instruction, if any
	Pos token.Pos
}

// Callee returns the key of the method called by an invoke instruction
func (in Instruction) Callee() string {
	return in.Owner + "." + in.Name
}

// StackEffect returns the number of entries popped and pushed by the instruction
func (in Instruction) StackEffect() (pops int, pushes int) {
	switch in.Op {
	case LDC, GETSTATIC, LOAD:
		return 0, 1
	case STORE, POP, IF, THROW:
		return 1, 0
	case DUP:
		return 1, 2
	case SWAP:
		return 2, 2
	case OP:
		return in.Pops, in.Pushes
	case INVOKESTATIC:
		return len(in.Desc.Params), len(in.Desc.Results)
	case INVOKEVIRTUAL:
		return len(in.Desc.Params) + 1, len(in.Desc.Results)
	}
	return 0, 0
}

func (in Instruction) String() string {
	switch in.Op {
	case LABEL:
		return in.Text + ":"
	case LINE:
		return "line " + strconv.Itoa(in.Slot)
	case LDC:
		if in.HasStr {
			return "ldc " + strconv.Quote(in.Str)
		}
		return "ldc " + in.Text
	case GETSTATIC:
		if in.HasStr {
			return "getstatic " + in.Text + " " + strconv.Quote(in.Str)
		}
		return "getstatic " + in.Text
	case LOAD, STORE:
		return in.Op.String() + " " + strconv.Itoa(in.Slot)
	case OP:
		return fmt.Sprintf("op %s %d %d", in.Text, in.Pops, in.Pushes)
	case INVOKESTATIC, INVOKEVIRTUAL:
		return in.Op.String() + " " + in.Callee() + " " + in.Desc.String()
	case IF, GOTO:
		return in.Op.String() + " " + in.Text
	}
	return in.Op.String()
}

// A Descriptor gives the parameter and result types of a method, receiver excluded.
// Its textual form is "(string,int)(bool)".
type Descriptor struct {
	Params  []string
	Results []string
}

// StringType is the descriptor name of the types whose underlying type is string
const StringType = "string"

// IsString returns true if parameter i is a string
func (d Descriptor) IsString(i int) bool {
	return i >= 0 && i < len(d.Params) && d.Params[i] == StringType
}

func (d Descriptor) String() string {
	return "(" + strings.Join(d.Params, ",") + ")(" + strings.Join(d.Results, ",") + ")"
}

// ParseDescriptor parses the textual form of a descriptor
func ParseDescriptor(s string) (Descriptor, error) {
	var d Descriptor
	params, rest, ok := parseTypeList(s)
	if !ok {
		return d, fmt.Errorf("malformed descriptor %q", s)
	}
	results, rest, ok := parseTypeList(rest)
	if !ok || rest != "" {
		return d, fmt.Errorf("malformed descriptor %q", s)
	}
	d.Params = params
	d.Results = results
	return d, nil
}

func parseTypeList(s string) ([]string, string, bool) {
	if !strings.HasPrefix(s, "(") {
		return nil, s, false
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, s, false
	}
	inner := s[1:end]
	if inner == "" {
		return nil, s[end+1:], true
	}
	types := strings.Split(inner, ",")
	for _, t := range types {
		if t == "" {
			return nil, s, false
		}
	}
	return types, s[end+1:], true
}
