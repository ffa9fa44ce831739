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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse reads a unit written in the assembly syntax:
//
//	.unit example
//	.method example.dial (string)()
//	.locals 2
//	    ldc "tcp"
//	    store 1
//	L1:
//	    load 1
//	    invokestatic net.Dial (string,string)(object,error)
//	    return
//	.end
//
// Comments start with a semicolon outside of string literals.
func Parse(r io.Reader) (*Unit, error) {
	p := parser{unit: &Unit{}}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(stripComment(sc.Text())); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if p.method != nil {
		return nil, fmt.Errorf("method %s is missing .end", p.method.Key())
	}
	return p.unit, nil
}

// ParseString is Parse on a string
func ParseString(s string) (*Unit, error) {
	return Parse(strings.NewReader(s))
}

type parser struct {
	unit   *Unit
	method *Method
	line   int
}

func (p *parser) parseLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ".") {
		return p.parseDirective(line)
	}
	if p.method == nil {
		return fmt.Errorf("instruction outside of a method: %q", line)
	}
	in, err := parseInstruction(line)
	if err != nil {
		return err
	}
	p.method.Code = append(p.method.Code, in)
	return nil
}

func (p *parser) parseDirective(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ".unit":
		if len(fields) != 2 {
			return fmt.Errorf("expected .unit name")
		}
		p.unit.Name = fields[1]
	case ".method":
		if p.method != nil {
			return fmt.Errorf("nested method in %s", p.method.Key())
		}
		if len(fields) != 3 {
			return fmt.Errorf("expected .method Owner.Name descriptor")
		}
		owner, name, ok := splitKey(fields[1])
		if !ok {
			return fmt.Errorf("malformed method name %q", fields[1])
		}
		desc, err := ParseDescriptor(fields[2])
		if err != nil {
			return err
		}
		p.method = &Method{Owner: owner, Name: name, Desc: desc, Locals: len(desc.Params)}
	case ".locals":
		if p.method == nil || len(fields) != 2 {
			return fmt.Errorf("expected .locals n inside a method")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid number of locals %q", fields[1])
		}
		p.method.Locals = n
	case ".end":
		if p.method == nil {
			return fmt.Errorf(".end outside of a method")
		}
		p.unit.Add(p.method)
		p.method = nil
	default:
		return fmt.Errorf("unknown directive %s", fields[0])
	}
	return nil
}

func parseInstruction(line string) (Instruction, error) {
	if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t\"") {
		return Instruction{Op: LABEL, Text: strings.TrimSuffix(line, ":")}, nil
	}
	mnemonic, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	op, ok := parseOpcode(mnemonic)
	if !ok {
		return Instruction{}, fmt.Errorf("unknown instruction %q", mnemonic)
	}
	in := Instruction{Op: op}
	args := strings.Fields(rest)
	switch op {
	case NOP, POP, DUP, SWAP, RETURN, THROW:
		if len(args) != 0 {
			return in, fmt.Errorf("%s takes no operand", op)
		}
	case LINE, LOAD, STORE:
		if len(args) != 1 {
			return in, fmt.Errorf("%s takes one number", op)
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return in, fmt.Errorf("%s: invalid number %q", op, args[0])
		}
		in.Slot = n
	case LDC:
		if rest == "" {
			return in, fmt.Errorf("ldc takes a constant")
		}
		if strings.HasPrefix(rest, "\"") {
			s, err := strconv.Unquote(rest)
			if err != nil {
				return in, fmt.Errorf("ldc: invalid string %s", rest)
			}
			in.Str, in.HasStr = s, true
		} else {
			in.Text = rest
		}
	case GETSTATIC:
		if len(args) == 0 {
			return in, fmt.Errorf("getstatic takes a variable")
		}
		in.Text = args[0]
		if value := strings.TrimSpace(strings.TrimPrefix(rest, args[0])); value != "" {
			s, err := strconv.Unquote(value)
			if err != nil {
				return in, fmt.Errorf("getstatic: invalid value %s", value)
			}
			in.Str, in.HasStr = s, true
		}
	case OP:
		if len(args) != 3 {
			return in, fmt.Errorf("expected op name pops pushes")
		}
		pops, err1 := strconv.Atoi(args[1])
		pushes, err2 := strconv.Atoi(args[2])
		if err1 != nil || err2 != nil || pops < 0 || pushes < 0 {
			return in, fmt.Errorf("op %s: invalid stack effect", args[0])
		}
		in.Text, in.Pops, in.Pushes = args[0], pops, pushes
	case INVOKESTATIC, INVOKEVIRTUAL:
		if len(args) != 2 {
			return in, fmt.Errorf("expected %s Owner.Name descriptor", op)
		}
		owner, name, ok := splitKey(args[0])
		if !ok {
			return in, fmt.Errorf("malformed method name %q", args[0])
		}
		desc, err := ParseDescriptor(args[1])
		if err != nil {
			return in, err
		}
		in.Owner, in.Name, in.Desc = owner, name, desc
	case IF, GOTO:
		if len(args) != 1 {
			return in, fmt.Errorf("%s takes a label", op)
		}
		in.Text = args[0]
	}
	return in, nil
}

// stripComment removes the comment of a line, ignoring semicolons in string literals
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return line[:i]
			}
		}
	}
	return line
}

// Write prints the unit in the syntax read by Parse
func (u *Unit) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if u.Name != "" {
		fmt.Fprintf(bw, ".unit %s\n", u.Name)
	}
	for _, m := range u.Methods {
		fmt.Fprintf(bw, "\n.method %s %s\n", m.Key(), m.Desc)
		fmt.Fprintf(bw, ".locals %d\n", m.Locals)
		for _, in := range m.Code {
			if in.Op == LABEL {
				fmt.Fprintf(bw, "%s\n", in)
			} else {
				fmt.Fprintf(bw, "    %s\n", in)
			}
		}
		fmt.Fprintf(bw, ".end\n")
	}
	return bw.Flush()
}

func (u *Unit) String() string {
	var b strings.Builder
	_ = u.Write(&b)
	return b.String()
}
