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

package strflow

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/capscan/capscan/internal/funcutil"
)

// Provenance records how a candidate was reached from the argument: the first hop of the resolution.
type Provenance int

const (
	// Literal is a string literal written at the argument
	Literal Provenance = iota
	// QualifiedConstant is a named constant, or a field or package variable with a known constant value
	QualifiedConstant
	// TracedVariable is a value bound to a local variable or slot
	TracedVariable
	// TracedReturn is a value returned by a locally declared function
	TracedReturn
)

func (p Provenance) String() string {
	switch p {
	case Literal:
		return "literal"
	case QualifiedConstant:
		return "qualified-constant"
	case TracedVariable:
		return "traced-variable"
	case TracedReturn:
		return "traced-return"
	default:
		return fmt.Sprintf("provenance(%d)", int(p))
	}
}

// A Candidate is a string value that may flow into an argument at run time. Pos is the position where the value
// was found (the literal, the constant reference or the load instruction), token.NoPos when unknown.
type Candidate struct {
	Value      string
	Provenance Provenance
	Pos        token.Pos
}

// Retag returns the candidate with provenance p
func (c Candidate) Retag(p Provenance) Candidate {
	c.Provenance = p
	return c
}

func (c Candidate) String() string {
	return fmt.Sprintf("%q (%s)", c.Value, c.Provenance)
}

// A CandidateSet is an ordered list of candidates without duplicate values. Order is discovery order, with the
// candidates found on straight-line code first.
type CandidateSet []Candidate

// Values returns the values of the candidates, in order
func (s CandidateSet) Values() []string {
	return funcutil.Map(s, func(c Candidate) string { return c.Value })
}

// Contains returns true if some candidate has value v
func (s CandidateSet) Contains(v string) bool {
	return funcutil.Exists(s, func(c Candidate) bool { return c.Value == v })
}

// Retag returns a copy of the set where every candidate has provenance p
func (s CandidateSet) Retag(p Provenance) CandidateSet {
	return funcutil.Map(s, func(c Candidate) Candidate { return c.Retag(p) })
}

func (s CandidateSet) String() string {
	return "[" + strings.Join(funcutil.Map(s, Candidate.String), ", ") + "]"
}

// Aggregate returns the candidates of the parts, in order, keeping only the first candidate of each value. The result
// is never nil.
func Aggregate(parts ...[]Candidate) CandidateSet {
	seen := map[string]bool{}
	res := CandidateSet{}
	for _, part := range parts {
		for _, c := range part {
			if !seen[c.Value] {
				seen[c.Value] = true
				res = append(res, c)
			}
		}
	}
	return res
}
