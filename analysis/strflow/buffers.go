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

// Buffers are the provisional results of one binding trace. Values written on straight-line code go to the
// unconditional buffer, where the last write wins. Values written under a conditional boundary go to the conditional
// buffer and never discard anything, since the branch may not execute.
type Buffers struct {
	unconditional []Candidate
	conditional   []Candidate
}

// Write registers a write to the subject seen with gate g. A straight-line write discards the earlier unconditional
// candidates; a conditional write leaves both buffers untouched. Record the written values after calling Write.
func (b *Buffers) Write(g Gate) {
	if !g.Conditional() {
		b.unconditional = nil
	}
}

// Record adds candidates to the buffer selected by gate g
func (b *Buffers) Record(g Gate, cs ...Candidate) {
	if g.Conditional() {
		b.conditional = append(b.conditional, cs...)
	} else {
		b.unconditional = append(b.unconditional, cs...)
	}
}

// Merge returns the candidates of both buffers, unconditional candidates first
func (b *Buffers) Merge() CandidateSet {
	return Aggregate(b.unconditional, b.conditional)
}
