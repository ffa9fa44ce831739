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

import "fmt"

// GateMode tells whether the nodes visited may be recorded as candidates
type GateMode int

const (
	// Idle traversal only looks for writes to the subject
	Idle GateMode = iota
	// Collecting traversal records the values of the nodes it visits
	Collecting
)

// A Gate is the traversal-local state of a binding trace: whether values are being collected, and how many
// conditional boundaries enclose the current node. Gates are values; each successor of a node receives its own copy.
type Gate struct {
	Mode  GateMode
	Depth int
}

// Collect returns the gate with collection enabled
func (g Gate) Collect() Gate {
	g.Mode = Collecting
	return g
}

// Stop returns the gate with collection disabled
func (g Gate) Stop() Gate {
	g.Mode = Idle
	return g
}

// Enter returns the gate one conditional boundary deeper
func (g Gate) Enter() Gate {
	g.Depth++
	return g
}

// Collecting is true when the visited values must be recorded
func (g Gate) Collecting() bool {
	return g.Mode == Collecting
}

// Conditional is true when the current node is nested in at least one conditional boundary
func (g Gate) Conditional() bool {
	return g.Depth > 0
}

// Fork implements State
func (g Gate) Fork(conditional bool) Gate {
	if conditional {
		return g.Enter()
	}
	return g
}

func (g Gate) String() string {
	if g.Collecting() {
		return fmt.Sprintf("collecting(%d)", g.Depth)
	}
	return fmt.Sprintf("idle(%d)", g.Depth)
}
