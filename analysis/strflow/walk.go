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

// An Adapter gives the traversal primitives of a program representation. Nodes are syntax nodes for the tree engine
// and basic blocks for the graph engine. Recognizing the writes to the subject of a trace is left to the visit function
// of the walk, since a write is a statement of the tree and an instruction of a block.
type Adapter[N any] interface {
	// Successors returns the nodes visited after n, in program order
	Successors(n N) []N

	// IsConditionalBoundary returns true when reaching n means going through a branch that may not execute
	IsConditionalBoundary(n N) bool
}

// State is the traversal-local state threaded through a walk. Fork returns the state of a successor; a successor
// reached through a conditional boundary is forked with conditional set.
type State[S any] interface {
	Fork(conditional bool) S
}

// Walk visits n and, if visit returns true, walks the successors of n in order. Each successor receives a fork of the
// state returned by visit, so that sibling nodes never observe each other's changes.
func Walk[N any, S State[S]](a Adapter[N], n N, s S, visit func(n N, s S) (S, bool)) {
	next, descend := visit(n, s)
	if !descend {
		return
	}
	for _, succ := range a.Successors(n) {
		Walk(a, succ, next.Fork(a.IsConditionalBoundary(succ)), visit)
	}
}
