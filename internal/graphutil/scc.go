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

package graphutil

// StronglyConnectedComponents returns the strongly connected components of the graph given by nodes and successors,
// using Tarjan's algorithm. Components come in reverse topological order: a component appears after every component
// it reaches. The order of nodes inside a component is unspecified.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	t := &tarjan[T]{succs: successors, marks: map[T]*tarjanMark{}}
	for _, v := range nodes {
		if t.marks[v] == nil {
			t.visit(v)
		}
	}
	return t.sccs
}

type tarjanMark struct {
	index   int
	low     int
	onStack bool
}

type tarjan[T comparable] struct {
	succs func(T) []T
	marks map[T]*tarjanMark
	stack []T
	next  int
	sccs  [][]T
}

func (t *tarjan[T]) visit(v T) *tarjanMark {
	m := &tarjanMark{index: t.next, low: t.next, onStack: true}
	t.marks[v] = m
	t.next++
	t.stack = append(t.stack, v)
	for _, w := range t.succs(v) {
		switch mw := t.marks[w]; {
		case mw == nil:
			m.low = min(m.low, t.visit(w).low)
		case mw.onStack:
			m.low = min(m.low, mw.index)
		}
	}
	if m.low != m.index {
		return m
	}
	var scc []T
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.marks[w].onStack = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
	return m
}
