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

import (
	"github.com/yourbasic/graph"
)

// FindAllElementaryCycles returns the elementary cycles of g with Johnson's algorithm ("Finding All The Elementary
// Circuits of a Directed Graph", 1975). Each cycle starts and ends at its smallest node, and cycles are ordered by
// that node. Self-loops are not reported unless they close on the start of a larger component.
func FindAllElementaryCycles(g *Digraph) [][]int64 {
	var cycles [][]int64
	for start := 0; start < g.Order(); start++ {
		var rest []int64
		for _, k := range g.Keys {
			if k >= int64(start) {
				rest = append(rest, k)
			}
		}
		component := componentOf(Subgraph(g, rest), start)
		if len(component) < 2 {
			continue
		}
		j := &johnson{
			g:       g,
			start:   int64(start),
			within:  component,
			blocked: map[int64]bool{},
			waiting: map[int64]map[int64]bool{},
		}
		j.circuit(int64(start))
		cycles = append(cycles, j.cycles...)
	}
	return cycles
}

// componentOf returns the strongly connected component of g that contains v
func componentOf(g *Digraph, v int) map[int64]bool {
	for _, scc := range graph.StrongComponents(g) {
		for _, w := range scc {
			if w != v {
				continue
			}
			in := make(map[int64]bool, len(scc))
			for _, x := range scc {
				in[int64(x)] = true
			}
			return in
		}
	}
	return nil
}

// johnson is the search state for the cycles through start inside one component
type johnson struct {
	g      *Digraph
	start  int64
	within map[int64]bool
	// blocked nodes cannot be on the path until a cycle is found through one of their successors
	blocked map[int64]bool
	// waiting[w] is the set of nodes to unblock when w is unblocked
	waiting map[int64]map[int64]bool
	path    []int64
	cycles  [][]int64
}

func (j *johnson) circuit(v int64) bool {
	found := false
	j.path = append(j.path, v)
	j.blocked[v] = true
	for _, s := range j.g.Succs(int(v)) {
		w := int64(s)
		switch {
		case !j.within[w]:
		case w == j.start:
			cycle := make([]int64, len(j.path), len(j.path)+1)
			copy(cycle, j.path)
			j.cycles = append(j.cycles, append(cycle, w))
			found = true
		case !j.blocked[w]:
			if j.circuit(w) {
				found = true
			}
		}
	}
	if found {
		j.unblock(v)
	} else {
		for _, s := range j.g.Succs(int(v)) {
			w := int64(s)
			if !j.within[w] {
				continue
			}
			if j.waiting[w] == nil {
				j.waiting[w] = map[int64]bool{}
			}
			j.waiting[w][v] = true
		}
	}
	j.path = j.path[:len(j.path)-1]
	return found
}

func (j *johnson) unblock(v int64) {
	j.blocked[v] = false
	for w := range j.waiting[v] {
		delete(j.waiting[v], w)
		if j.blocked[w] {
			j.unblock(w)
		}
	}
}
