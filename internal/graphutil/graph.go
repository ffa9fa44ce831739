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
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Digraph is a directed graph over the nodes 0..n-1, built to work with existing graph libraries. It implements the
// methods to satisfy graph.Iterator (yourbasic) and Gonum's graph.Directed.
type Digraph struct {
	// The order of the graph
	order int

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between x and y
	Edges map[int64]map[int64]bool
}

// NewDigraph returns a graph with n nodes and no edges
func NewDigraph(n int) *Digraph {
	keys := make([]int64, n)
	edges := make(map[int64]map[int64]bool, n)
	for i := 0; i < n; i++ {
		keys[i] = int64(i)
		edges[int64(i)] = map[int64]bool{}
	}
	return &Digraph{order: n, Keys: keys, Edges: edges}
}

// AddEdge adds the edge from -> to. Nodes out of range are ignored.
func (c *Digraph) AddEdge(from int, to int) {
	if from < 0 || from >= c.order || to < 0 || to >= c.order {
		return
	}
	c.Edges[int64(from)][int64(to)] = true
}

// Succs returns the successors of v in increasing order
func (c *Digraph) Succs(v int) []int {
	var succs []int
	for w := range c.Edges[int64(v)] {
		succs = append(succs, int(w))
	}
	sort.Ints(succs)
	return succs
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order is the same as in origin, meaning that node indices will stay consistent across subgraphs.
func Subgraph(original *Digraph, include []int64) *Digraph {
	keep := make(map[int64]bool, len(include))
	keys := make([]int64, len(include))
	for j, i := range include {
		keys[j] = i
		keep[i] = true
	}

	edges := make(map[int64]map[int64]bool, len(include))
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if keep[e] {
				edges[i][e] = true
			}
		}
	}

	return &Digraph{
		order: original.Order(),
		Keys:  keys,
		Edges: edges,
	}
}

// Order implements the order of the graph.Iterator interface for the Digraph
func (c *Digraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the Digraph. Successors are visited in increasing order.
func (c *Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.Edges[int64(v)]; !ok {
		return false
	}
	for _, w := range c.Succs(v) {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c *Digraph) Node(id int64) graph.Node {
	if _, ok := c.Edges[id]; !ok {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns the set of nodes in the graph
func (c *Digraph) Nodes() graph.Nodes {
	keys := make([]int64, 0, len(c.Edges))
	for k := range c.Edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return newNodeSet(keys)
}

// From returns the set of nodes reachable from the id in one edge
func (c *Digraph) From(id int64) graph.Nodes {
	var keys []int64
	for out := range c.Edges[id] {
		keys = append(keys, out)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return newNodeSet(keys)
}

// To returns the set of nodes that reach the id in one edge
func (c *Digraph) To(id int64) graph.Nodes {
	var keys []int64
	for from, out := range c.Edges {
		if out[id] {
			keys = append(keys, from)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return newNodeSet(keys)
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c *Digraph) HasEdgeBetween(xid, yid int64) bool {
	return c.Edges[xid][yid] || c.Edges[yid][xid]
}

// HasEdgeFromTo returns whether the directed edge uid -> vid exists
func (c *Digraph) HasEdgeFromTo(uid, vid int64) bool {
	return c.Edges[uid][vid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c *Digraph) Edge(uid, vid int64) graph.Edge {
	if c.Edges[uid][vid] {
		return simple.Edge{F: simple.Node(uid), T: simple.Node(vid)}
	}
	return nil
}

// *************** Nodes implementation **********************

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is ids[cur]
	// invariant: -1 <= cur < len(ids); -1 before the first call to Next
	cur int
}

func newNodeSet(ids []int64) *NodeSet {
	return &NodeSet{ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false
// and the current node has not changed.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids)-1 {
		ns.cur++
		return true
	}
	return false
}

// Len returns the number of nodes left to iterate
func (ns *NodeSet) Len() int {
	return len(ns.ids) - ns.cur - 1
}

// Reset resets the id of the current node in the set
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return simple.Node(ns.ids[ns.cur])
}
