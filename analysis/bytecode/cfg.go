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
	"fmt"

	"github.com/capscan/capscan/internal/graphutil"
	"github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph/flow"
	"gonum.org/v1/gonum/graph/simple"
)

// A Block is a maximal sequence of instructions Code[Start:End] entered only at Start
type Block struct {
	Index int
	Start int
	End   int
	Succs []int
	Preds []int
}

// A CFG is the control-flow graph of a method. Block 0 is the entry block.
type CFG struct {
	Method *Method
	Blocks []*Block

	blockOf []int
	graph   *graphutil.Digraph
	dom     flow.DominatorTree
}

// BuildCFG splits the code of m into basic blocks. A new block starts at every label and after every jump, return and
// throw. It returns an error if a jump refers to a label that is not defined in m.
func BuildCFG(m *Method) (*CFG, error) {
	labels := map[string]int{}
	for i, in := range m.Code {
		if in.Op == LABEL {
			if _, dup := labels[in.Text]; dup {
				return nil, fmt.Errorf("%s: duplicate label %s", m.Key(), in.Text)
			}
			labels[in.Text] = i
		}
	}
	for i, in := range m.Code {
		if in.Op == IF || in.Op == GOTO {
			if _, ok := labels[in.Text]; !ok {
				return nil, fmt.Errorf("%s: unknown label %s at instruction %d", m.Key(), in.Text, i)
			}
		}
	}

	c := &CFG{Method: m, blockOf: make([]int, len(m.Code))}
	for i, in := range m.Code {
		if i == 0 || in.Op == LABEL || m.Code[i-1].Op.IsJump() {
			if n := len(c.Blocks); n > 0 {
				c.Blocks[n-1].End = i
			}
			c.Blocks = append(c.Blocks, &Block{Index: len(c.Blocks), Start: i})
		}
		c.blockOf[i] = len(c.Blocks) - 1
	}
	if n := len(c.Blocks); n > 0 {
		c.Blocks[n-1].End = len(m.Code)
	}

	c.graph = graphutil.NewDigraph(len(c.Blocks))
	for _, b := range c.Blocks {
		last := m.Code[b.End-1]
		switch last.Op {
		case GOTO:
			c.graph.AddEdge(b.Index, c.blockOf[labels[last.Text]])
		case IF:
			c.graph.AddEdge(b.Index, c.blockOf[labels[last.Text]])
			if b.Index+1 < len(c.Blocks) {
				c.graph.AddEdge(b.Index, b.Index+1)
			}
		case RETURN, THROW:
		default:
			if b.Index+1 < len(c.Blocks) {
				c.graph.AddEdge(b.Index, b.Index+1)
			}
		}
	}
	for _, b := range c.Blocks {
		b.Succs = c.graph.Succs(b.Index)
		for _, s := range b.Succs {
			c.Blocks[s].Preds = append(c.Blocks[s].Preds, b.Index)
		}
	}
	if len(c.Blocks) > 0 {
		c.dom = flow.Dominators(simple.Node(0), c.graph)
	}
	return c, nil
}

// BlockOf returns the index of the block containing instruction i
func (c *CFG) BlockOf(i int) int {
	return c.blockOf[i]
}

// Dominates returns true if every path from the entry block to b goes through a. Unreachable blocks are dominated by
// no block.
func (c *CFG) Dominates(a int, b int) bool {
	if a == b {
		return c.Reachable(b)
	}
	if len(c.Blocks) == 0 || c.dom.DominatorOf(int64(b)) == nil {
		return false
	}
	for d := c.dom.DominatorOf(int64(b)); d != nil; d = c.dom.DominatorOf(d.ID()) {
		if d.ID() == int64(a) {
			return true
		}
	}
	return false
}

// Reachable returns true if b can be reached from the entry block
func (c *CFG) Reachable(b int) bool {
	if b == 0 {
		return len(c.Blocks) > 0
	}
	return len(c.Blocks) > 0 && c.dom.DominatorOf(int64(b)) != nil
}

// Reaching returns, for each block, whether it can reach the target block. The target reaches itself.
func (c *CFG) Reaching(target int) []bool {
	res := make([]bool, len(c.Blocks))
	if target < 0 || target >= len(c.Blocks) {
		return res
	}
	res[target] = true
	graph.BFS(graph.Transpose(c.graph), target, func(_, w int, _ int64) {
		res[w] = true
	})
	return res
}

// Loops returns the sets of blocks that form loops: the strongly connected components with more than one block, and
// the blocks that jump to themselves.
func (c *CFG) Loops() [][]int {
	nodes := make([]int, len(c.Blocks))
	for i := range nodes {
		nodes[i] = i
	}
	var loops [][]int
	for _, scc := range graphutil.StronglyConnectedComponents(nodes, c.graph.Succs) {
		if len(scc) > 1 || c.graph.Edges[int64(scc[0])][int64(scc[0])] {
			loops = append(loops, scc)
		}
	}
	return loops
}

// Cycles returns the elementary cycles of the graph, each starting and ending at its first block. Cycles of a single
// block are not included.
func (c *CFG) Cycles() [][]int64 {
	return graphutil.FindAllElementaryCycles(c.graph)
}

// Stats returns a summary of the shape of the graph
func (c *CFG) Stats() graph.Stats {
	return graph.Check(c.graph)
}
