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

package astflow

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"
)

// A treeNode is a syntax node, marked conditional when its parent only executes it on some branch.
type treeNode struct {
	node        ast.Node
	conditional bool
}

// bindingAdapter walks function bodies in program order, looking for writes to subject
type bindingAdapter struct {
	info    *types.Info
	subject *types.Var
}

func (a bindingAdapter) Successors(n treeNode) []treeNode {
	switch s := n.node.(type) {
	case *ast.SwitchStmt:
		return append(plain(s.Init, s.Tag), clauses(s.Body)...)
	case *ast.TypeSwitchStmt:
		return append(plain(s.Init, s.Assign), clauses(s.Body)...)
	case *ast.SelectStmt:
		return clauses(s.Body)
	}
	var succs []treeNode
	for _, c := range children(n.node) {
		succs = append(succs, treeNode{node: c, conditional: isBranch(n.node, c)})
	}
	return succs
}

func (a bindingAdapter) IsConditionalBoundary(n treeNode) bool {
	return n.conditional
}

func (a bindingAdapter) IsAssignmentTarget(n treeNode) bool {
	e, ok := n.node.(ast.Expr)
	if !ok {
		return false
	}
	id, ok := astutil.Unparen(e).(*ast.Ident)
	if !ok {
		return false
	}
	obj := a.info.Defs[id]
	if obj == nil {
		obj = a.info.Uses[id]
	}
	return obj != nil && obj == types.Object(a.subject)
}

// targetIndex returns the index of the subject in lhs, or -1
func (a bindingAdapter) targetIndex(lhs []ast.Expr) int {
	for i, e := range lhs {
		if a.IsAssignmentTarget(treeNode{node: e}) {
			return i
		}
	}
	return -1
}

// valueAdapter follows value-preserving wrappers down to the expression they wrap
type valueAdapter struct {
	r *Resolver
}

func (a valueAdapter) Successors(n treeNode) []treeNode {
	switch x := n.node.(type) {
	case *ast.ParenExpr:
		return []treeNode{{node: x.X}}
	case *ast.TypeAssertExpr:
		return []treeNode{{node: x.X}}
	case *ast.CallExpr:
		if a.r.isConversion(x) {
			return []treeNode{{node: x.Args[0]}}
		}
	}
	return nil
}

func (a valueAdapter) IsConditionalBoundary(treeNode) bool { return false }

// isBranch returns true if child only executes on some executions of parent
func isBranch(parent ast.Node, child ast.Node) bool {
	switch p := parent.(type) {
	case *ast.IfStmt:
		return child == p.Body || child == p.Else
	case *ast.ForStmt:
		return child == p.Body || child == p.Post
	case *ast.RangeStmt:
		return child == p.Body
	case *ast.FuncLit:
		return child == p.Body
	case *ast.GoStmt:
		return child == p.Call
	case *ast.DeferStmt:
		return child == p.Call
	}
	return false
}

// children returns the direct children of n in source order
func children(n ast.Node) []ast.Node {
	var res []ast.Node
	ast.Inspect(n, func(c ast.Node) bool {
		if c == n {
			return true
		}
		if c != nil {
			res = append(res, c)
		}
		return false
	})
	return res
}

func plain(nodes ...ast.Node) []treeNode {
	var res []treeNode
	for _, n := range nodes {
		if n != nil {
			res = append(res, treeNode{node: n})
		}
	}
	return res
}

// clauses returns the clauses of a switch or select body, each of them conditional
func clauses(body *ast.BlockStmt) []treeNode {
	if body == nil {
		return nil
	}
	var res []treeNode
	for _, c := range body.List {
		res = append(res, treeNode{node: c, conditional: true})
	}
	return res
}
