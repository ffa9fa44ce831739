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
	"go/token"
	"go/types"

	"github.com/capscan/capscan/analysis/strflow"
	"golang.org/x/tools/go/ast/astutil"
)

// scope is the function a traversal happens in
type scope struct {
	typ  *ast.FuncType
	body *ast.BlockStmt
	// recv is the receiver of the innermost enclosing method, if any
	recv *types.Var
	// params holds the receiver and parameter lists
	params []*ast.FieldList
}

// isParam returns true if v is a receiver or a parameter of the scope's function
func (sc scope) isParam(v *types.Var) bool {
	for _, fl := range sc.params {
		if fl != nil && fl.Pos() <= v.Pos() && v.Pos() < fl.End() {
			return true
		}
	}
	return false
}

// scopeAt returns the innermost function enclosing pos. The scope is empty outside functions.
func (r *Resolver) scopeAt(pos token.Pos) scope {
	var sc scope
	file := r.fileOf(pos)
	if file == nil {
		return sc
	}
	path, _ := astutil.PathEnclosingInterval(file, pos, pos)
	for _, n := range path {
		switch f := n.(type) {
		case *ast.FuncLit:
			if sc.body == nil {
				sc.typ, sc.body = f.Type, f.Body
				sc.params = []*ast.FieldList{f.Type.Params}
			}
		case *ast.FuncDecl:
			if sc.body == nil {
				sc.typ, sc.body = f.Type, f.Body
				sc.params = []*ast.FieldList{f.Recv, f.Type.Params}
			}
			sc.recv = r.receiver(f)
			return sc
		}
	}
	return sc
}

func (r *Resolver) fileOf(pos token.Pos) *ast.File {
	for _, f := range r.Files {
		if f.Pos() <= pos && pos <= f.End() {
			return f
		}
	}
	return nil
}

func (r *Resolver) receiver(decl *ast.FuncDecl) *types.Var {
	if decl.Recv == nil || len(decl.Recv.List) == 0 || len(decl.Recv.List[0].Names) == 0 {
		return nil
	}
	v, _ := r.Info.Defs[decl.Recv.List[0].Names[0]].(*types.Var)
	return v
}

// traceVar returns the values written to v before pos, in the body of the function that declares v. Parameters,
// fields and package variables are not traced.
func (r *Resolver) traceVar(v *types.Var, pos token.Pos, req *strflow.Request) strflow.CandidateSet {
	if v.IsField() || !mayHoldString(v.Type()) {
		return nil
	}
	sc := r.scopeAt(v.Pos())
	if sc.body == nil || sc.isParam(v) {
		return nil
	}
	if !req.Descend() {
		return nil
	}
	defer req.Ascend()
	req.Logger.Tracef("tracing %s before %s", v.Name(), r.Fset.Position(pos))

	b := &strflow.Buffers{}
	a := bindingAdapter{info: r.Info, subject: v}
	strflow.Walk[treeNode, strflow.Gate](a, treeNode{node: sc.body}, strflow.Gate{},
		func(n treeNode, g strflow.Gate) (strflow.Gate, bool) {
			if n.node.Pos() >= pos {
				return g, false
			}
			// a write containing the use executes after it
			writes := n.node.End() <= pos
			switch s := n.node.(type) {
			case *ast.AssignStmt:
				i := a.targetIndex(s.Lhs)
				if i < 0 || !writes {
					return g, true
				}
				b.Write(g)
				if s.Tok == token.DEFINE || s.Tok == token.ASSIGN {
					b.Record(g, r.assigned(len(s.Lhs), s.Rhs, i, sc, v, req)...)
				}
				return g, false
			case *ast.ValueSpec:
				names := make([]ast.Expr, len(s.Names))
				for j, name := range s.Names {
					names[j] = name
				}
				i := a.targetIndex(names)
				if i < 0 || !writes {
					return g, true
				}
				b.Write(g)
				b.Record(g, r.assigned(len(names), s.Values, i, sc, v, req)...)
				return g, false
			case *ast.IncDecStmt:
				if writes && a.IsAssignmentTarget(treeNode{node: s.X}) {
					b.Write(g)
					return g, false
				}
			case *ast.DeferStmt:
				// deferred calls run when the function returns, after any use outside them
				if writes {
					return g, false
				}
			}
			return g, true
		})
	return b.Merge()
}

// assigned returns the candidates of the value at index i of an assignment of rhs to numLhs targets
func (r *Resolver) assigned(numLhs int, rhs []ast.Expr, i int, sc scope, subject *types.Var,
	req *strflow.Request) []strflow.Candidate {
	switch {
	case len(rhs) == numLhs:
		return r.collect(rhs[i], sc, subject, req)
	case len(rhs) == 1:
		// tuple assignment: only calls can be traced, comma-ok forms are opaque
		if call, ok := astutil.Unparen(rhs[0]).(*ast.CallExpr); ok && !r.isConversion(call) {
			return r.traceCall(call, i, sc, req)
		}
	}
	return nil
}

// collect returns the candidates of an expression assigned or returned. Literals, constants and calls are accepted
// directly; otherwise the collection descends through value-preserving wrappers, tracing the other variables and the
// local calls it reaches. Any other operator makes the value opaque.
func (r *Resolver) collect(e ast.Expr, sc scope, subject *types.Var, req *strflow.Request) []strflow.Candidate {
	var found []strflow.Candidate
	root := astutil.Unparen(e)
	strflow.Walk[treeNode, strflow.Gate](valueAdapter{r: r}, treeNode{node: e}, strflow.Gate{}.Collect(),
		func(n treeNode, g strflow.Gate) (strflow.Gate, bool) {
			expr, ok := n.node.(ast.Expr)
			if !ok || !g.Collecting() {
				return g, false
			}
			if c, ok := r.TryExtract(expr); ok {
				found = append(found, c)
				return g, false
			}
			switch x := expr.(type) {
			case *ast.ParenExpr, *ast.TypeAssertExpr:
				return g, true
			case *ast.Ident:
				if v, ok := r.Info.Uses[x].(*types.Var); ok && v != subject {
					found = append(found, r.traceVar(v, x.Pos(), req)...)
				}
			case *ast.CallExpr:
				if r.isConversion(x) {
					return g, true
				}
				if x == root || r.isLocalCall(x, sc) {
					found = append(found, r.traceCall(x, 0, sc, req)...)
				}
			}
			return g.Stop(), false
		})
	return found
}
