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

	"github.com/capscan/capscan/analysis/strflow"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/types/typeutil"
)

// traceCall returns the values the call may return at result index. Only functions declared in the package and
// immediately invoked function literals are traced. sc is the scope of the call site.
func (r *Resolver) traceCall(call *ast.CallExpr, index int, sc scope, req *strflow.Request) strflow.CandidateSet {
	var key any
	var callee scope
	if lit, ok := astutil.Unparen(call.Fun).(*ast.FuncLit); ok {
		key = lit
		callee = scope{typ: lit.Type, body: lit.Body, recv: sc.recv, params: []*ast.FieldList{lit.Type.Params}}
	} else {
		fn := typeutil.StaticCallee(r.Info, call)
		if fn == nil {
			return nil
		}
		fn = fn.Origin()
		decl, ok := r.decls[fn]
		if !ok {
			req.Logger.Tracef("%s is not declared in the package", fn.FullName())
			return nil
		}
		key = fn
		callee = scope{typ: decl.Type, body: decl.Body, recv: r.receiver(decl),
			params: []*ast.FieldList{decl.Recv, decl.Type.Params}}
	}

	if !req.EnterCall(key) {
		return nil
	}
	defer req.LeaveCall(key)
	if !req.Descend() {
		return nil
	}
	defer req.Ascend()

	var named []*ast.Ident
	numResults := callee.typ.Results.NumFields()
	if callee.typ.Results != nil {
		for _, field := range callee.typ.Results.List {
			named = append(named, field.Names...)
		}
	}

	var found []strflow.Candidate
	ast.Inspect(callee.body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			found = append(found, r.returned(n, index, numResults, named, callee, req)...)
			return false
		}
		return true
	})
	return strflow.Aggregate(found)
}

// returned returns the candidates of one return statement at result index
func (r *Resolver) returned(ret *ast.ReturnStmt, index int, numResults int, named []*ast.Ident, sc scope,
	req *strflow.Request) []strflow.Candidate {
	switch {
	case len(ret.Results) == 0:
		if index < len(named) {
			if v, ok := r.Info.Defs[named[index]].(*types.Var); ok {
				return r.traceVar(v, ret.Pos(), req)
			}
		}
	case len(ret.Results) == 1 && numResults > 1:
		// return g() forwarding the results of g
		if call, ok := astutil.Unparen(ret.Results[0]).(*ast.CallExpr); ok {
			return r.traceCall(call, index, sc, req)
		}
	case index < len(ret.Results):
		return r.collect(ret.Results[index], sc, nil, req)
	}
	return nil
}

// isLocalCall returns true if the call targets the package or the receiver of the enclosing method: a plain
// function name, a method of the receiver, or an immediately invoked function literal.
func (r *Resolver) isLocalCall(call *ast.CallExpr, sc scope) bool {
	switch f := astutil.Unparen(call.Fun).(type) {
	case *ast.FuncLit:
		return true
	case *ast.Ident:
		_, ok := r.Info.Uses[f].(*types.Func)
		return ok
	case *ast.SelectorExpr:
		x, ok := astutil.Unparen(f.X).(*ast.Ident)
		return ok && sc.recv != nil && r.Info.Uses[x] == types.Object(sc.recv)
	}
	return false
}
