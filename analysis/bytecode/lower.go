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
	"go/constant"
	"go/token"
	"go/types"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// Lower translates the functions of an SSA package into a unit of listings. Every SSA value gets a local slot (one per
// component for tuples), phi nodes become stores on the incoming edges, and a load of a package-level string variable
// whose only write is a constant in the package initializer becomes a GETSTATIC carrying that constant.
// Conversions that preserve a string value are copies between slots; every other computation is an OP.
func Lower(pkg *ssa.Package) *Unit {
	funcs := PackageFunctions(pkg)
	globals := knownGlobals(pkg, funcs)
	unit := &Unit{Name: pkg.Pkg.Path()}
	for _, fn := range funcs {
		unit.Add(lowerFunction(pkg.Prog.Fset, fn, globals))
	}
	return unit
}

// PackageFunctions returns the functions with a body declared in pkg, including methods and closures, sorted by
// position
func PackageFunctions(pkg *ssa.Package) []*ssa.Function {
	seen := map[*ssa.Function]bool{}
	var funcs []*ssa.Function
	var add func(fn *ssa.Function)
	add = func(fn *ssa.Function) {
		if fn == nil || seen[fn] || fn.Blocks == nil || fn.Synthetic != "" && fn.Name() != "init" {
			return
		}
		seen[fn] = true
		funcs = append(funcs, fn)
		for _, anon := range fn.AnonFuncs {
			add(anon)
		}
	}
	for _, member := range pkg.Members {
		switch m := member.(type) {
		case *ssa.Function:
			add(m)
		case *ssa.Type:
			named, ok := m.Type().(*types.Named)
			if !ok || types.IsInterface(named) || named.TypeParams().Len() > 0 {
				continue
			}
			for _, t := range []types.Type{named, types.NewPointer(named)} {
				mset := pkg.Prog.MethodSets.MethodSet(t)
				for i := 0; i < mset.Len(); i++ {
					fn := pkg.Prog.MethodValue(mset.At(i))
					if fn != nil && fn.Pkg == pkg {
						add(fn)
					}
				}
			}
		}
	}
	sort.Slice(funcs, func(i, j int) bool {
		if funcs[i].Pos() != funcs[j].Pos() {
			return funcs[i].Pos() < funcs[j].Pos()
		}
		return funcs[i].String() < funcs[j].String()
	})
	return funcs
}

// knownGlobals returns the string value of the package-level variables of pkg that are written exactly once, with a
// constant, by the package initializer, and whose address is never taken
func knownGlobals(pkg *ssa.Package, funcs []*ssa.Function) map[*ssa.Global]string {
	stores := map[*ssa.Global]int{}
	values := map[*ssa.Global]string{}
	escaped := map[*ssa.Global]bool{}
	init := pkg.Func("init")
	var operands []*ssa.Value
	for _, fn := range funcs {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				switch x := instr.(type) {
				case *ssa.Store:
					if g, ok := x.Addr.(*ssa.Global); ok {
						stores[g]++
						if c, ok := x.Val.(*ssa.Const); ok && fn == init && isStringConst(c) {
							values[g] = constant.StringVal(c.Value)
						}
						if g, ok := x.Val.(*ssa.Global); ok {
							escaped[g] = true
						}
						continue
					}
				case *ssa.UnOp:
					if _, ok := x.X.(*ssa.Global); ok && x.Op == token.MUL {
						continue
					}
				}
				operands = instr.Operands(operands[:0])
				for _, op := range operands {
					if op == nil {
						continue
					}
					if g, ok := (*op).(*ssa.Global); ok {
						escaped[g] = true
					}
				}
			}
		}
	}
	known := map[*ssa.Global]string{}
	for g, n := range stores {
		if v, ok := values[g]; ok && n == 1 && !escaped[g] && g.Pkg == pkg {
			known[g] = v
		}
	}
	return known
}

type lowerer struct {
	fset    *token.FileSet
	fn      *ssa.Function
	globals map[*ssa.Global]string
	slots   map[ssa.Value]int
	nslots  int
	code    []Instruction
	line    int
	pos     token.Pos
}

func lowerFunction(fset *token.FileSet, fn *ssa.Function, globals map[*ssa.Global]string) *Method {
	l := &lowerer{fset: fset, fn: fn, globals: globals, slots: map[ssa.Value]int{}}
	for _, p := range fn.Params {
		l.slot(p)
	}
	for _, fv := range fn.FreeVars {
		l.slot(fv)
	}
	for _, b := range fn.Blocks {
		l.emit(Instruction{Op: LABEL, Text: blockLabel(b)})
		for _, instr := range b.Instrs {
			l.instruction(b, instr)
		}
	}
	owner, name := MethodKey(fn)
	return &Method{
		Owner:  owner,
		Name:   name,
		Desc:   descriptor(fn.Signature),
		Locals: l.nslots,
		Code:   l.code,
	}
}

func (l *lowerer) emit(in Instruction) {
	if in.Pos == token.NoPos {
		in.Pos = l.pos
	}
	l.code = append(l.code, in)
}

// slot returns the first slot of v, allocating the slots of v on first use
func (l *lowerer) slot(v ssa.Value) int {
	if s, ok := l.slots[v]; ok {
		return s
	}
	s := l.nslots
	l.slots[v] = s
	l.nslots += max(resultCount(v), 1)
	return s
}

func (l *lowerer) push(v ssa.Value) {
	switch x := v.(type) {
	case *ssa.Const:
		switch {
		case isStringConst(x):
			l.emit(Instruction{Op: LDC, Str: constant.StringVal(x.Value), HasStr: true})
		case x.Value == nil:
			l.emit(Instruction{Op: LDC, Text: "nil"})
		default:
			l.emit(Instruction{Op: LDC, Text: x.Value.ExactString()})
		}
	case *ssa.Function:
		l.emit(Instruction{Op: LDC, Text: strings.Join(methodKeyParts(x), ".")})
	case *ssa.Global:
		l.emit(Instruction{Op: LDC, Text: "&" + globalName(x)})
	case *ssa.Builtin:
		l.emit(Instruction{Op: LDC, Text: x.Name()})
	default:
		l.emit(Instruction{Op: LOAD, Slot: l.slot(v)})
	}
}

// storeAll pops the components of v into its slots
func (l *lowerer) storeAll(v ssa.Value) {
	n := resultCount(v)
	base := l.slot(v)
	for i := n - 1; i >= 0; i-- {
		l.emit(Instruction{Op: STORE, Slot: base + i})
	}
}

func (l *lowerer) instruction(b *ssa.BasicBlock, instr ssa.Instruction) {
	if pos := instr.Pos(); pos.IsValid() {
		l.pos = pos
		if line := l.fset.Position(pos).Line; line != l.line {
			l.line = line
			l.emit(Instruction{Op: LINE, Slot: line})
		}
	}
	switch x := instr.(type) {
	case *ssa.Phi, *ssa.DebugRef:
	case *ssa.Call:
		l.call(x.Common(), x)
	case *ssa.UnOp:
		if g, ok := x.X.(*ssa.Global); ok && x.Op == token.MUL {
			in := Instruction{Op: GETSTATIC, Text: globalName(g)}
			in.Str, in.HasStr = l.globals[g]
			l.emit(in)
			l.storeAll(x)
			return
		}
		l.generic(x)
	case *ssa.ChangeType:
		l.copy(x.X, x)
	case *ssa.MakeInterface:
		l.copy(x.X, x)
	case *ssa.TypeAssert:
		if x.CommaOk {
			l.generic(x)
		} else {
			l.copy(x.X, x)
		}
	case *ssa.Extract:
		l.emit(Instruction{Op: LOAD, Slot: l.slot(x.Tuple) + x.Index})
		l.storeAll(x)
	case *ssa.Jump:
		l.moves(b, b.Succs[0])
		l.emit(Instruction{Op: GOTO, Text: blockLabel(b.Succs[0])})
	case *ssa.If:
		l.push(x.Cond)
		t, f := b.Succs[0], b.Succs[1]
		if !hasPhis(t) {
			l.emit(Instruction{Op: IF, Text: blockLabel(t)})
			l.moves(b, f)
			l.emit(Instruction{Op: GOTO, Text: blockLabel(f)})
			return
		}
		edge := blockLabel(b) + "T"
		l.emit(Instruction{Op: IF, Text: edge})
		l.moves(b, f)
		l.emit(Instruction{Op: GOTO, Text: blockLabel(f)})
		l.emit(Instruction{Op: LABEL, Text: edge})
		l.moves(b, t)
		l.emit(Instruction{Op: GOTO, Text: blockLabel(t)})
	case *ssa.Return:
		for _, r := range x.Results {
			l.push(r)
		}
		l.emit(Instruction{Op: RETURN})
	case *ssa.Panic:
		l.push(x.X)
		l.emit(Instruction{Op: THROW})
	default:
		l.generic(instr)
	}
}

// copy lowers a value-preserving instruction
func (l *lowerer) copy(from ssa.Value, to ssa.Value) {
	l.push(from)
	l.storeAll(to)
}

// generic lowers instr to an OP that consumes its operands and produces unknown values
func (l *lowerer) generic(instr ssa.Instruction) {
	pops := 0
	for _, op := range instr.Operands(nil) {
		if op != nil && *op != nil {
			l.push(*op)
			pops++
		}
	}
	v, isValue := instr.(ssa.Value)
	pushes := 0
	if isValue {
		pushes = resultCount(v)
	}
	l.emit(Instruction{Op: OP, Text: opName(instr), Pops: pops, Pushes: pushes})
	if isValue {
		l.storeAll(v)
	}
}

func (l *lowerer) call(cc *ssa.CallCommon, v ssa.Value) {
	switch callee := cc.StaticCallee(); {
	case cc.IsInvoke():
		l.push(cc.Value)
		for _, a := range cc.Args {
			l.push(a)
		}
		l.emit(Instruction{
			Op:    INVOKEVIRTUAL,
			Owner: typeOwner(cc.Value.Type()),
			Name:  cc.Method.Name(),
			Desc:  descriptor(cc.Signature()),
		})
	case callee != nil:
		for _, a := range cc.Args {
			l.push(a)
		}
		op := INVOKESTATIC
		if callee.Signature.Recv() != nil {
			op = INVOKEVIRTUAL
		}
		owner, name := MethodKey(callee)
		l.emit(Instruction{Op: op, Owner: owner, Name: name, Desc: descriptor(callee.Signature)})
	default:
		pops := len(cc.Args)
		text := "call"
		if b, ok := cc.Value.(*ssa.Builtin); ok {
			text = "builtin:" + b.Name()
		} else {
			l.push(cc.Value)
			pops++
		}
		for _, a := range cc.Args {
			l.push(a)
		}
		l.emit(Instruction{Op: OP, Text: text, Pops: pops, Pushes: resultCount(v)})
	}
	l.storeAll(v)
}

// moves copies the values flowing along the edge from -> to into the slots of the phi nodes of to
func (l *lowerer) moves(from *ssa.BasicBlock, to *ssa.BasicBlock) {
	k := -1
	for i, p := range to.Preds {
		if p == from {
			k = i
			break
		}
	}
	var phis []*ssa.Phi
	for _, instr := range to.Instrs {
		phi, ok := instr.(*ssa.Phi)
		if !ok {
			break
		}
		phis = append(phis, phi)
	}
	if k < 0 || len(phis) == 0 {
		return
	}
	for _, phi := range phis {
		l.push(phi.Edges[k])
	}
	for i := len(phis) - 1; i >= 0; i-- {
		l.emit(Instruction{Op: STORE, Slot: l.slot(phis[i])})
	}
}

func hasPhis(b *ssa.BasicBlock) bool {
	if len(b.Instrs) == 0 {
		return false
	}
	_, ok := b.Instrs[0].(*ssa.Phi)
	return ok
}

func blockLabel(b *ssa.BasicBlock) string {
	return "B" + strconv.Itoa(b.Index)
}

// resultCount returns the number of stack entries produced by v
func resultCount(v ssa.Value) int {
	if t, ok := v.Type().(*types.Tuple); ok {
		return t.Len()
	}
	return 1
}

func opName(instr ssa.Instruction) string {
	name := strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", instr), "*ssa."))
	switch x := instr.(type) {
	case *ssa.BinOp:
		return name + ":" + x.Op.String()
	case *ssa.UnOp:
		return name + ":" + x.Op.String()
	}
	return name
}

func isStringConst(c *ssa.Const) bool {
	return c.Value != nil && c.Value.Kind() == constant.String
}

func globalName(g *ssa.Global) string {
	if g.Pkg == nil {
		return g.Name()
	}
	return g.Pkg.Pkg.Path() + "." + g.Name()
}

// MethodKey returns the owner and name under which fn is lowered and invoked. Methods are owned by their package and
// receiver type name; closures share the owner of their enclosing function.
func MethodKey(fn *ssa.Function) (owner string, name string) {
	parts := methodKeyParts(fn)
	return parts[0], parts[1]
}

func methodKeyParts(fn *ssa.Function) []string {
	if origin := fn.Origin(); origin != nil {
		fn = origin
	}
	name := sanitize(fn.Name())
	outer := fn
	for outer.Parent() != nil {
		outer = outer.Parent()
	}
	pkg := "_"
	if outer.Pkg != nil {
		pkg = outer.Pkg.Pkg.Path()
	} else if obj := outer.Object(); obj != nil && obj.Pkg() != nil {
		pkg = obj.Pkg().Path()
	}
	if recv := outer.Signature.Recv(); recv != nil {
		return []string{pkg + "." + receiverName(recv.Type()), name}
	}
	return []string{pkg, name}
}

// typeOwner returns the owner of the methods of a named type
func typeOwner(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok && named.Obj().Pkg() != nil {
		return named.Obj().Pkg().Path() + "." + named.Obj().Name()
	}
	return "_.object"
}

func receiverName(t types.Type) string {
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return "object"
}

// descriptor returns the descriptor of a signature, receiver excluded
func descriptor(sig *types.Signature) Descriptor {
	var d Descriptor
	for i := 0; i < sig.Params().Len(); i++ {
		d.Params = append(d.Params, TypeName(sig.Params().At(i).Type()))
	}
	for i := 0; i < sig.Results().Len(); i++ {
		d.Results = append(d.Results, TypeName(sig.Results().At(i).Type()))
	}
	return d
}

// TypeName returns the descriptor name of a type: "string" for every type whose underlying type is string, the name
// of other basic types, and the package-qualified name of the rest. Names that cannot be written in a descriptor are
// replaced by "object".
func TypeName(t types.Type) string {
	if b, ok := t.Underlying().(*types.Basic); ok {
		if b.Info()&types.IsString != 0 {
			return StringType
		}
		return b.Name()
	}
	s := types.TypeString(t, func(p *types.Package) string { return p.Name() })
	if strings.ContainsAny(s, "(), \t;\"") {
		return "object"
	}
	return s
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', ',', '(', ')', ';', '"':
			return '_'
		}
		return r
	}, s)
}
