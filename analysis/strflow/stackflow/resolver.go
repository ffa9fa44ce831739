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

// Package stackflow resolves the possible string values of call arguments over stack-based instruction listings, by
// simulating the operand stack along the control-flow paths that reach the call.
//
// Every path from the entry block to the call is enumerated, each block being visited at most twice per path so
// that loops are explored once around. A value whose producing instruction dominates the call is found on every
// execution and is reported before the values found on some paths only.
package stackflow

import (
	"github.com/capscan/capscan/analysis/bytecode"
	"github.com/capscan/capscan/analysis/config"
	"github.com/capscan/capscan/analysis/strflow"
	"github.com/capscan/capscan/internal/graphutil"
)

// maxVisitsPerPath bounds how many times a block can appear on one path
const maxVisitsPerPath = 2

// Options of the graph resolver
type Options struct {
	// Logger is the logger of the resolver. A nil logger discards everything.
	Logger *config.LogGroup
	// MaxDepth bounds the nested call traces of one request
	MaxDepth int
	// MaxPaths bounds the block visits of one request
	MaxPaths int
}

// OptionsFromConfig returns the resolver options set by the config
func OptionsFromConfig(cfg *config.Config, logger *config.LogGroup) Options {
	return Options{Logger: logger, MaxDepth: cfg.MaxDepth, MaxPaths: cfg.MaxPaths}
}

// A Resolver resolves string values in one unit. The control-flow graphs of the methods are built once, so the
// resolver can serve concurrent requests.
type Resolver struct {
	unit *bytecode.Unit
	opts Options
	cfgs map[*bytecode.Method]*bytecode.CFG
	errs map[*bytecode.Method]error
}

// NewResolver returns a resolver for the methods of unit. Methods whose control-flow graph cannot be built are
// reported and treated as opaque.
func NewResolver(unit *bytecode.Unit, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = config.Discard()
	}
	r := &Resolver{
		unit: unit,
		opts: opts,
		cfgs: map[*bytecode.Method]*bytecode.CFG{},
		errs: map[*bytecode.Method]error{},
	}
	if unit == nil {
		return r
	}
	for _, m := range unit.Methods {
		cfg, err := bytecode.BuildCFG(m)
		if err != nil {
			opts.Logger.Warnf("ignoring method %s: %v", m, err)
			r.errs[m] = err
			continue
		}
		r.cfgs[m] = cfg
	}
	return r
}

// Unit returns the unit of the resolver
func (r *Resolver) Unit() *bytecode.Unit {
	return r.unit
}

func (r *Resolver) cfg(m *bytecode.Method) (*bytecode.CFG, error) {
	if cfg, ok := r.cfgs[m]; ok {
		return cfg, nil
	}
	if err, ok := r.errs[m]; ok {
		return nil, err
	}
	return bytecode.BuildCFG(m)
}

// ResolvePossibleStringValues returns the string values that may be passed as argument arg, receiver excluded, of
// the invoke instruction at index call of m. The result is empty when nothing could be resolved.
func (r *Resolver) ResolvePossibleStringValues(m *bytecode.Method, call int, arg int) strflow.CandidateSet {
	if m == nil || call < 0 || call >= len(m.Code) {
		return strflow.CandidateSet{}
	}
	in := m.Code[call]
	if !in.Op.IsInvoke() || arg < 0 || arg >= len(in.Desc.Params) {
		return strflow.CandidateSet{}
	}
	cfg, err := r.cfg(m)
	if err != nil {
		r.opts.Logger.Warnf("cannot resolve arguments in %s: %v", m, err)
		return strflow.CandidateSet{}
	}
	pops, _ := in.StackEffect()
	offset := arg
	if in.Op == bytecode.INVOKEVIRTUAL {
		offset++
	}
	req := strflow.NewRequest(r.opts.Logger, r.opts.MaxDepth, r.opts.MaxPaths)
	res := strflow.Aggregate(r.explore(cfg, call, func(s *pathState) entry { return s.operand(pops, offset) }, req))
	req.Logger.Debugf("%s@%d: argument %d of %s resolves to %s", m.Key(), call, arg, in.Callee(), res)
	return res
}

// explore simulates every path from the entry block of cfg to the instruction at index target, and returns the
// candidates of the entries selected by pick when the simulation reaches target
func (r *Resolver) explore(cfg *bytecode.CFG, target int, pick func(s *pathState) entry,
	req *strflow.Request) []strflow.Candidate {
	m := cfg.Method
	targetBlock := cfg.BlockOf(target)
	if !cfg.Reachable(targetBlock) {
		req.Logger.Tracef("%s@%d is unreachable", m.Key(), target)
		return nil
	}
	a := blockAdapter{cfg: cfg, target: targetBlock, reaching: cfg.Reaching(targetBlock)}
	var buffers strflow.Buffers
	seen := map[entry]bool{}
	underflow := false

	strflow.Walk[int, pathState](a, 0, newPathState(m), func(b int, s pathState) (pathState, bool) {
		if !req.SpendPath() {
			return s, false
		}
		s.path = s.path.AddChild(b)
		if graphutil.CountOccurrences(s.path, b) > maxVisitsPerPath {
			return s, false
		}
		block := cfg.Blocks[b]
		for i := block.Start; i < block.End; i++ {
			if i == target {
				e := pick(&s)
				underflow = underflow || s.underflow
				if e.kind == unknownEntry || seen[e] {
					return s, false
				}
				seen[e] = true
				g := strflow.Gate{}.Collect()
				if a.IsConditionalBoundary(e.block) {
					g = g.Enter()
				}
				buffers.Record(g, r.candidates(e, req)...)
				return s, false
			}
			s.step(r.unit, m.Code[i], b)
		}
		underflow = underflow || s.underflow
		return s, true
	})

	if underflow {
		req.Logger.Debugf("%s: operand stack underflow on some path to instruction %d", m.Key(), target)
	}
	return buffers.Merge()
}

// candidates returns the candidates of an entry. The provenance is decided by the first hop: loading from a slot
// makes a traced variable whatever the slot holds.
func (r *Resolver) candidates(e entry, req *strflow.Request) []strflow.Candidate {
	var res strflow.CandidateSet
	switch e.kind {
	case constEntry:
		res = strflow.CandidateSet{{Value: e.value, Provenance: e.provenance, Pos: e.pos}}
	case resultEntry:
		res = strflow.Aggregate(r.traceReturn(e.callee, e.index, req)).Retag(strflow.TracedReturn)
	}
	if e.local {
		res = res.Retag(strflow.TracedVariable)
	}
	return res
}

// blockAdapter walks the blocks of a control-flow graph that can reach the target block
type blockAdapter struct {
	cfg      *bytecode.CFG
	target   int
	reaching []bool
}

func (a blockAdapter) Successors(b int) []int {
	var succs []int
	for _, s := range a.cfg.Blocks[b].Succs {
		if a.reaching[s] {
			succs = append(succs, s)
		}
	}
	return succs
}

// IsConditionalBoundary returns true if b does not dominate the target: some executions reach the target without
// going through b
func (a blockAdapter) IsConditionalBoundary(b int) bool {
	return !a.cfg.Dominates(b, a.target)
}
