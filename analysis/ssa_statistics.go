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

package analysis

import (
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// Result summarizes the SSA form of a set of functions
type Result struct {
	NumberOfFunctions         uint
	NumberOfNonemptyFunctions uint
	NumberOfBlocks            uint
	NumberOfInstructions      uint
	NumberOfCalls             uint
	NumberOfPhis              uint
}

// SSAStatistics counts the functions, blocks and instructions of functions, skipping the functions declared in
// excluded files
func SSAStatistics(fset *token.FileSet, functions []*ssa.Function, exclude []string) Result {

	result := Result{}

	for _, f := range functions {
		if f.Pos().IsValid() && IsExcluded(fset.Position(f.Pos()).Filename, exclude) {
			continue
		}
		result.NumberOfFunctions++

		if len(f.Blocks) != 0 {
			result.NumberOfNonemptyFunctions++
			for _, b := range f.Blocks {
				result.NumberOfBlocks++
				result.NumberOfInstructions += uint(len(b.Instrs))
				for _, i := range b.Instrs {
					switch i.(type) {
					case ssa.CallInstruction:
						result.NumberOfCalls++
					case *ssa.Phi:
						result.NumberOfPhis++
					}
				}
			}
		}
	}

	return result
}
