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

/*
Package strflow contains the representation-independent part of the string value resolution: the candidate values
and their provenance, the traversal gate and buffers of a binding trace, the guard that cuts call cycles, the per
request state and the aggregation of the results.

The two resolution engines live in sub-packages: astflow resolves arguments over Go syntax trees, and stackflow
resolves arguments by simulating an operand stack over the control-flow graph of a stack-machine listing. Both drive
their traversal with [Walk], implementing the [Adapter] primitives for their representation.

An empty [CandidateSet] means the value could not be determined statically; callers must not read it as "safe".
*/
package strflow
