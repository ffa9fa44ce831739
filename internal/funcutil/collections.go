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

// Package funcutil contains generic helpers over slices.
package funcutil

import (
	"golang.org/x/sync/errgroup"
)

// MapInPlace replaces every element x of a by f(x)
func MapInPlace[T any](a []T, f func(T) T) {
	for i, x := range a {
		a[i] = f(x)
	}
}

// Map returns the slice of f(x) for every x in a, in order. It is nil when a is empty.
func Map[T any, S any](a []T, f func(T) S) []S {
	var b []S
	for _, x := range a {
		b = append(b, f(x))
	}
	return b
}

// MapParallel is Map with at most numRoutines calls to f running at the same time. The result keeps the order of a.
func MapParallel[T any, S any](a []T, f func(T) S, numRoutines int) []S {
	res := make([]S, len(a))
	var g errgroup.Group
	g.SetLimit(max(numRoutines, 1))
	for i, x := range a {
		i, x := i, x
		g.Go(func() error {
			res[i] = f(x)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// Exists returns true when f(x) holds for some x in a
func Exists[T any](a []T, f func(T) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// Reverse reverses a in place
func Reverse[T any](a []T) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}
