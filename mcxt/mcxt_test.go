// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package mcxt

import (
	"testing"
)

type token struct{ released int }

func (t *token) Release() { t.released++ }

func TestResetReleasesOwned(t *testing.T) {
	root := New(nil, "root")
	child := New(root, "child")
	a, b := &token{}, &token{}
	root.Own(a)
	child.Own(b)

	var order []int
	root.RegisterResetCallback(func() { order = append(order, 1) })
	root.RegisterResetCallback(func() { order = append(order, 2) })

	g := root.Generation()
	root.Reset()
	if a.released != 1 || b.released != 1 {
		t.Fatalf("released a=%d b=%d", a.released, b.released)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Errorf("callback order %v", order)
	}
	if root.Generation() == g {
		t.Error("generation did not change")
	}
	// second reset does nothing more
	root.Reset()
	if a.released != 1 {
		t.Errorf("a released %d times", a.released)
	}
}

func TestTransfer(t *testing.T) {
	root := New(nil, "root")
	tuple := New(root, "per-tuple")
	agg := New(root, "agg")
	v := &token{}
	tuple.Own(v)
	Transfer(v, tuple, agg)
	if tuple.Owns(v) || !agg.Owns(v) {
		t.Fatal("transfer did not move ownership")
	}
	tuple.Reset()
	if v.released != 0 {
		t.Fatal("value released by its former owner")
	}
	agg.Reset()
	if v.released != 1 {
		t.Fatal("value not released by its owner")
	}
	if !tuple.IsDescendant(root) || root.IsDescendant(tuple) {
		t.Error("IsDescendant")
	}
	agg.Delete()
	for _, c := range root.children {
		if c == agg {
			t.Error("deleted context still attached")
		}
	}
}
