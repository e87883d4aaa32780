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

package expr

import (
	"strings"
	"testing"

	"github.com/lib/pq/oid"
)

func testTree() Node {
	x := &Var{Source: SourceScan, AttNo: 1, VarType: oid.T_int4}
	return &CaseExpr{
		CaseType: oid.T_text,
		Whens: []CaseWhen{{
			Expr:   &OpExpr{Name: ">", ResultType: oid.T_bool, Args: []Node{x, Int4(123456)}},
			Result: Text("secret"),
		}},
		Default: &CoalesceExpr{CoalesceType: oid.T_text, Args: []Node{NullConst(oid.T_text), Text("x")}},
	}
}

func TestToString(t *testing.T) {
	got := ToString(testTree())
	want := "CASE WHEN (scan.1 > 123456::int4) THEN 'secret'::text ELSE COALESCE(NULL::text, 'x'::text) END"
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestRedacted(t *testing.T) {
	text := ToRedacted(testTree())
	for _, needle := range []string{"123456", "secret"} {
		if strings.Contains(text, needle) {
			t.Errorf("%q contains %q", text, needle)
		}
	}
	if !strings.Contains(text, "scan.1") {
		t.Errorf("%q lost the column reference", text)
	}
}

func TestWalk(t *testing.T) {
	var consts, vars int
	Walk(WalkFunc(func(n Node) bool {
		switch n.(type) {
		case *Const:
			consts++
		case *Var:
			vars++
		}
		return true
	}), testTree())
	if consts != 4 || vars != 1 {
		t.Errorf("consts=%d vars=%d", consts, vars)
	}

	// stopping at the aggregate hides its arguments
	agg := &Aggref{Name: "sum", Args: []*TargetEntry{{Expr: &Var{AttNo: 2}, ResNo: 1}}}
	seen := 0
	Walk(WalkFunc(func(n Node) bool {
		seen++
		_, isAgg := n.(*Aggref)
		return !isAgg
	}), And(Bool(true), agg))
	if seen != 3 {
		t.Errorf("visited %d nodes", seen)
	}
}

func TestMakeAndsExplicit(t *testing.T) {
	a, b := Bool(true), Bool(false)
	if MakeAndsExplicit([]Node{a}) != Node(a) {
		t.Error("single item should be returned as is")
	}
	if be, ok := MakeAndsExplicit([]Node{a, b}).(*BoolExpr); !ok || be.Op != AndExpr || len(be.Args) != 2 {
		t.Error("expected an explicit AND")
	}
}
