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

package vm

import (
	"github.com/cockroachdb/redact"

	"github.com/postgres/postgres-sub049/expr"
)

// SafeValue implements redact.SafeValue.
func (Op) SafeValue() {}

// SafeFormat implements redact.SafeFormatter;
// constant values are printed as unsafe.
func (st *ExprState) SafeFormat(w redact.SafePrinter, _ rune) {
	for i := range st.steps {
		s := &st.steps[i]
		w.Printf("%d: %s", redact.Safe(i), s.Op)
		switch d := s.D.(type) {
		case *constOp:
			if d.isnull {
				w.SafeString(" null")
			} else {
				w.Printf(" %v", d.value)
			}
		case *varOp:
			w.Printf(" attnum=%d", redact.Safe(d.attnum))
		case *fetchOp:
			w.Printf(" last=%d", redact.Safe(d.last))
		case *assignVarOp:
			w.Printf(" %d->%d", redact.Safe(d.attnum), redact.Safe(d.resultnum))
		case *assignTmpOp:
			w.Printf(" ->%d", redact.Safe(d.resultnum))
		case *funcOp:
			w.Printf(" %s/%d", redact.SafeString(d.fi.Name), redact.Safe(d.nargs))
		case *paramOp:
			w.Printf(" $%d", redact.Safe(d.id))
		case *domainCheckOp:
			w.Printf(" %s", redact.SafeString(d.constraint))
		case *aggrefOp:
			w.Printf(" agg=%d", redact.Safe(d.aggno))
		case *subPlanOp:
			w.Printf(" plan=%d", redact.Safe(d.sp.PlanID))
		}
		if j, ok := s.D.(jumper); ok {
			for _, t := range j.targets() {
				w.Printf(" ->%d", redact.Safe(*t))
			}
		}
		w.SafeRune('\n')
	}
}

// Redacted returns the disassembly of
// the program with constants redacted.
func (st *ExprState) Redacted() redact.RedactableString {
	return redact.Sprint(st).Redact()
}

// String returns the disassembly of the program.
func (st *ExprState) String() string {
	return redact.Sprint(st).StripMarkers()
}

// exprText describes the compiled tree for
// log lines, without constant values.
func (st *ExprState) exprText() string {
	if st.expr == nil {
		return "<nil>"
	}
	return expr.ToRedacted(st.expr)
}
