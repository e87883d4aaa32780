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
	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// compileCoerceToDomain evaluates the argument
// into the result and then tests each constraint
// of the domain against it, NOT NULL first.
func (st *ExprState) compileCoerceToDomain(n *expr.CoerceToDomain, res Step) error {
	if err := st.compile(n.Arg, res.ResValue, res.ResNull); err != nil {
		return err
	}
	cons, err := st.cat.DomainConstraints(n.ResultType)
	if err != nil {
		return err
	}
	name := expr.TypeName(n.ResultType)
	if ti, err := st.cat.Type(n.ResultType); err == nil && ti.Name != "" {
		name = ti.Name
	}

	savedValue, savedNull := st.domainValue, st.domainNull
	defer func() { st.domainValue, st.domainNull = savedValue, savedNull }()

	var domainv *datum.Datum
	var domainnull *bool
	for i := range cons {
		c := &cons[i]
		switch c.Kind {
		case catalog.ConstraintNotNull:
			s := res
			s.Op = OpDomainNotNull
			s.D = &domainNotNullOp{typ: n.ResultType, name: name}
			st.push(s)
		case catalog.ConstraintCheck:
			if domainv == nil {
				domainv, domainnull = res.ResValue, res.ResNull
				if st.typeLen(n.ResultType) == -1 {
					// check expressions see a read-only copy
					domainv, domainnull = new(datum.Datum), new(bool)
					st.push(Step{
						Op:       OpMakeReadOnly,
						ResValue: domainv,
						ResNull:  domainnull,
						D:        &testValOp{value: res.ResValue, isnull: res.ResNull},
					})
				}
				st.domainValue, st.domainNull = domainv, domainnull
			}
			d := &domainCheckOp{
				typ:        n.ResultType,
				name:       name,
				constraint: c.Name,
				checkValue: new(datum.Datum),
				checkNull:  new(bool),
			}
			if err := st.compile(c.Check, d.checkValue, d.checkNull); err != nil {
				return err
			}
			s := res
			s.Op = OpDomainCheck
			s.D = d
			st.push(s)
		default:
			return pgerr.Invariant("unrecognized constraint kind %d", c.Kind)
		}
	}
	return nil
}
