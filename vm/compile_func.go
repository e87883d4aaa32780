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
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// funcCall resolves fn and compiles its
// arguments into a new call frame. Constant
// arguments are stored in the frame directly.
func (st *ExprState) funcCall(node expr.Node, fn oid.Oid, args []expr.Node, coll oid.Oid) (*funcOp, error) {
	if err := st.cat.CheckExecute(fn); err != nil {
		return nil, err
	}
	if len(args) > fmgr.MaxArgs {
		return nil, pgerr.Newf(pgerr.CodeTooManyArguments,
			"cannot pass more than %d arguments to a function", fmgr.MaxArgs)
	}
	fi, err := st.cat.Func(fn)
	if err != nil {
		return nil, err
	}
	if fi.NArgs >= 0 && fi.NArgs != len(args) {
		return nil, pgerr.Invariant("function %s called with %d arguments, expects %d", fi.Name, len(args), fi.NArgs)
	}
	fi.Expr = node
	d := &funcOp{
		fi:    fi,
		fc:    fmgr.NewCallInfo(fi, len(args), coll, nil),
		fn:    fi.Addr,
		nargs: len(args),
	}
	for i, a := range args {
		if c, ok := a.(*expr.Const); ok {
			d.fc.Args[i].Value, d.fc.Args[i].IsNull = c.Value, c.IsNull
			continue
		}
		if err := st.compile(a, &d.fc.Args[i].Value, &d.fc.Args[i].IsNull); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (st *ExprState) compileFuncExpr(node expr.Node, fn oid.Oid, args []expr.Node, coll oid.Oid, retset bool, res Step) error {
	if retset {
		return pgerr.Newf(pgerr.CodeFeatureNotSupported, "set-valued function called in context that cannot accept a set")
	}
	d, err := st.funcCall(node, fn, args, coll)
	if err != nil {
		return err
	}
	if d.fi.RetSet {
		return pgerr.Newf(pgerr.CodeFeatureNotSupported, "set-valued function called in context that cannot accept a set")
	}
	track := st.config().tracks(d.fi)
	switch {
	case d.fi.Strict && d.nargs > 0 && track:
		res.Op = OpFuncExprStrictFusage
	case d.fi.Strict && d.nargs > 0:
		res.Op = OpFuncExprStrict
	case track:
		res.Op = OpFuncExprFusage
	default:
		res.Op = OpFuncExpr
	}
	res.D = d
	st.push(res)
	return nil
}

func (st *ExprState) compileDistinct(n *expr.DistinctExpr, res Step) error {
	d, err := st.funcCall(n, n.FuncID, n.Args, n.InputCollation)
	if err != nil {
		return err
	}
	if d.nargs != 2 {
		return pgerr.Invariant("IS DISTINCT FROM with %d arguments", d.nargs)
	}
	res.Op = OpDistinct
	res.D = d
	st.push(res)
	return nil
}

func (st *ExprState) compileNullIf(n *expr.NullIfExpr, res Step) error {
	d, err := st.funcCall(n, n.FuncID, n.Args, n.InputCollation)
	if err != nil {
		return err
	}
	if d.nargs != 2 {
		return pgerr.Invariant("NULLIF with %d arguments", d.nargs)
	}
	res.Op = OpNullIf
	res.D = d
	st.push(res)
	return nil
}

// compileScalarArrayOp evaluates the scalar into
// the call frame and the array into the result.
func (st *ExprState) compileScalarArrayOp(n *expr.ScalarArrayOpExpr, res Step) error {
	if len(n.Args) != 2 {
		return pgerr.Invariant("ScalarArrayOpExpr with %d arguments", len(n.Args))
	}
	// the hash table is built from the first array
	// seen, so only a constant array is hashed
	_, constArray := n.Args[1].(*expr.Const)
	hashed := n.HashFuncID != 0 && constArray
	fn := n.FuncID
	if hashed && !n.UseOr {
		// NOT IN: look up with the equality function
		// and negate membership
		fn = n.NegFuncID
	}
	if err := st.cat.CheckExecute(fn); err != nil {
		return err
	}
	fi, err := st.cat.Func(fn)
	if err != nil {
		return err
	}
	fi.Expr = n
	fc := fmgr.NewCallInfo(fi, 2, n.InputCollation, nil)
	if err := st.compile(n.Args[0], &fc.Args[0].Value, &fc.Args[0].IsNull); err != nil {
		return err
	}
	if err := st.compile(n.Args[1], res.ResValue, res.ResNull); err != nil {
		return err
	}
	if !hashed {
		res.Op = OpScalarArrayOp
		res.D = &scalarArrayOp{fc: fc, fn: fi.Addr, useOr: n.UseOr}
		st.push(res)
		return nil
	}
	if err := st.cat.CheckExecute(n.HashFuncID); err != nil {
		return err
	}
	hfi, err := st.cat.Func(n.HashFuncID)
	if err != nil {
		return err
	}
	res.Op = OpHashedScalarArrayOp
	res.D = &hashedScalarArrayOp{
		fc:       fc,
		fn:       fi.Addr,
		hash:     fmgr.NewCallInfo(hfi, 1, n.InputCollation, nil),
		inClause: n.UseOr,
	}
	st.push(res)
	return nil
}
