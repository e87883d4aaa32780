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

package catalog

import (
	"fmt"
	"math"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/lib/pq/oid"
	"github.com/spf13/cast"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// AddExprFunc registers a user function whose body
// is written in the expr language. Arguments are
// visible as arg1..argN; a null argument is nil.
// Supported argument and result types are the
// integer types, float8, text and bool.
func (m *Memory) AddExprFunc(name string, fn oid.Oid, argTypes []oid.Oid, ret oid.Oid, body string, strict bool) error {
	env := make(map[string]any, len(argTypes))
	for i, t := range argTypes {
		zero, err := exprZero(t)
		if err != nil {
			return err
		}
		env[argName(i)] = zero
	}
	if _, err := exprZero(ret); err != nil {
		return err
	}
	prog, err := exprlang.Compile(body, exprlang.Env(env))
	if err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSyntaxError, "function %s", name)
	}
	f := &exprFunc{name: name, prog: prog, args: argTypes, ret: ret}
	m.AddFunc(&fmgr.Info{
		OID:      fn,
		Name:     name,
		Addr:     f.call,
		NArgs:    len(argTypes),
		Strict:   strict,
		Track:    true,
		Language: "expr",
	})
	return nil
}

func argName(i int) string { return fmt.Sprintf("arg%d", i+1) }

func exprZero(t oid.Oid) (any, error) {
	switch t {
	case oid.T_int2, oid.T_int4, oid.T_int8:
		return int64(0), nil
	case oid.T_float8:
		return float64(0), nil
	case oid.T_text:
		return "", nil
	case oid.T_bool:
		return false, nil
	}
	return nil, pgerr.Newf(pgerr.CodeFeatureNotSupported, "type %d is not supported in expr functions", t)
}

type exprFunc struct {
	name string
	prog *vm.Program
	args []oid.Oid
	ret  oid.Oid
}

func (f *exprFunc) call(fc *fmgr.CallInfo) (datum.Datum, error) {
	env := make(map[string]any, len(f.args))
	for i, t := range f.args {
		if fc.Args[i].IsNull {
			env[argName(i)] = nil
			continue
		}
		v := fc.Arg(i)
		switch t {
		case oid.T_int2:
			env[argName(i)] = int64(v.Int16())
		case oid.T_int4:
			env[argName(i)] = int64(v.Int32())
		case oid.T_int8:
			env[argName(i)] = v.Int64()
		case oid.T_float8:
			env[argName(i)] = v.Float64()
		case oid.T_text:
			s, err := datum.TextOf(v)
			if err != nil {
				return datum.Null, err
			}
			env[argName(i)] = s
		case oid.T_bool:
			env[argName(i)] = v.Bool()
		}
	}
	out, err := exprlang.Run(f.prog, env)
	if err != nil {
		return datum.Null, pgerr.Wrapf(err, pgerr.CodeInvalidParameter, "function %s", f.name)
	}
	if out == nil {
		return fc.ReturnNull()
	}
	d, err := f.result(out)
	if err != nil {
		return datum.Null, pgerr.Wrapf(err, pgerr.CodeInvalidParameter, "function %s", f.name)
	}
	return d, nil
}

func (f *exprFunc) result(out any) (datum.Datum, error) {
	switch f.ret {
	case oid.T_int2, oid.T_int4, oid.T_int8:
		n, err := cast.ToInt64E(out)
		if err != nil {
			return datum.Null, err
		}
		switch {
		case f.ret == oid.T_int2 && (n < math.MinInt16 || n > math.MaxInt16):
			return datum.Null, errOutOfRange("smallint")
		case f.ret == oid.T_int4 && (n < math.MinInt32 || n > math.MaxInt32):
			return datum.Null, errOutOfRange("integer")
		}
		return datum.FromInt64(n), nil
	case oid.T_float8:
		x, err := cast.ToFloat64E(out)
		if err != nil {
			return datum.Null, err
		}
		return datum.FromFloat64(x), nil
	case oid.T_text:
		s, err := cast.ToStringE(out)
		if err != nil {
			return datum.Null, err
		}
		return datum.FromText(s), nil
	case oid.T_bool:
		b, err := cast.ToBoolE(out)
		if err != nil {
			return datum.Null, err
		}
		return datum.FromBool(b), nil
	}
	return datum.Null, pgerr.Invariant("unexpected expr function result type %d", f.ret)
}
