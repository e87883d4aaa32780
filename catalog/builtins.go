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
	"math"
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
	"github.com/spf13/cast"
	"golang.org/x/exp/constraints"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/expr"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// Types without a constant in lib/pq/oid.
const (
	TypeInternal oid.Oid = 2281
	TypeJSONPath oid.Oid = 4072
)

// Builtin function OIDs.
const (
	FnBoolIn    oid.Oid = 1242
	FnBoolOut   oid.Oid = 1243
	FnBoolEq    oid.Oid = 60
	FnBoolNe    oid.Oid = 84
	FnBtBoolCmp oid.Oid = 1693
	FnHashBool  oid.Oid = 454

	FnInt2In    oid.Oid = 38
	FnInt2Out   oid.Oid = 39
	FnInt2Eq    oid.Oid = 63
	FnInt2Lt    oid.Oid = 64
	FnBtInt2Cmp oid.Oid = 350
	FnHashInt2  oid.Oid = 449

	FnInt4In       oid.Oid = 42
	FnInt4Out      oid.Oid = 43
	FnInt4Eq       oid.Oid = 65
	FnInt4Lt       oid.Oid = 66
	FnInt4Ne       oid.Oid = 144
	FnInt4Gt       oid.Oid = 147
	FnInt4Le       oid.Oid = 149
	FnInt4Ge       oid.Oid = 150
	FnInt4Pl       oid.Oid = 177
	FnInt4Mi       oid.Oid = 181
	FnInt4Mul      oid.Oid = 141
	FnInt4Div      oid.Oid = 154
	FnInt4Mod      oid.Oid = 156
	FnInt4Larger   oid.Oid = 768
	FnInt4Smaller  oid.Oid = 769
	FnBtInt4Cmp    oid.Oid = 351
	FnHashInt4     oid.Oid = 450
	FnHashInt4Ext  oid.Oid = 425
	FnInt4Sum      oid.Oid = 1841
	FnInt4ToInt8   oid.Oid = 481
	FnInt8In       oid.Oid = 460
	FnInt8Out      oid.Oid = 461
	FnInt8Eq       oid.Oid = 467
	FnInt8Lt       oid.Oid = 469
	FnInt8Gt       oid.Oid = 470
	FnInt8Pl       oid.Oid = 463
	FnInt8Mi       oid.Oid = 464
	FnInt8Inc      oid.Oid = 1219
	FnInt8IncAny   oid.Oid = 2804
	FnBtInt8Cmp    oid.Oid = 842
	FnHashInt8     oid.Oid = 949
	FnHashInt8Ext  oid.Oid = 442
	FnFloat8In     oid.Oid = 214
	FnFloat8Out    oid.Oid = 215
	FnFloat8Eq     oid.Oid = 293
	FnFloat8Lt     oid.Oid = 295
	FnFloat8Pl     oid.Oid = 218
	FnFloat8Div    oid.Oid = 217
	FnBtFloat8Cmp  oid.Oid = 355
	FnHashFloat8   oid.Oid = 452
	FnOidIn        oid.Oid = 1798
	FnOidOut       oid.Oid = 1799
	FnOidEq        oid.Oid = 184
	FnHashOid      oid.Oid = 453
	FnTextIn       oid.Oid = 46
	FnTextOut      oid.Oid = 47
	FnTextEq       oid.Oid = 67
	FnTextNe       oid.Oid = 157
	FnTextLt       oid.Oid = 740
	FnTextGt       oid.Oid = 742
	FnBtTextCmp    oid.Oid = 360
	FnHashText     oid.Oid = 400
	FnHashTextExt  oid.Oid = 448
	FnTextCat      oid.Oid = 1258
	FnTextLen      oid.Oid = 1257
	FnUpper        oid.Oid = 871
	FnLower        oid.Oid = 870
	FnTextLarger   oid.Oid = 458
	FnTextSmaller  oid.Oid = 459
	FnByteaIn      oid.Oid = 1244
	FnByteaOut     oid.Oid = 31
	FnByteaEq      oid.Oid = 1948
	FnHashBytea    oid.Oid = 456
	FnHashByteaExt oid.Oid = 772

	FnNumericIn   oid.Oid = 1701
	FnNumericOut  oid.Oid = 1702
	FnNumericEq   oid.Oid = 1718
	FnNumericLt   oid.Oid = 1722
	FnNumericAdd  oid.Oid = 1724
	FnNumericDiv  oid.Oid = 1727
	FnNumericCmp  oid.Oid = 1769
	FnHashNumeric oid.Oid = 432
	FnUUIDIn      oid.Oid = 2952
	FnUUIDOut     oid.Oid = 2953
	FnUUIDEq      oid.Oid = 2956
	FnUUIDCmp     oid.Oid = 2960
	FnUUIDHash    oid.Oid = 2963
	FnPointIn     oid.Oid = 117
	FnPointOut    oid.Oid = 118

	FnJSONIn           oid.Oid = 321
	FnJSONOut          oid.Oid = 322
	FnJSONBIn          oid.Oid = 3806
	FnJSONBOut         oid.Oid = 3807
	FnJSONBEq          oid.Oid = 4038
	FnJSONBHash        oid.Oid = 4045
	FnJSONBObjectField oid.Oid = 3947
	FnJSONBArrayElem   oid.Oid = 3948
	FnJSONBTypeof      oid.Oid = 3210
	FnJSONPathIn       oid.Oid = 4001
	FnJSONPathOut      oid.Oid = 4002

	FnArrayIn      oid.Oid = 750
	FnArrayOut     oid.Oid = 751
	FnArrayEq      oid.Oid = 744
	FnBtArrayCmp   oid.Oid = 382
	FnHashArray    oid.Oid = 626
	FnArrayAppend  oid.Oid = 378
	FnArrayLength  oid.Oid = 2176
	FnCardinality  oid.Oid = 3179
	FnRecordIn     oid.Oid = 2290
	FnRecordOut    oid.Oid = 2291
	FnInternalIn   oid.Oid = 2304
	FnInternalOut  oid.Oid = 2305
	FnArrayAggTran oid.Oid = 2333
	FnArrayAggFin  oid.Oid = 2334

	FnStringAggTrans   oid.Oid = 3535
	FnStringAggFinal   oid.Oid = 3536
	FnStringAggCombine oid.Oid = 3590
	FnStringAggSerial  oid.Oid = 3591
	FnStringAggDeser   oid.Oid = 3592
)

func (m *Memory) registerTypes() {
	scalar := func(t oid.Oid, name string, l int16, byval bool, align byte, in, out, eq, cmp, hash, hashExt, arr oid.Oid) {
		m.types[t] = &TypeInfo{
			OID: t, Name: name, Len: l, ByVal: byval, Align: align,
			Input: in, Output: out, Array: arr,
			EqFunc: eq, CmpFunc: cmp, HashFunc: hash, HashExtFunc: hashExt,
		}
	}
	scalar(oid.T_bool, "bool", 1, true, 'c', FnBoolIn, FnBoolOut, FnBoolEq, FnBtBoolCmp, FnHashBool, 0, oid.T__bool)
	scalar(oid.T_int2, "int2", 2, true, 's', FnInt2In, FnInt2Out, FnInt2Eq, FnBtInt2Cmp, FnHashInt2, 0, oid.T__int2)
	scalar(oid.T_int4, "int4", 4, true, 'i', FnInt4In, FnInt4Out, FnInt4Eq, FnBtInt4Cmp, FnHashInt4, FnHashInt4Ext, oid.T__int4)
	scalar(oid.T_int8, "int8", 8, true, 'd', FnInt8In, FnInt8Out, FnInt8Eq, FnBtInt8Cmp, FnHashInt8, FnHashInt8Ext, oid.T__int8)
	scalar(oid.T_float8, "float8", 8, true, 'd', FnFloat8In, FnFloat8Out, FnFloat8Eq, FnBtFloat8Cmp, FnHashFloat8, 0, oid.T__float8)
	scalar(oid.T_oid, "oid", 4, true, 'i', FnOidIn, FnOidOut, FnOidEq, 0, FnHashOid, 0, oid.T__oid)
	scalar(oid.T_text, "text", -1, false, 'i', FnTextIn, FnTextOut, FnTextEq, FnBtTextCmp, FnHashText, FnHashTextExt, oid.T__text)
	scalar(oid.T_bytea, "bytea", -1, false, 'i', FnByteaIn, FnByteaOut, FnByteaEq, 0, FnHashBytea, FnHashByteaExt, oid.T__bytea)
	scalar(oid.T_numeric, "numeric", -1, false, 'i', FnNumericIn, FnNumericOut, FnNumericEq, FnNumericCmp, FnHashNumeric, 0, oid.T__numeric)
	scalar(oid.T_uuid, "uuid", 16, false, 'c', FnUUIDIn, FnUUIDOut, FnUUIDEq, FnUUIDCmp, FnUUIDHash, 0, oid.T__uuid)
	scalar(oid.T_json, "json", -1, false, 'i', FnJSONIn, FnJSONOut, 0, 0, 0, 0, oid.T__json)
	scalar(oid.T_jsonb, "jsonb", -1, false, 'i', FnJSONBIn, FnJSONBOut, FnJSONBEq, 0, FnJSONBHash, 0, oid.T__jsonb)
	scalar(TypeJSONPath, "jsonpath", -1, false, 'i', FnJSONPathIn, FnJSONPathOut, 0, 0, 0, 0, 0)
	scalar(TypeInternal, "internal", 8, true, 'd', FnInternalIn, FnInternalOut, 0, 0, 0, 0, 0)
	scalar(oid.T_record, "record", -1, false, 'd', FnRecordIn, FnRecordOut, 0, 0, 0, 0, oid.T__record)
	m.types[oid.T_record].Composite = true
	m.types[oid.T_jsonb].Subscript = jsonbSubscript

	m.types[oid.T_point] = &TypeInfo{
		OID: oid.T_point, Name: "point", Len: 16, Align: 'd',
		Input: FnPointIn, Output: FnPointOut, Elem: oid.T_float8,
		Subscript: pointSubscript,
	}

	for _, elem := range []oid.Oid{
		oid.T_bool, oid.T_int2, oid.T_int4, oid.T_int8, oid.T_float8,
		oid.T_oid, oid.T_text, oid.T_bytea, oid.T_numeric, oid.T_uuid,
		oid.T_json, oid.T_jsonb, oid.T_record,
	} {
		et := m.types[elem]
		m.types[et.Array] = arrayType(et.Array, "_"+et.Name, elem)
	}
	m.types[oid.T_anyarray] = arrayType(oid.T_anyarray, "anyarray", oid.T_anyelement)
}

func arrayType(t oid.Oid, name string, elem oid.Oid) *TypeInfo {
	return &TypeInfo{
		OID: t, Name: name, Len: -1, Align: 'd',
		Input: FnArrayIn, Output: FnArrayOut, Elem: elem,
		Subscript: arraySubscript,
		EqFunc:    FnArrayEq, CmpFunc: FnBtArrayCmp, HashFunc: FnHashArray,
	}
}

// IOParam returns the type parameter passed
// to the input function of t.
func (t *TypeInfo) IOParam() oid.Oid {
	if t.Elem != 0 {
		return t.Elem
	}
	return t.OID
}

type builtin struct {
	oid    oid.Oid
	name   string
	nargs  int
	strict bool
	fn     fmgr.Function
	inline fmgr.Inline2
}

func (m *Memory) addBuiltins(lst []builtin) {
	for i := range lst {
		b := &lst[i]
		m.funcs[b.oid] = &fmgr.Info{
			OID:      b.oid,
			Name:     b.name,
			Addr:     b.fn,
			NArgs:    b.nargs,
			Strict:   b.strict,
			Language: "internal",
			Inline2:  b.inline,
		}
	}
}

func fn1(o oid.Oid, name string, f func(d datum.Datum) (datum.Datum, error)) builtin {
	return builtin{oid: o, name: name, nargs: 1, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
		return f(fc.Arg(0))
	}}
}

func fn2(o oid.Oid, name string, f fmgr.Inline2) builtin {
	return builtin{oid: o, name: name, nargs: 2, strict: true, inline: f, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
		return f(fc.Arg(0), fc.Arg(1))
	}}
}

// input wraps a type input function that
// reports failures softly when allowed.
func input(o oid.Oid, name string, parse func(fc *fmgr.CallInfo, s string) (datum.Datum, error)) builtin {
	return builtin{oid: o, name: name, nargs: 3, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
		s, err := fc.ArgText(0)
		if err != nil {
			return datum.Null, err
		}
		v, err := parse(fc, s)
		if err != nil {
			return fc.Fail(err)
		}
		return v, nil
	}}
}

func output(o oid.Oid, name string, format func(d datum.Datum) (string, error)) builtin {
	return fn1(o, name, func(d datum.Datum) (datum.Datum, error) {
		s, err := format(d)
		if err != nil {
			return datum.Null, err
		}
		return datum.FromText(s), nil
	})
}

func errOutOfRange(typ string) error {
	return pgerr.Newf(pgerr.CodeNumericOutOfRange, "%s out of range", typ)
}

func errDivByZero() error {
	return pgerr.Newf(pgerr.CodeDivisionByZero, "division by zero")
}

func badInput(typ, s string) error {
	return pgerr.Newf(pgerr.CodeInvalidTextRep, "invalid input syntax for type %s: %q", typ, s)
}

func addOK[T constraints.Signed](a, b T) (T, bool) {
	r := a + b
	return r, (r > a) == (b > 0)
}

func subOK[T constraints.Signed](a, b T) (T, bool) {
	r := a - b
	return r, (r < a) == (b > 0)
}

func mulOK[T constraints.Signed](a, b T) (T, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a {
		return r, false
	}
	// the most negative value times -1 wraps onto itself
	if (a == -1 || b == -1) && a < 0 && b < 0 && r < 0 {
		return r, false
	}
	return r, true
}

func compare[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func parseInt(s, typ string, bits int) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, bits)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, pgerr.Newf(pgerr.CodeNumericOutOfRange, "value %q is out of range for type %s", s, typ)
		}
		return 0, badInput(typ, s)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	b, err := cast.ToBoolE(t)
	if err != nil || t == "" {
		return false, badInput("boolean", s)
	}
	return b, nil
}

func boolCmp(a, b datum.Datum) int {
	x, y := 0, 0
	if a.Bool() {
		x = 1
	}
	if b.Bool() {
		y = 1
	}
	return compare(x, y)
}

func cmpResult(c int) (datum.Datum, error) { return datum.FromInt32(int32(c)), nil }

func (m *Memory) registerBuiltins() {
	m.addBuiltins([]builtin{
		input(FnBoolIn, "boolin", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			b, err := parseBool(s)
			return datum.FromBool(b), err
		}),
		output(FnBoolOut, "boolout", func(d datum.Datum) (string, error) {
			if d.Bool() {
				return "t", nil
			}
			return "f", nil
		}),
		fn2(FnBoolEq, "booleq", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Bool() == b.Bool()), nil
		}),
		fn2(FnBoolNe, "boolne", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Bool() != b.Bool()), nil
		}),
		fn2(FnBtBoolCmp, "btboolcmp", func(a, b datum.Datum) (datum.Datum, error) {
			return cmpResult(boolCmp(a, b))
		}),
		fn1(FnHashBool, "hashbool", func(d datum.Datum) (datum.Datum, error) {
			return hashResult(hashInt(int64(d.Word() & 1))), nil
		}),

		input(FnInt2In, "int2in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			v, err := parseInt(s, "smallint", 16)
			return datum.FromInt16(int16(v)), err
		}),
		output(FnInt2Out, "int2out", intOut),
		fn2(FnInt2Eq, "int2eq", intEq),
		fn2(FnInt2Lt, "int2lt", intLt),
		fn2(FnBtInt2Cmp, "btint2cmp", intCmp),
		fn1(FnHashInt2, "hashint2", hashIntDatum),

		input(FnInt4In, "int4in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			v, err := parseInt(s, "integer", 32)
			return datum.FromInt32(int32(v)), err
		}),
		output(FnInt4Out, "int4out", intOut),
		fn2(FnInt4Eq, "int4eq", intEq),
		fn2(FnInt4Ne, "int4ne", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Int64() != b.Int64()), nil
		}),
		fn2(FnInt4Lt, "int4lt", intLt),
		fn2(FnInt4Le, "int4le", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Int64() <= b.Int64()), nil
		}),
		fn2(FnInt4Gt, "int4gt", intGt),
		fn2(FnInt4Ge, "int4ge", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Int64() >= b.Int64()), nil
		}),
		fn2(FnInt4Pl, "int4pl", int4Arith(addOK[int32])),
		fn2(FnInt4Mi, "int4mi", int4Arith(subOK[int32])),
		fn2(FnInt4Mul, "int4mul", int4Arith(mulOK[int32])),
		fn2(FnInt4Div, "int4div", func(a, b datum.Datum) (datum.Datum, error) {
			x, y := a.Int32(), b.Int32()
			if y == 0 {
				return datum.Null, errDivByZero()
			}
			if x == math.MinInt32 && y == -1 {
				return datum.Null, errOutOfRange("integer")
			}
			return datum.FromInt32(x / y), nil
		}),
		fn2(FnInt4Mod, "int4mod", func(a, b datum.Datum) (datum.Datum, error) {
			x, y := a.Int32(), b.Int32()
			if y == 0 {
				return datum.Null, errDivByZero()
			}
			if y == -1 {
				return datum.FromInt32(0), nil
			}
			return datum.FromInt32(x % y), nil
		}),
		fn2(FnInt4Larger, "int4larger", func(a, b datum.Datum) (datum.Datum, error) {
			if a.Int32() >= b.Int32() {
				return a, nil
			}
			return b, nil
		}),
		fn2(FnInt4Smaller, "int4smaller", func(a, b datum.Datum) (datum.Datum, error) {
			if a.Int32() <= b.Int32() {
				return a, nil
			}
			return b, nil
		}),
		fn2(FnBtInt4Cmp, "btint4cmp", intCmp),
		fn1(FnHashInt4, "hashint4", hashIntDatum),
		fn2(FnHashInt4Ext, "hashint4extended", hashIntExtDatum),
		fn1(FnInt4ToInt8, "int8", func(d datum.Datum) (datum.Datum, error) {
			return datum.FromInt64(int64(d.Int32())), nil
		}),

		input(FnInt8In, "int8in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			v, err := parseInt(s, "bigint", 64)
			return datum.FromInt64(v), err
		}),
		output(FnInt8Out, "int8out", intOut),
		fn2(FnInt8Eq, "int8eq", intEq),
		fn2(FnInt8Lt, "int8lt", intLt),
		fn2(FnInt8Gt, "int8gt", intGt),
		fn2(FnInt8Pl, "int8pl", int8Arith(addOK[int64])),
		fn2(FnInt8Mi, "int8mi", int8Arith(subOK[int64])),
		fn2(FnBtInt8Cmp, "btint8cmp", intCmp),
		fn1(FnHashInt8, "hashint8", hashIntDatum),
		fn2(FnHashInt8Ext, "hashint8extended", hashIntExtDatum),

		input(FnFloat8In, "float8in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
					return datum.Null, pgerr.Newf(pgerr.CodeNumericOutOfRange, "%q is out of range for type double precision", s)
				}
				return datum.Null, badInput("double precision", s)
			}
			return datum.FromFloat64(f), nil
		}),
		output(FnFloat8Out, "float8out", func(d datum.Datum) (string, error) {
			return formatFloat(d.Float64()), nil
		}),
		fn2(FnFloat8Eq, "float8eq", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(floatCmp(a.Float64(), b.Float64()) == 0), nil
		}),
		fn2(FnFloat8Lt, "float8lt", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(floatCmp(a.Float64(), b.Float64()) < 0), nil
		}),
		fn2(FnFloat8Pl, "float8pl", func(a, b datum.Datum) (datum.Datum, error) {
			r := a.Float64() + b.Float64()
			if math.IsInf(r, 0) && !math.IsInf(a.Float64(), 0) && !math.IsInf(b.Float64(), 0) {
				return datum.Null, pgerr.Newf(pgerr.CodeNumericOutOfRange, "value out of range: overflow")
			}
			return datum.FromFloat64(r), nil
		}),
		fn2(FnFloat8Div, "float8div", func(a, b datum.Datum) (datum.Datum, error) {
			if b.Float64() == 0 {
				return datum.Null, errDivByZero()
			}
			return datum.FromFloat64(a.Float64() / b.Float64()), nil
		}),
		fn2(FnBtFloat8Cmp, "btfloat8cmp", func(a, b datum.Datum) (datum.Datum, error) {
			return cmpResult(floatCmp(a.Float64(), b.Float64()))
		}),
		fn1(FnHashFloat8, "hashfloat8", func(d datum.Datum) (datum.Datum, error) {
			f := d.Float64()
			if f == 0 {
				// +0 and -0 are equal
				return hashResult(0), nil
			}
			if math.IsNaN(f) {
				f = math.NaN()
			}
			return hashResult(hashInt(int64(math.Float64bits(f)))), nil
		}),

		input(FnOidIn, "oidin", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
			if err != nil {
				return datum.Null, badInput("oid", s)
			}
			return datum.FromOid(oid.Oid(v)), nil
		}),
		output(FnOidOut, "oidout", func(d datum.Datum) (string, error) {
			return strconv.FormatUint(uint64(d.Uint32()), 10), nil
		}),
		fn2(FnOidEq, "oideq", func(a, b datum.Datum) (datum.Datum, error) {
			return datum.FromBool(a.Uint32() == b.Uint32()), nil
		}),
		fn1(FnHashOid, "hashoid", func(d datum.Datum) (datum.Datum, error) {
			return hashResult(hashInt(int64(d.Uint32()))), nil
		}),

		input(FnInternalIn, "internal_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			return datum.Null, pgerr.Newf(pgerr.CodeFeatureNotSupported, "cannot accept a value of type internal")
		}),
		output(FnInternalOut, "internal_out", func(datum.Datum) (string, error) {
			return "", pgerr.Newf(pgerr.CodeFeatureNotSupported, "cannot display a value of type internal")
		}),
	})
	m.addBuiltins(textBuiltins())
	m.addBuiltins(numericBuiltins())
	m.addBuiltins(m.jsonBuiltins())
	m.addBuiltins(m.arrayBuiltins())
	m.addBuiltins(m.recordBuiltins())
}

func intOut(d datum.Datum) (string, error) { return strconv.FormatInt(d.Int64(), 10), nil }

func intEq(a, b datum.Datum) (datum.Datum, error) {
	return datum.FromBool(a.Int64() == b.Int64()), nil
}

func intLt(a, b datum.Datum) (datum.Datum, error) {
	return datum.FromBool(a.Int64() < b.Int64()), nil
}

func intGt(a, b datum.Datum) (datum.Datum, error) {
	return datum.FromBool(a.Int64() > b.Int64()), nil
}

func intCmp(a, b datum.Datum) (datum.Datum, error) {
	return cmpResult(compare(a.Int64(), b.Int64()))
}

func int4Arith(op func(a, b int32) (int32, bool)) fmgr.Inline2 {
	return func(a, b datum.Datum) (datum.Datum, error) {
		r, ok := op(a.Int32(), b.Int32())
		if !ok {
			return datum.Null, errOutOfRange("integer")
		}
		return datum.FromInt32(r), nil
	}
}

func int8Arith(op func(a, b int64) (int64, bool)) fmgr.Inline2 {
	return func(a, b datum.Datum) (datum.Datum, error) {
		r, ok := op(a.Int64(), b.Int64())
		if !ok {
			return datum.Null, errOutOfRange("bigint")
		}
		return datum.FromInt64(r), nil
	}
}

// floatCmp orders NaN above every other value
// and equal to itself.
func floatCmp(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return compare(a, b)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// TypeName returns the SQL name of typ for
// messages.
func (m *Memory) TypeName(typ oid.Oid) string {
	if t, err := m.Type(typ); err == nil {
		return t.Name
	}
	return expr.TypeName(typ)
}
