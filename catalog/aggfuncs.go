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
	"encoding/binary"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// Builtin aggregate OIDs.
const (
	AggCountStar oid.Oid = 2803
	AggCount     oid.Oid = 2147
	AggSumInt4   oid.Oid = 2108
	AggMaxInt4   oid.Oid = 2116
	AggMinInt4   oid.Oid = 2132
	AggMaxText   oid.Oid = 2129
	AggArrayAgg  oid.Oid = 2335
	AggStringAgg oid.Oid = 3538
)

func (m *Memory) registerAggregates() {
	m.addBuiltins([]builtin{
		fn1(FnInt8Inc, "int8inc", func(d datum.Datum) (datum.Datum, error) {
			r, ok := addOK(d.Int64(), 1)
			if !ok {
				return datum.Null, errOutOfRange("bigint")
			}
			return datum.FromInt64(r), nil
		}),
		fn2(FnInt8IncAny, "int8inc_any", func(d, _ datum.Datum) (datum.Datum, error) {
			r, ok := addOK(d.Int64(), 1)
			if !ok {
				return datum.Null, errOutOfRange("bigint")
			}
			return datum.FromInt64(r), nil
		}),
		{oid: FnInt4Sum, name: "int4_sum", nargs: 2, fn: int4Sum},
		{oid: FnArrayAggTran, name: "array_agg_transfn", nargs: 2, fn: arrayAggTrans},
		{oid: FnArrayAggFin, name: "array_agg_finalfn", nargs: 1, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			if fc.Args[0].IsNull {
				return fc.ReturnNull()
			}
			return datum.Flatten(fc.Arg(0)), nil
		}},
		{oid: FnStringAggTrans, name: "string_agg_transfn", nargs: 3, fn: stringAggTrans},
		{oid: FnStringAggFinal, name: "string_agg_finalfn", nargs: 1, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			if fc.Args[0].IsNull {
				return fc.ReturnNull()
			}
			st := fc.Arg(0).Ref().(*stringAggState)
			return datum.FromText(string(st.buf[st.skip:])), nil
		}},
		{oid: FnStringAggCombine, name: "string_agg_combine", nargs: 2, fn: stringAggCombine},
		{oid: FnStringAggSerial, name: "string_agg_serialize", nargs: 1, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			st := fc.Arg(0).Ref().(*stringAggState)
			out := binary.BigEndian.AppendUint32(nil, uint32(st.skip))
			return datum.FromBytes(append(out, st.buf...)), nil
		}},
		{oid: FnStringAggDeser, name: "string_agg_deserialize", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			b, err := datum.BytesOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			if len(b) < 4 {
				return datum.Null, pgerr.Newf(pgerr.CodeInvalidParameter, "invalid string_agg state")
			}
			st := &stringAggState{skip: int(binary.BigEndian.Uint32(b)), buf: append([]byte(nil), b[4:]...)}
			return datum.FromRef(st), nil
		}},
	})

	for _, a := range []*AggInfo{
		{FnOid: AggCountStar, Name: "count", TransFn: FnInt8Inc, CombineFn: FnInt8Pl, TransType: oid.T_int8, InitVal: "0", HasInit: true},
		{FnOid: AggCount, Name: "count", TransFn: FnInt8IncAny, CombineFn: FnInt8Pl, TransType: oid.T_int8, InitVal: "0", HasInit: true},
		{FnOid: AggSumInt4, Name: "sum", TransFn: FnInt4Sum, CombineFn: FnInt8Pl, TransType: oid.T_int8},
		{FnOid: AggMaxInt4, Name: "max", TransFn: FnInt4Larger, CombineFn: FnInt4Larger, TransType: oid.T_int4},
		{FnOid: AggMinInt4, Name: "min", TransFn: FnInt4Smaller, CombineFn: FnInt4Smaller, TransType: oid.T_int4},
		{FnOid: AggMaxText, Name: "max", TransFn: FnTextLarger, CombineFn: FnTextLarger, TransType: oid.T_text},
		{FnOid: AggArrayAgg, Name: "array_agg", TransFn: FnArrayAggTran, FinalFn: FnArrayAggFin, TransType: oid.T_anyarray},
		{
			FnOid: AggStringAgg, Name: "string_agg",
			TransFn: FnStringAggTrans, FinalFn: FnStringAggFinal,
			CombineFn: FnStringAggCombine, SerialFn: FnStringAggSerial, DeserialFn: FnStringAggDeser,
			TransType: TypeInternal,
		},
	} {
		m.aggs[a.FnOid] = a
	}
}

func int4Sum(fc *fmgr.CallInfo) (datum.Datum, error) {
	if fc.Args[0].IsNull {
		if fc.Args[1].IsNull {
			return fc.ReturnNull()
		}
		return datum.FromInt64(int64(fc.Arg(1).Int32())), nil
	}
	if fc.Args[1].IsNull {
		return fc.Arg(0), nil
	}
	r, ok := addOK(fc.Arg(0).Int64(), int64(fc.Arg(1).Int32()))
	if !ok {
		return datum.Null, errOutOfRange("bigint")
	}
	return datum.FromInt64(r), nil
}

func notInAggregate(name string) error {
	return pgerr.Newf(pgerr.CodeInternal, "%s called in non-aggregate context", name)
}

// arrayAggTrans accumulates into an expanded
// array owned by the aggregate memory context
// and returns its read-write handle.
func arrayAggTrans(fc *fmgr.CallInfo) (datum.Datum, error) {
	ac, ok := fc.Agg()
	if !ok {
		return datum.Null, notInAggregate("array_agg_transfn")
	}
	state := fc.Arg(0)
	if fc.Args[0].IsNull {
		state = datum.Expand(ac.AggMemoryContext(), datum.EmptyArray(ArgType(fc.Flinfo, 1)))
	} else if !datum.IsExpandedRW(state) {
		a, err := datum.ArrayOf(state)
		if err != nil {
			return datum.Null, err
		}
		state = datum.Expand(ac.AggMemoryContext(), a)
	}
	a, err := datum.ArrayOf(state)
	if err != nil {
		return datum.Null, err
	}
	next := 1
	if a.NDim() == 1 {
		next = a.LBound[0] + a.Dims[0]
	}
	if err := a.Set([]int{next}, fc.Arg(1), fc.Args[1].IsNull); err != nil {
		return datum.Null, pgerr.Wrapf(err, pgerr.CodeArraySubscript, "array_agg")
	}
	return state, nil
}

// stringAggState accumulates delimiter+value
// pairs; the leading delimiter is skipped.
type stringAggState struct {
	buf  []byte
	skip int
}

func stringAggTrans(fc *fmgr.CallInfo) (datum.Datum, error) {
	if _, ok := fc.Agg(); !ok {
		return datum.Null, notInAggregate("string_agg_transfn")
	}
	if fc.Args[1].IsNull {
		if fc.Args[0].IsNull {
			return fc.ReturnNull()
		}
		return fc.Arg(0), nil
	}
	val, err := fc.ArgText(1)
	if err != nil {
		return datum.Null, err
	}
	delim := ""
	if !fc.Args[2].IsNull {
		if delim, err = fc.ArgText(2); err != nil {
			return datum.Null, err
		}
	}
	var st *stringAggState
	if fc.Args[0].IsNull {
		st = &stringAggState{skip: len(delim)}
	} else {
		st = fc.Arg(0).Ref().(*stringAggState)
	}
	st.buf = append(st.buf, delim...)
	st.buf = append(st.buf, val...)
	return datum.FromRef(st), nil
}

func stringAggCombine(fc *fmgr.CallInfo) (datum.Datum, error) {
	if _, ok := fc.Agg(); !ok {
		return datum.Null, notInAggregate("string_agg_combine")
	}
	switch {
	case fc.Args[1].IsNull:
		if fc.Args[0].IsNull {
			return fc.ReturnNull()
		}
		return fc.Arg(0), nil
	case fc.Args[0].IsNull:
		src := fc.Arg(1).Ref().(*stringAggState)
		return datum.FromRef(&stringAggState{skip: src.skip, buf: append([]byte(nil), src.buf...)}), nil
	}
	st := fc.Arg(0).Ref().(*stringAggState)
	st.buf = append(st.buf, fc.Arg(1).Ref().(*stringAggState).buf...)
	return fc.Arg(0), nil
}
