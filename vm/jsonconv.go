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
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/catalog"
	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

// toJSON converts a SQL value of type typ into
// its decoded JSON form.
func (st *ExprState) toJSON(typ oid.Oid, v datum.Datum, isnull bool) (any, error) {
	if isnull {
		return nil, nil
	}
	switch typ {
	case oid.T_bool:
		return v.Bool(), nil
	case oid.T_int2, oid.T_int4, oid.T_int8, oid.T_oid:
		return json.Number(strconv.FormatInt(v.Int64(), 10)), nil
	case oid.T_float8:
		f := v.Float64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
		return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
	case oid.T_numeric:
		d, err := catalog.NumericOf(v)
		if err != nil {
			return nil, err
		}
		if d.Form != apd.Finite {
			return d.String(), nil
		}
		return json.Number(d.String()), nil
	case oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name:
		return datum.TextOf(v)
	case oid.T_json:
		s, err := datum.TextOf(v)
		if err != nil {
			return nil, err
		}
		j, err := datum.ParseJSON(s, false)
		if err != nil {
			return nil, jsonParseError(err)
		}
		return j.V, nil
	case oid.T_jsonb:
		j, err := catalog.JSONBOf(v)
		if err != nil {
			return nil, err
		}
		return j.V, nil
	}
	ti, err := st.cat.Type(typ)
	if err != nil {
		return nil, err
	}
	if ti.IsDomain() {
		return st.toJSON(ti.BaseType, v, false)
	}
	if ti.Composite {
		return st.recordToJSON(v)
	}
	if ti.Elem != 0 && ti.Len == -1 {
		if arr, err := datum.ArrayOf(v); err == nil {
			return st.arrayToJSON(arr)
		}
	}
	return st.outputText(ti.Output, v)
}

func (st *ExprState) outputText(fn oid.Oid, v datum.Datum) (string, error) {
	fi, err := st.cat.Func(fn)
	if err != nil {
		return "", err
	}
	out, _, err := fmgr.Call(fi, 0, v)
	if err != nil {
		return "", err
	}
	return datum.TextOf(out)
}

func (st *ExprState) arrayToJSON(a *datum.Array) (any, error) {
	if a.NDim() == 0 {
		return []any{}, nil
	}
	pos := 0
	var build func(dim int) ([]any, error)
	build = func(dim int) ([]any, error) {
		out := make([]any, 0, a.Dims[dim])
		for i := 0; i < a.Dims[dim]; i++ {
			if dim+1 < a.NDim() {
				sub, err := build(dim + 1)
				if err != nil {
					return nil, err
				}
				out = append(out, sub)
				continue
			}
			v, err := st.toJSON(a.ElemType, a.Elems[pos], a.IsNull(pos))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			pos++
		}
		return out, nil
	}
	return build(0)
}

func (st *ExprState) recordToJSON(v datum.Datum) (any, error) {
	rec, err := datum.RecordOf(v)
	if err != nil {
		return nil, err
	}
	desc, err := st.cat.RowDesc(rec.TypeID, rec.TypMod)
	if err != nil {
		return nil, err
	}
	obj := make(map[string]any, desc.NumAttrs())
	for i := range desc.Attrs {
		a := &desc.Attrs[i]
		if a.Dropped {
			continue
		}
		fv, fnull := rec.Field(i)
		jv, err := st.toJSON(a.Type, fv, fnull)
		if err != nil {
			return nil, err
		}
		obj[a.Name] = jv
	}
	return obj, nil
}

// fromJSONDoc decodes a json, jsonb or
// text datum into a document.
func fromJSONDoc(typ oid.Oid, v datum.Datum) (any, error) {
	if typ == oid.T_jsonb {
		j, err := catalog.JSONBOf(v)
		if err != nil {
			return nil, err
		}
		return j.V, nil
	}
	s, err := datum.TextOf(v)
	if err != nil {
		return nil, err
	}
	j, err := datum.ParseJSON(s, false)
	if err != nil {
		return nil, jsonParseError(err)
	}
	return j.V, nil
}

// jsonDatum wraps a decoded document as a value
// of type typ (jsonb, or json-formatted text).
func jsonDatum(typ oid.Oid, v any) datum.Datum {
	if typ == oid.T_jsonb {
		return catalog.JSONB(v)
	}
	return datum.FromText(jsonText(v))
}

func jsonText(v any) string {
	var sb strings.Builder
	datum.WriteJSON(&sb, v)
	return sb.String()
}

// jsonScalarText is the SQL text of a JSON
// scalar: strings lose their quotes.
func jsonScalarText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return jsonText(v)
}

func jsonParseError(err error) error {
	if err == datum.ErrDuplicateKey {
		return pgerr.Newf(pgerr.CodeDuplicateJSONKey, "duplicate JSON object key value")
	}
	return pgerr.Wrapf(err, pgerr.CodeInvalidJSONText, "invalid input syntax for type json")
}
