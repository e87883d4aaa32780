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

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/jsonpath"
	"github.com/postgres/postgres-sub049/pgerr"
)

// JSONBOf returns the document held by a
// jsonb datum.
func JSONBOf(d datum.Datum) (*datum.JSON, error) {
	d, err := datum.Detoast(d)
	if err != nil {
		return nil, err
	}
	j, ok := d.Ref().(*datum.JSON)
	if !ok {
		return nil, fmt.Errorf("catalog: %T is not a jsonb value", d.Ref())
	}
	return j, nil
}

// JSONB wraps a decoded value as a jsonb datum.
func JSONB(v any) datum.Datum { return datum.FromRef(&datum.JSON{V: v}) }

// PathOf returns the compiled path held by a
// jsonpath datum.
func PathOf(d datum.Datum) (*jsonpath.Path, error) {
	p, ok := d.Ref().(*jsonpath.Path)
	if !ok {
		return nil, fmt.Errorf("catalog: %T is not a jsonpath value", d.Ref())
	}
	return p, nil
}

func jsonInputError(s string, err error) error {
	if err == datum.ErrDuplicateKey {
		return pgerr.Newf(pgerr.CodeDuplicateJSONKey, "duplicate JSON object key value")
	}
	return pgerr.Wrapf(err, pgerr.CodeInvalidTextRep, "invalid input syntax for type json")
}

func (m *Memory) jsonBuiltins() []builtin {
	return []builtin{
		input(FnJSONIn, "json_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			if _, err := datum.ParseJSON(s, false); err != nil {
				return datum.Null, jsonInputError(s, err)
			}
			return datum.FromText(s), nil
		}),
		output(FnJSONOut, "json_out", datum.TextOf),
		input(FnJSONBIn, "jsonb_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			j, err := datum.ParseJSON(s, false)
			if err != nil {
				return datum.Null, jsonInputError(s, err)
			}
			return datum.FromRef(j), nil
		}),
		output(FnJSONBOut, "jsonb_out", func(d datum.Datum) (string, error) {
			j, err := JSONBOf(d)
			if err != nil {
				return "", err
			}
			return j.String(), nil
		}),
		fn2(FnJSONBEq, "jsonb_eq", func(a, b datum.Datum) (datum.Datum, error) {
			x, err := JSONBOf(a)
			if err != nil {
				return datum.Null, err
			}
			y, err := JSONBOf(b)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromBool(datum.JSONEqual(x.V, y.V)), nil
		}),
		fn1(FnJSONBHash, "jsonb_hash", func(d datum.Datum) (datum.Datum, error) {
			j, err := JSONBOf(d)
			if err != nil {
				return datum.Null, err
			}
			return hashResult(Hash32([]byte(j.String()))), nil
		}),
		{oid: FnJSONBObjectField, name: "jsonb_object_field", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			j, err := JSONBOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			key, err := fc.ArgText(1)
			if err != nil {
				return datum.Null, err
			}
			v, ok := jsonbField(j.V, key)
			if !ok {
				return fc.ReturnNull()
			}
			return JSONB(v), nil
		}},
		{oid: FnJSONBArrayElem, name: "jsonb_array_element", nargs: 2, strict: true, fn: func(fc *fmgr.CallInfo) (datum.Datum, error) {
			j, err := JSONBOf(fc.Arg(0))
			if err != nil {
				return datum.Null, err
			}
			v, ok := jsonbElem(j.V, int(fc.Arg(1).Int32()))
			if !ok {
				return fc.ReturnNull()
			}
			return JSONB(v), nil
		}},
		fn1(FnJSONBTypeof, "jsonb_typeof", func(d datum.Datum) (datum.Datum, error) {
			j, err := JSONBOf(d)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromText(datum.JSONKind(j.V)), nil
		}),
		input(FnJSONPathIn, "jsonpath_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			p, err := jsonpath.Parse(s)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromRef(p), nil
		}),
		output(FnJSONPathOut, "jsonpath_out", func(d datum.Datum) (string, error) {
			p, err := PathOf(d)
			if err != nil {
				return "", err
			}
			return p.String(), nil
		}),
	}
}

func jsonbField(v any, key string) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	f, ok := obj[key]
	return f, ok
}

func jsonbElem(v any, i int) (any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	if i < 0 {
		i += len(arr)
	}
	if i < 0 || i >= len(arr) {
		return nil, false
	}
	return arr[i], true
}
