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
	"bytes"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
)

// textOp lifts a function over two text
// values into the datum calling convention.
func textOp(f func(a, b string) datum.Datum) fmgr.Inline2 {
	return func(a, b datum.Datum) (datum.Datum, error) {
		x, err := datum.TextOf(a)
		if err != nil {
			return datum.Null, err
		}
		y, err := datum.TextOf(b)
		if err != nil {
			return datum.Null, err
		}
		return f(x, y), nil
	}
}

func textFn(f func(s string) datum.Datum) func(datum.Datum) (datum.Datum, error) {
	return func(d datum.Datum) (datum.Datum, error) {
		s, err := datum.TextOf(d)
		if err != nil {
			return datum.Null, err
		}
		return f(s), nil
	}
}

func textBuiltins() []builtin {
	return []builtin{
		input(FnTextIn, "textin", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			return datum.FromText(s), nil
		}),
		output(FnTextOut, "textout", datum.TextOf),
		fn2(FnTextEq, "texteq", textOp(func(a, b string) datum.Datum { return datum.FromBool(a == b) })),
		fn2(FnTextNe, "textne", textOp(func(a, b string) datum.Datum { return datum.FromBool(a != b) })),
		fn2(FnTextLt, "text_lt", textOp(func(a, b string) datum.Datum { return datum.FromBool(a < b) })),
		fn2(FnTextGt, "text_gt", textOp(func(a, b string) datum.Datum { return datum.FromBool(a > b) })),
		fn2(FnBtTextCmp, "bttextcmp", textOp(func(a, b string) datum.Datum {
			return datum.FromInt32(int32(strings.Compare(a, b)))
		})),
		fn2(FnTextCat, "textcat", textOp(func(a, b string) datum.Datum { return datum.FromText(a + b) })),
		fn2(FnTextLarger, "text_larger", textOp(func(a, b string) datum.Datum {
			if a >= b {
				return datum.FromText(a)
			}
			return datum.FromText(b)
		})),
		fn2(FnTextSmaller, "text_smaller", textOp(func(a, b string) datum.Datum {
			if a <= b {
				return datum.FromText(a)
			}
			return datum.FromText(b)
		})),
		fn1(FnTextLen, "length", textFn(func(s string) datum.Datum {
			return datum.FromInt32(int32(utf8.RuneCountInString(s)))
		})),
		fn1(FnUpper, "upper", textFn(func(s string) datum.Datum { return datum.FromText(strings.ToUpper(s)) })),
		fn1(FnLower, "lower", textFn(func(s string) datum.Datum { return datum.FromText(strings.ToLower(s)) })),
		fn1(FnHashText, "hashtext", textFn(func(s string) datum.Datum {
			return hashResult(Hash32([]byte(s)))
		})),
		fn2(FnHashTextExt, "hashtextextended", func(d, seed datum.Datum) (datum.Datum, error) {
			s, err := datum.TextOf(d)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromInt64(int64(Hash64([]byte(s), uint64(seed.Int64())))), nil
		}),

		input(FnByteaIn, "byteain", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			if strings.HasPrefix(s, `\x`) {
				b, err := hex.DecodeString(s[2:])
				if err != nil {
					return datum.Null, badInput("bytea", s)
				}
				return datum.FromBytes(b), nil
			}
			return datum.FromBytes([]byte(s)), nil
		}),
		output(FnByteaOut, "byteaout", func(d datum.Datum) (string, error) {
			b, err := datum.BytesOf(d)
			if err != nil {
				return "", err
			}
			return `\x` + hex.EncodeToString(b), nil
		}),
		fn2(FnByteaEq, "byteaeq", func(a, b datum.Datum) (datum.Datum, error) {
			x, err := datum.BytesOf(a)
			if err != nil {
				return datum.Null, err
			}
			y, err := datum.BytesOf(b)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromBool(bytes.Equal(x, y)), nil
		}),
		fn1(FnHashBytea, "hashvarlena", func(d datum.Datum) (datum.Datum, error) {
			b, err := datum.BytesOf(d)
			if err != nil {
				return datum.Null, err
			}
			return hashResult(Hash32(b)), nil
		}),
		fn2(FnHashByteaExt, "hashvarlenaextended", func(d, seed datum.Datum) (datum.Datum, error) {
			b, err := datum.BytesOf(d)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromInt64(int64(Hash64(b, uint64(seed.Int64())))), nil
		}),
	}
}
