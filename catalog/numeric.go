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
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

var (
	numericAddCtx = apd.BaseContext.WithPrecision(1000)
	numericDivCtx = apd.BaseContext.WithPrecision(20)
)

// NumericOf returns the decimal held by d.
func NumericOf(d datum.Datum) (*apd.Decimal, error) {
	n, ok := d.Ref().(*apd.Decimal)
	if !ok {
		return nil, fmt.Errorf("catalog: %T is not a numeric value", d.Ref())
	}
	return n, nil
}

// Numeric parses s into a numeric datum.
func Numeric(s string) (datum.Datum, error) {
	n, _, err := apd.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return datum.Null, badInput("numeric", s)
	}
	return datum.FromRef(n), nil
}

// numericCmp orders NaN above every other value.
func numericCmp(a, b *apd.Decimal) int {
	an, bn := a.Form == apd.NaN, b.Form == apd.NaN
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return a.Cmp(b)
}

func numericOp(f func(a, b *apd.Decimal) (datum.Datum, error)) fmgr.Inline2 {
	return func(x, y datum.Datum) (datum.Datum, error) {
		a, err := NumericOf(x)
		if err != nil {
			return datum.Null, err
		}
		b, err := NumericOf(y)
		if err != nil {
			return datum.Null, err
		}
		return f(a, b)
	}
}

func uuidOf(d datum.Datum) (uuid.UUID, error) {
	u, ok := d.Ref().(uuid.UUID)
	if !ok {
		return uuid.UUID{}, fmt.Errorf("catalog: %T is not a uuid value", d.Ref())
	}
	return u, nil
}

func uuidOp(f func(a, b uuid.UUID) datum.Datum) fmgr.Inline2 {
	return func(x, y datum.Datum) (datum.Datum, error) {
		a, err := uuidOf(x)
		if err != nil {
			return datum.Null, err
		}
		b, err := uuidOf(y)
		if err != nil {
			return datum.Null, err
		}
		return f(a, b), nil
	}
}

// ParsePoint parses "(x,y)" or "x,y".
func ParsePoint(s string) (*datum.Point, error) {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		t = t[1 : len(t)-1]
	}
	xs, ys, ok := strings.Cut(t, ",")
	if !ok {
		return nil, badInput("point", s)
	}
	x, err1 := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	y, err2 := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err1 != nil || err2 != nil {
		return nil, badInput("point", s)
	}
	return &datum.Point{X: x, Y: y}, nil
}

func numericBuiltins() []builtin {
	return []builtin{
		input(FnNumericIn, "numeric_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			return Numeric(s)
		}),
		output(FnNumericOut, "numeric_out", func(d datum.Datum) (string, error) {
			n, err := NumericOf(d)
			if err != nil {
				return "", err
			}
			if n.Form == apd.NaN {
				return "NaN", nil
			}
			return n.Text('f'), nil
		}),
		fn2(FnNumericEq, "numeric_eq", numericOp(func(a, b *apd.Decimal) (datum.Datum, error) {
			return datum.FromBool(numericCmp(a, b) == 0), nil
		})),
		fn2(FnNumericLt, "numeric_lt", numericOp(func(a, b *apd.Decimal) (datum.Datum, error) {
			return datum.FromBool(numericCmp(a, b) < 0), nil
		})),
		fn2(FnNumericCmp, "numeric_cmp", numericOp(func(a, b *apd.Decimal) (datum.Datum, error) {
			return cmpResult(numericCmp(a, b))
		})),
		fn2(FnNumericAdd, "numeric_add", numericOp(func(a, b *apd.Decimal) (datum.Datum, error) {
			r := new(apd.Decimal)
			if _, err := numericAddCtx.Add(r, a, b); err != nil {
				return datum.Null, pgerr.Wrapf(err, pgerr.CodeNumericOutOfRange, "numeric overflow")
			}
			return datum.FromRef(r), nil
		})),
		fn2(FnNumericDiv, "numeric_div", numericOp(func(a, b *apd.Decimal) (datum.Datum, error) {
			if b.IsZero() {
				return datum.Null, errDivByZero()
			}
			r := new(apd.Decimal)
			if _, err := numericDivCtx.Quo(r, a, b); err != nil {
				return datum.Null, pgerr.Wrapf(err, pgerr.CodeNumericOutOfRange, "numeric overflow")
			}
			return datum.FromRef(r), nil
		})),
		fn1(FnHashNumeric, "hash_numeric", func(d datum.Datum) (datum.Datum, error) {
			n, err := NumericOf(d)
			if err != nil {
				return datum.Null, err
			}
			// equal values with different scales
			// must hash alike
			var r apd.Decimal
			r.Reduce(n)
			if r.IsZero() {
				r.Negative = false
			}
			return hashResult(Hash32([]byte(r.String()))), nil
		}),

		input(FnUUIDIn, "uuid_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			u, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return datum.Null, badInput("uuid", s)
			}
			return datum.FromRef(u), nil
		}),
		output(FnUUIDOut, "uuid_out", func(d datum.Datum) (string, error) {
			u, err := uuidOf(d)
			if err != nil {
				return "", err
			}
			return u.String(), nil
		}),
		fn2(FnUUIDEq, "uuid_eq", uuidOp(func(a, b uuid.UUID) datum.Datum { return datum.FromBool(a == b) })),
		fn2(FnUUIDCmp, "uuid_cmp", uuidOp(func(a, b uuid.UUID) datum.Datum {
			return datum.FromInt32(int32(bytes.Compare(a[:], b[:])))
		})),
		fn1(FnUUIDHash, "uuid_hash", func(d datum.Datum) (datum.Datum, error) {
			u, err := uuidOf(d)
			if err != nil {
				return datum.Null, err
			}
			return hashResult(Hash32(u[:])), nil
		}),

		input(FnPointIn, "point_in", func(_ *fmgr.CallInfo, s string) (datum.Datum, error) {
			p, err := ParsePoint(s)
			if err != nil {
				return datum.Null, err
			}
			return datum.FromRef(p), nil
		}),
		output(FnPointOut, "point_out", func(d datum.Datum) (string, error) {
			p, ok := d.Ref().(*datum.Point)
			if !ok {
				return "", fmt.Errorf("catalog: %T is not a point value", d.Ref())
			}
			return p.String(), nil
		}),
	}
}
