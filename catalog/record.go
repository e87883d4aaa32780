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
	"strings"

	"github.com/lib/pq/oid"

	"github.com/postgres/postgres-sub049/datum"
	"github.com/postgres/postgres-sub049/fmgr"
	"github.com/postgres/postgres-sub049/pgerr"
)

func malformedRecord(s, detail string) error {
	return pgerr.Newf(pgerr.CodeInvalidTextRep, "malformed record literal: %q (%s)", s, detail)
}

// splitRecord splits "(a,b,...)" into fields;
// an empty unquoted field is null.
func splitRecord(s string) ([]string, []bool, error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "(") {
		return nil, nil, malformedRecord(s, "missing left parenthesis")
	}
	var fields []string
	var nulls []bool
	pos := 1
	for {
		var sb strings.Builder
		quoted := false
		for pos < len(t) && t[pos] != ',' && t[pos] != ')' {
			c := t[pos]
			pos++
			switch {
			case c == '"':
				quoted = true
				for pos < len(t) {
					c = t[pos]
					pos++
					if c == '"' {
						if pos < len(t) && t[pos] == '"' {
							sb.WriteByte('"')
							pos++
							continue
						}
						break
					}
					if c == '\\' && pos < len(t) {
						c = t[pos]
						pos++
					}
					sb.WriteByte(c)
				}
			case c == '\\' && pos < len(t):
				sb.WriteByte(t[pos])
				pos++
			default:
				sb.WriteByte(c)
			}
		}
		if pos >= len(t) {
			return nil, nil, malformedRecord(s, "unexpected end of input")
		}
		fields = append(fields, sb.String())
		nulls = append(nulls, !quoted && sb.Len() == 0)
		if t[pos] == ')' {
			pos++
			break
		}
		pos++
	}
	if pos != len(t) {
		return nil, nil, malformedRecord(s, "junk after right parenthesis")
	}
	return fields, nulls, nil
}

func quoteRecordField(s string) string {
	if s == "" || strings.ContainsAny(s, "(),\"\\ \t\n\r") {
		r := strings.NewReplacer(`"`, `""`, `\`, `\\`)
		return `"` + r.Replace(s) + `"`
	}
	return s
}

func (m *Memory) recordIn(fc *fmgr.CallInfo, s string) (datum.Datum, error) {
	typ := fc.Arg(1).Oid()
	if typ == oid.T_record {
		return datum.Null, pgerr.Newf(pgerr.CodeFeatureNotSupported, "input of anonymous composite types is not implemented")
	}
	desc, err := m.RowDesc(typ, fc.Arg(2).Int32())
	if err != nil {
		return datum.Null, err
	}
	fields, nulls, err := splitRecord(s)
	if err != nil {
		return datum.Null, err
	}
	vals := make([]datum.Datum, desc.NumAttrs())
	isnull := make([]bool, desc.NumAttrs())
	f := 0
	for i := range desc.Attrs {
		a := &desc.Attrs[i]
		if a.Dropped {
			isnull[i] = true
			continue
		}
		if f >= len(fields) {
			return datum.Null, malformedRecord(s, "too few columns")
		}
		if nulls[f] {
			isnull[i] = true
			f++
			continue
		}
		t, err := m.Type(a.Type)
		if err != nil {
			return datum.Null, err
		}
		in, err := m.Func(t.Input)
		if err != nil {
			return datum.Null, err
		}
		v, vnull, err := fmgr.Call(in, 0, datum.FromText(fields[f]), datum.FromOid(t.IOParam()), datum.FromInt32(a.TypMod))
		if err != nil {
			return datum.Null, err
		}
		vals[i], isnull[i] = v, vnull
		f++
	}
	if f != len(fields) {
		return datum.Null, malformedRecord(s, "too many columns")
	}
	return datum.FromRef(datum.NewRecord(typ, desc.TypMod, vals, isnull)), nil
}

func (m *Memory) recordOut(fc *fmgr.CallInfo) (datum.Datum, error) {
	r, err := datum.RecordOf(fc.Arg(0))
	if err != nil {
		return datum.Null, err
	}
	desc, err := m.RowDesc(r.TypeID, r.TypMod)
	if err != nil {
		return datum.Null, err
	}
	var sb strings.Builder
	sb.WriteByte('(')
	first := true
	for i := range desc.Attrs {
		a := &desc.Attrs[i]
		if a.Dropped {
			continue
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		v, isnull := r.Field(i)
		if isnull {
			continue
		}
		t, err := m.Type(a.Type)
		if err != nil {
			return datum.Null, err
		}
		out, err := m.Func(t.Output)
		if err != nil {
			return datum.Null, err
		}
		s, _, err := fmgr.Call(out, 0, v)
		if err != nil {
			return datum.Null, err
		}
		str, err := datum.TextOf(s)
		if err != nil {
			return datum.Null, err
		}
		sb.WriteString(quoteRecordField(str))
	}
	sb.WriteByte(')')
	return datum.FromText(sb.String()), nil
}

func (m *Memory) recordBuiltins() []builtin {
	return []builtin{
		input(FnRecordIn, "record_in", m.recordIn),
		{oid: FnRecordOut, name: "record_out", nargs: 1, strict: true, fn: m.recordOut},
	}
}
