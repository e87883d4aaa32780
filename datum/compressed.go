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

package datum

import (
	"fmt"

	"github.com/postgres/postgres-sub049/compr"
)

// Compressed is a variable-length value held in
// compressed form. Functions receive it like any
// other text or bytea value and restore it with
// TextOf, BytesOf or Detoast.
type Compressed struct {
	Method  compr.Method
	Data    []byte
	RawSize int
	Binary  bool // bytea rather than text
}

func (c *Compressed) String() string {
	return fmt.Sprintf("compressed[%s %d->%d]", c.Method, c.RawSize, len(c.Data))
}

// Decompress returns the flat value.
func (c *Compressed) Decompress() (Datum, error) {
	raw, err := compr.Decompress(c.Method, c.Data, c.RawSize)
	if err != nil {
		return Null, err
	}
	if c.Binary {
		return FromBytes(raw), nil
	}
	return FromText(string(raw)), nil
}

// Compress returns a compressed form of a text or
// bytea value, or d itself when it is not a
// variable-length value or does not compress well.
func Compress(d Datum, m compr.Method) Datum {
	var raw []byte
	binary := false
	switch r := d.ref.(type) {
	case string:
		raw = []byte(r)
	case []byte:
		raw, binary = r, true
	default:
		return d
	}
	out, ok := compr.Compress(m, raw)
	if !ok {
		return d
	}
	return Datum{ref: &Compressed{Method: m, Data: out, RawSize: len(raw), Binary: binary}}
}

// IsCompressed reports whether d is compressed.
func IsCompressed(d Datum) bool {
	_, ok := d.ref.(*Compressed)
	return ok
}

// Detoast returns the flat form of d.
func Detoast(d Datum) (Datum, error) {
	if c, ok := d.ref.(*Compressed); ok {
		return c.Decompress()
	}
	return d, nil
}
