// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package compr implements the compression methods
// available for variable-length ("varlena") values
// that are stored out of their flat representation.
package compr

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Method identifies a compression method.
// The zero Method means "not compressed".
type Method uint8

const (
	MethodNone Method = iota
	MethodS2
	MethodZstd
)

// MinInputSize is the smallest input
// for which compression is attempted.
const MinInputSize = 32

// minSavings is the fraction (in percent) of
// the input that compression has to save for
// the compressed form to be kept.
const minSavings = 25

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodS2:
		return "s2"
	case MethodZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// MethodByName selects a method by name.
// The name of each method is the value of
// Method.String.
func MethodByName(name string) (Method, bool) {
	switch name {
	case "s2":
		return MethodS2, true
	case "zstd", "default":
		return MethodZstd, true
	case "none", "":
		return MethodNone, true
	default:
		return MethodNone, false
	}
}

// Compressor describes the interface
// a compression method implements.
type Compressor interface {
	// Name is the name of the compression algorithm.
	Name() string
	// Compress should append the compressed contents
	// of src to dst and return the result.
	Compress(src, dst []byte) []byte
}

// Decompressor is the inverse of Compressor.
type Decompressor interface {
	// Name is the name of the compression algorithm.
	// See also Compressor.Name.
	Name() string
	// Decompress decompresses source data
	// into dst. It should error out if
	// dst does not exactly fit the decoded
	// source data.
	//
	// It must be safe to make multiple
	// calls to Decompress simultaneously
	// from different goroutines.
	Decompress(src, dst []byte) error
}

type zstdCompressor struct {
	enc *zstd.Encoder
}

func (z zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

func (z zstdCompressor) Name() string { return "zstd" }

var (
	zstdDecoder *zstd.Decoder
	zstdEncoder *zstd.Encoder
)

func init() {
	z, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = z
	// EncodeAll on a single encoder is safe
	// for concurrent use
	e, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(err)
	}
	zstdEncoder = e
}

type zstdDecompressor zstd.Decoder

func (z *zstdDecompressor) Name() string { return "zstd" }

func (z *zstdDecompressor) Decompress(src, dst []byte) error {
	into := dst[:0:len(dst)]
	ret, err := (*zstd.Decoder)(z).DecodeAll(src, into)
	if err != nil {
		return err
	}
	if len(ret) != len(dst) {
		return fmt.Errorf("compr: expected %d bytes decompressed; got %d", len(dst), len(ret))
	}
	return nil
}

type s2Compressor struct{}

func (s2Compressor) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (s2Compressor) Decompress(src, dst []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return fmt.Errorf("compr: expected %d bytes decompressed; got %d", len(dst), n)
	}
	_, err = s2.Decode(dst, src)
	return err
}

func (s2Compressor) Name() string { return "s2" }

// Compression returns the Compressor for m,
// or nil for MethodNone.
func Compression(m Method) Compressor {
	switch m {
	case MethodZstd:
		return zstdCompressor{zstdEncoder}
	case MethodS2:
		return s2Compressor{}
	default:
		return nil
	}
}

// Decompression returns the Decompressor for m,
// or nil for MethodNone.
func Decompression(m Method) Decompressor {
	switch m {
	case MethodZstd:
		return (*zstdDecompressor)(zstdDecoder)
	case MethodS2:
		return s2Compressor{}
	default:
		return nil
	}
}

// Compress compresses src with m. It returns
// false when src is too small or compression
// does not save enough space to be worthwhile;
// the caller should then keep src as-is.
func Compress(m Method, src []byte) ([]byte, bool) {
	c := Compression(m)
	if c == nil || len(src) < MinInputSize {
		return nil, false
	}
	out := c.Compress(src, nil)
	if len(out)*100 > len(src)*(100-minSavings) {
		return nil, false
	}
	return out, true
}

// Decompress restores the rawsize bytes that
// were compressed into src with m.
func Decompress(m Method, src []byte, rawsize int) ([]byte, error) {
	d := Decompression(m)
	if d == nil {
		return nil, fmt.Errorf("compr: no decompressor for %s", m)
	}
	dst := make([]byte, rawsize)
	if err := d.Decompress(src, dst); err != nil {
		return nil, fmt.Errorf("compr: %s: %w", m, err)
	}
	return dst, nil
}
