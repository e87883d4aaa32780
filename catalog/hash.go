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

	"github.com/dchest/siphash"
	"golang.org/x/crypto/blake2b"

	"github.com/postgres/postgres-sub049/datum"
)

// fixed keys so that hash values are stable
// across processes
const (
	hashK0 = 0x5f1e7a3d9c2b4086
	hashK1 = 0x0d8c6b2a41f39e57
)

// Hash32 returns the 32-bit hash of buf used
// by every builtin hash function.
func Hash32(buf []byte) uint32 {
	h := siphash.Hash(hashK0, hashK1, buf)
	return uint32(h) ^ uint32(h>>32)
}

// Hash64 returns the seeded 64-bit hash of buf
// used by the extended hash functions.
func Hash64(buf []byte, seed uint64) uint64 {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	h, err := blake2b.New(8, key[:])
	if err != nil {
		panic(err)
	}
	h.Write(buf)
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// integers of every width hash alike so that
// cross-type equality implies equal hashes
func hashInt(v int64) uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return Hash32(buf[:])
}

func hashResult(h uint32) datum.Datum { return datum.FromUint32(h) }

func hashIntDatum(d datum.Datum) (datum.Datum, error) {
	return hashResult(hashInt(d.Int64())), nil
}

func hashIntExtDatum(d, seed datum.Datum) (datum.Datum, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(d.Int64()))
	return datum.FromInt64(int64(Hash64(buf[:], uint64(seed.Int64())))), nil
}

// HashCombine mixes hash b into the running
// hash a.
func HashCombine(a, b uint32) uint32 {
	return a ^ (b + 0x9e3779b9 + (a << 6) + (a >> 2))
}
