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

package fmgr

import (
	"sync"
	"time"

	"github.com/lib/pq/oid"
)

// FuncUsage accumulates statistics for one function.
type FuncUsage struct {
	Calls int64
	Total time.Duration
}

// UsageStats collects per-function call counts
// and time for functions marked Track.
type UsageStats struct {
	mu sync.Mutex
	m  map[oid.Oid]*FuncUsage
}

// Stats is the process-wide collector.
var Stats = NewUsageStats()

// NewUsageStats returns an empty collector.
func NewUsageStats() *UsageStats {
	return &UsageStats{m: make(map[oid.Oid]*FuncUsage)}
}

// Usage is an in-flight measurement.
type Usage struct {
	fn    oid.Oid
	start time.Time
}

// Start begins measuring a call of fi.
func (u *UsageStats) Start(fi *Info) Usage {
	return Usage{fn: fi.OID, start: time.Now()}
}

// End finishes a measurement started with Start.
func (u *UsageStats) End(us Usage) {
	d := time.Since(us.start)
	u.mu.Lock()
	fu := u.m[us.fn]
	if fu == nil {
		fu = new(FuncUsage)
		u.m[us.fn] = fu
	}
	fu.Calls++
	fu.Total += d
	u.mu.Unlock()
}

// Lookup returns a snapshot of the statistics for fn.
func (u *UsageStats) Lookup(fn oid.Oid) FuncUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	if fu := u.m[fn]; fu != nil {
		return *fu
	}
	return FuncUsage{}
}

// Reset clears all statistics.
func (u *UsageStats) Reset() {
	u.mu.Lock()
	u.m = make(map[oid.Oid]*FuncUsage)
	u.mu.Unlock()
}
