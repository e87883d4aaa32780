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
	"os"
	"strings"

	"golang.org/x/sys/cpu"
)

// DispatchLevel describes how programs are executed.
type DispatchLevel uint32

const (
	// Loop over the opcode table.
	DispatchTable DispatchLevel = iota

	// Call the handler stored in each step.
	DispatchThreaded

	// Run programs lowered to closures.
	DispatchJIT
)

const dispatchEnvVar = "PGEXPR_DISPATCH"

var dispatchNames = map[string]DispatchLevel{
	"table":    DispatchTable,
	"threaded": DispatchThreaded,
	"jit":      DispatchJIT,
}

var globalDispatchLevel = DetectDispatchLevel()

// dispatchLevelFromCPUFeatures returns the highest
// level the CPU is expected to run well. The JIT
// relies on fast indirect calls, which the older
// cores without AVX2 (or ASIMD on arm64) lack.
func dispatchLevelFromCPUFeatures() DispatchLevel {
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		return DispatchJIT
	}
	return DispatchThreaded
}

// DetectDispatchLevel detects the dispatch level
// from the CPU and the PGEXPR_DISPATCH environment
// variable, which can only lower it.
func DetectDispatchLevel() DispatchLevel {
	val, _ := os.LookupEnv(dispatchEnvVar)
	detected := dispatchLevelFromCPUFeatures()
	envLevel := detected

	switch strings.ToLower(val) {
	default:
	case "": // do nothing
		return detected

	case "table", "none":
		envLevel = DispatchTable

	case "threaded":
		envLevel = DispatchThreaded

	case "jit":
		envLevel = DispatchJIT
	}

	if envLevel <= detected {
		return envLevel
	}
	return detected
}

// GetDispatchLevel returns the level used
// by configurations with dispatch "auto".
func GetDispatchLevel() DispatchLevel {
	return globalDispatchLevel
}

// SetDispatchLevel sets the level used by
// configurations with dispatch "auto".
//
// NOTE: This function is not thread safe and can
// only be used at startup time or during testing.
func SetDispatchLevel(l DispatchLevel) {
	globalDispatchLevel = l
}

func (l DispatchLevel) String() string {
	switch l {
	case DispatchTable:
		return "table"
	case DispatchThreaded:
		return "threaded"
	case DispatchJIT:
		return "jit"
	}
	return "unknown"
}
