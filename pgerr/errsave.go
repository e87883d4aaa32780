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

package pgerr

// ErrorSaveContext diverts would-be fatal errors
// into data. A nil *ErrorSaveContext means errors
// are raised normally.
type ErrorSaveContext struct {
	// Details requests that the saved error be kept;
	// otherwise only the fact that an error happened
	// is recorded.
	Details bool

	occurred bool
	err      error
}

// Save records err in es and returns nil, or
// returns err unchanged when es is nil.
// Engine invariant failures are never saved.
func Save(es *ErrorSaveContext, err error) error {
	if es == nil || err == nil || IsInvariant(err) {
		return err
	}
	es.occurred = true
	if es.Details || es.err == nil {
		es.err = err
	}
	return nil
}

// HasError reports whether an error was saved.
func (es *ErrorSaveContext) HasError() bool {
	return es != nil && es.occurred
}

// Err returns the saved error, if any.
func (es *ErrorSaveContext) Err() error {
	if es == nil {
		return nil
	}
	return es.err
}

// Reset forgets any saved error.
func (es *ErrorSaveContext) Reset() {
	if es != nil {
		es.occurred = false
		es.err = nil
	}
}
