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

// Package pgerr attaches SQLSTATE codes to errors
// and implements "soft" error capture for
// evaluation modes that must not abort.
package pgerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// Code is a five-character SQLSTATE code.
type Code string

const (
	CodeInternal                Code = "XX000"
	CodeDivisionByZero          Code = "22012"
	CodeNotNullViolation        Code = "23502"
	CodeCheckViolation          Code = "23514"
	CodeInsufficientPriv        Code = "42501"
	CodeInvalidTextRep          Code = "22P02"
	CodeArraySubscript          Code = "2202E"
	CodeNullValueNotAllowed     Code = "22004"
	CodeDatatypeMismatch        Code = "42804"
	CodeFeatureNotSupported     Code = "0A000"
	CodeTooManyArguments        Code = "54023"
	CodeNumericOutOfRange       Code = "22003"
	CodeQueryCanceled           Code = "57014"
	CodeUndefinedFunction       Code = "42883"
	CodeUndefinedObject         Code = "42704"
	CodeInvalidParameter        Code = "22023"
	CodeCardinalityViolation    Code = "21000"
	CodeSQLJSONNoItem           Code = "22035"
	CodeSQLJSONMoreItems        Code = "22034"
	CodeSQLJSONScalar           Code = "2203F"
	CodeSQLJSONItemCannotBe     Code = "22036"
	CodeInvalidJSONText         Code = "22032"
	CodeDuplicateJSONKey        Code = "22030"
	CodeProgramLimitExceeded    Code = "54000"
	CodeSQLJSONMemberNotFound   Code = "2203A"
	CodeInvalidSQLJSONSubscript Code = "22033"
	CodeSQLJSONArrayNotFound    Code = "22039"
	CodeSQLJSONObjectNotFound   Code = "2203C"
	CodeSingletonSQLJSONItem    Code = "22038"
	CodeSyntaxError             Code = "42601"
	CodeDataException           Code = "22000"
)

// codeError decorates a cause with a SQLSTATE code.
type codeError struct {
	cause error
	code  Code
}

func (c *codeError) Error() string { return c.cause.Error() }
func (c *codeError) Cause() error  { return c.cause }
func (c *codeError) Unwrap() error { return c.cause }

// SafeFormatError implements errors.SafeFormatter.
func (c *codeError) SafeFormatError(p errors.Printer) (next error) {
	if p.Detail() {
		p.Printf("sqlstate %s", redact.Safe(string(c.code)))
	}
	return c.cause
}

func (c *codeError) Format(s fmt.State, verb rune) { errors.FormatError(c, s, verb) }

// WithCode attaches code to err. A nil err stays nil.
func WithCode(err error, code Code) error {
	if err == nil {
		return nil
	}
	return &codeError{cause: err, code: code}
}

// Newf creates an error carrying the given code.
// Arguments are redactable unless wrapped with redact.Safe.
func Newf(code Code, format string, args ...any) error {
	return &codeError{cause: errors.NewWithDepthf(1, format, args...), code: code}
}

// Wrapf wraps err with a message and a code.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &codeError{cause: errors.WrapWithDepthf(1, err, format, args...), code: code}
}

// GetCode returns the outermost code attached
// to err, CodeInternal for assertion failures
// and uncoded errors.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return CodeInternal
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// Invariant reports an internal engine bug.
func Invariant(format string, args ...any) error {
	return errors.AssertionFailedWithDepthf(1, format, args...)
}

// IsInvariant reports whether err is an engine
// invariant failure.
func IsInvariant(err error) bool {
	return errors.HasAssertionFailure(err)
}
