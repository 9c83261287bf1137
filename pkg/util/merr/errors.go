// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// IO related
	ErrIoKeyNotFound = newZeusError("key not found", 1000, false)
	ErrIoFailed      = newZeusError("IO failed", 1001, false)
	ErrIoUnexpectEOF = newZeusError("unexpected EOF", 1002, true)

	// Parameter related
	ErrParameterInvalid  = newZeusError("invalid parameter", 1100, false)
	ErrParameterMissing  = newZeusError("missing parameter", 1101, false)
	ErrParameterTooLarge = newZeusError("parameter too large", 1102, false)

	// Metrics related
	ErrMetricNotFound = newZeusError("metric not found", 1200, false)

	// Save data encoding related
	ErrSaveEncodeFunc    = newZeusError("function and method values cannot be encoded", 2000, false, WithErrorType(InputError))
	ErrSaveCycleDetected = newZeusError("cycle detected in object graph", 2001, false, WithErrorType(InputError))
	ErrSaveDepthExceeded = newZeusError("object graph exceeds max encode depth", 2002, false, WithErrorType(InputError))
	ErrSaveKeyUnhashable = newZeusError("decoded dict key is not hashable", 2003, false)

	// Save data decoding related
	ErrSaveDecodeFunc       = newZeusError("function and method records cannot be decoded", 2100, false)
	ErrSaveTypeUnrecognized = newZeusError("unrecognised type tag", 2101, false)
	ErrSaveDirectiveInvalid = newZeusError("invalid directive", 2102, false)

	// Save file format related
	ErrSaveFormatMalformed   = newZeusError("malformed save data", 2200, false)
	ErrSaveLeafInvalid       = newZeusError("leaf text not writable as a single line", 2201, false)
	ErrSaveLeafEscapeInvalid = newZeusError("invalid escape sequence in leaf text", 2202, false)

	// General
	ErrOperationNotSupported = newZeusError("unsupported operation", 3000, false)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to zeusError
	errUnexpected = newZeusError("unexpected error", (1<<16)-1, false)
)

type errorOption func(*zeusError)

func WithDetail(detail string) errorOption {
	return func(err *zeusError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *zeusError) {
		err.errType = etype
	}
}

type zeusError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newZeusError(msg string, code int32, retriable bool, options ...errorOption) zeusError {
	err := zeusError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e zeusError) code() int32 {
	return e.errCode
}

func (e zeusError) Error() string {
	return e.msg
}

func (e zeusError) Detail() string {
	return e.detail
}

func (e zeusError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(zeusError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
