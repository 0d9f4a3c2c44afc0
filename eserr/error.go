/*
 * MIT License
 *
 * Copyright (c) 2021 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package eserr

import (
	"errors"
	"fmt"
)

// Error is the module's error interface: the errors this client raises
// implement it, except context cancellation and deadline errors from
// cluster discovery, which are returned unchanged. Code lets a caller branch on category; Unwrap preserves
// the original cause (a *status.Status from grpc, another Error, or a
// plain error) for errors.Is/errors.As.
type Error interface {
	error
	Code() Code
	Unwrap() error
}

type ers struct {
	code   Code
	msg    string
	cause  error
}

// New builds an Error with the given code and message, optionally wrapping
// a cause. A nil cause is fine: Unwrap() will return nil.
func New(code Code, msg string, cause error) Error {
	return &ers{code: code, msg: msg, cause: cause}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, cause error, format string, args ...any) Error {
	return &ers{code: code, msg: fmt.Sprintf(format, args...), cause: cause}
}

func (e *ers) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *ers) Code() Code   { return e.code }
func (e *ers) Unwrap() error { return e.cause }

// Is reports whether err (or any error in its Unwrap chain) is an Error
// with exactly the given Code.
func Is(err error, code Code) bool {
	var e Error
	for errors.As(err, &e) {
		if e.Code() == code {
			return true
		}
		next := e.Unwrap()
		if next == nil {
			return false
		}
		err = next
		e = nil
	}
	return false
}

// HasCode is an alias of Is kept for readability at call sites that branch
// on category rather than compare against a sentinel.
func HasCode(err error, code Code) bool { return Is(err, code) }

// CodeOf extracts the Code carried by err, or CodeUnknown if err is nil or
// does not implement Error.
func CodeOf(err error) Code {
	var e Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return CodeUnknown
}
