// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import "github.com/samber/oops"

// CodePanic marks errors produced from a recovered panic.
const CodePanic = "PANIC"

// Recover runs fn and converts a panic into an error with CodePanic and the
// given context key/values. Errors returned by fn pass through unchanged.
func Recover(fn func() error, kv ...any) (err error) {
	var inner error
	recovered := oops.Code(CodePanic).With(kv...).Recover(func() {
		inner = fn()
	})
	if recovered != nil {
		return recovered
	}
	return inner
}
