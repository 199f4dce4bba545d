// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package resource

import "github.com/samber/oops"

// CodeInvalidBuilder is returned when a builder cannot be registered.
const CodeInvalidBuilder = "INVALID_BUILDER"

// ErrInvalidBuilder creates an error for a nil or anonymous builder.
func ErrInvalidBuilder(reason string) error {
	return oops.Code(CodeInvalidBuilder).Errorf("invalid resource builder: %s", reason)
}
