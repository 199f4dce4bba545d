// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package host

import "github.com/samber/oops"

// Error codes for runtime operations.
const (
	CodeInvalidAddOn   = "INVALID_ADDON"
	CodeAddOnInit      = "ADDON_INIT_FAILED"
	CodeAlreadyStarted = "RUNTIME_ALREADY_STARTED"
	CodeDuplicateAddOn = "DUPLICATE_ADDON"
)

func errInvalidAddOn(reason string) error {
	return oops.Code(CodeInvalidAddOn).Errorf("invalid add-on: %s", reason)
}
