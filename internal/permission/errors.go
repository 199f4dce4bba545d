// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package permission

import "github.com/samber/oops"

// Error codes for permission checks.
const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeResourceConflict = "RESOURCE_CONFLICT"
	CodeInvalidGrant     = "INVALID_GRANT"
)

// ErrPermissionDenied creates an error for a missing grant.
func ErrPermissionDenied(permission, addon string) error {
	return oops.Code(CodePermissionDenied).
		With("permission", permission).
		With("addon", addon).
		Errorf("add-on %q lacks permission %q", addon, permission)
}

// ErrResourceConflict creates an error for a resource held by another add-on.
func ErrResourceConflict(resource, holder, requester string) error {
	return oops.Code(CodeResourceConflict).
		With("resource", resource).
		With("holder", holder).
		With("addon", requester).
		Errorf("resource %q is held by %q", resource, holder)
}
