// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/izou/internal/admission"
	"github.com/holomush/izou/pkg/errutil"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		policies   int
		conditions []int
	}{
		{"empty", "", 0, nil},
		{"bare permit", "permit;", 1, []int{0}},
		{"single condition", `forbid when type == "debug";`, 1, []int{1}},
		{"conjunction", `forbid when source == "clock" && descriptor != "urgent";`, 1, []int{2}},
		{"list", `permit when type in ["a", "b"];`, 1, []int{1}},
		{"empty list", `permit when type in [];`, 1, []int{1}},
		{
			"several with comments",
			"# first\npermit when type == \"a\";\n# second\nforbid;",
			2, []int{1, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := admission.Parse(tt.input)
			require.NoError(t, err)
			require.Len(t, file.Policies, tt.policies)
			for i, n := range tt.conditions {
				assert.Len(t, file.Policies[i].Conditions, n)
			}
		})
	}
}

func TestParse_Operands(t *testing.T) {
	file, err := admission.Parse(`permit when type == "clock.tick" && descriptor in ["a", "b"];`)
	require.NoError(t, err)

	conds := file.Policies[0].Conditions
	require.Len(t, conds, 2)
	require.NotNil(t, conds[0].Operand.Single)
	assert.Equal(t, "clock.tick", *conds[0].Operand.Single)
	assert.Equal(t, "type", conds[0].Attribute)
	assert.Equal(t, "==", conds[0].Operator)
	assert.Equal(t, []string{"a", "b"}, conds[1].Operand.List)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing semicolon", "permit"},
		{"unknown effect", "allow;"},
		{"unknown attribute", `permit when color == "red";`},
		{"equality with list", `permit when type == ["a"];`},
		{"in with single", `permit when type in "a";`},
		{"dangling and", `permit when type == "a" &&;`},
		{"unterminated list", `permit when type in ["a";`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := admission.Parse(tt.input)
			errutil.AssertErrorCode(t, err, admission.CodeInvalidPolicy)
		})
	}
}
