// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admission

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"
)

// CodeInvalidPolicy is returned for policy text that does not parse or
// validate.
const CodeInvalidPolicy = "INVALID_POLICY"

var parser *participle.Parser[File]

func init() {
	var err error
	parser, err = newParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build admission policy parser: %v", err))
	}
}

// Parse parses policy text into its statements.
func Parse(text string) (*File, error) {
	file, err := parser.ParseString("", text)
	if err != nil {
		return nil, oops.Code(CodeInvalidPolicy).Wrapf(err, "parsing admission policy")
	}
	for _, p := range file.Policies {
		if err := validatePolicy(p); err != nil {
			return nil, err
		}
	}
	return file, nil
}

func validatePolicy(p *Policy) error {
	for _, c := range p.Conditions {
		switch c.Operator {
		case "==", "!=":
			if c.Operand.Single == nil {
				return oops.Code(CodeInvalidPolicy).
					With("line", c.Pos.Line).
					With("column", c.Pos.Column).
					Errorf("operator %q takes a single string, not a list", c.Operator)
			}
		case "in":
			if c.Operand.Single != nil {
				return oops.Code(CodeInvalidPolicy).
					With("line", c.Pos.Line).
					With("column", c.Pos.Column).
					Errorf("operator \"in\" takes a list")
			}
		}
	}
	return nil
}
