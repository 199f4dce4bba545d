// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package admission

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// policyLexer splits policy text into tokens. Multi-character operators
// get their own rules so they are not split into single characters.
var policyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "OpEq", Pattern: `==`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpAnd", Pattern: `&&`},
	{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
	{Name: "Punct", Pattern: `[\[\],;]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// File is a sequence of policy statements.
type File struct {
	Policies []*Policy `parser:"@@*"`
}

// Policy is one statement.
//
// Grammar: effect [ "when" condition { "&&" condition } ] ";"
type Policy struct {
	Pos        lexer.Position `parser:""`
	Effect     string         `parser:"@('permit' | 'forbid')"`
	Conditions []*Condition   `parser:"('when' @@ ('&&' @@)*)?"`
	Semi       string         `parser:"';'"`
}

// Condition compares an event attribute with one literal or a list.
type Condition struct {
	Pos       lexer.Position `parser:""`
	Attribute string         `parser:"@('type' | 'source' | 'descriptor')"`
	Operator  string         `parser:"@('==' | '!=' | 'in')"`
	Operand   *Operand       `parser:"@@"`
}

// Operand is either a single string literal or a bracketed list.
type Operand struct {
	Single *string  `parser:"  @String"`
	List   []string `parser:"| '[' (@String (',' @String)*)? ']'"`
}

// newParser constructs the participle parser for policy files.
func newParser() (*participle.Parser[File], error) {
	return participle.Build[File](
		participle.Lexer(policyLexer),
		participle.Unquote("String"),
	)
}
