// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package admission builds event admission controllers from a small policy
// language.
//
//	# drop debug events from the clock
//	forbid when source == "clock" && descriptor == "debug";
//	permit when type in ["clock.tick", "speech.request"];
//	forbid;
//
// Statements are checked in order and the first one whose conditions all
// hold decides. An event that matches no statement is admitted.
package admission

import (
	"context"
	"log/slog"
	"slices"

	"github.com/samber/oops"

	"github.com/holomush/izou/internal/core"
)

// ControllerID is the ID the policy controller registers under.
const ControllerID = "izou.admission.policy"

// Controller admits or vetoes events according to compiled policies.
// It is immutable and safe for concurrent use.
type Controller struct {
	rules []rule
}

type rule struct {
	permit     bool
	conditions []condition
	line       int
}

type condition struct {
	attribute string
	operator  string
	values    []string
}

// Compile parses and combines the policy texts in order.
func Compile(texts []string) (*Controller, error) {
	c := &Controller{}
	for i, text := range texts {
		file, err := Parse(text)
		if err != nil {
			return nil, oops.With("policy_index", i).Wrap(err)
		}
		for _, p := range file.Policies {
			c.rules = append(c.rules, compileRule(p))
		}
	}
	return c, nil
}

func compileRule(p *Policy) rule {
	r := rule{permit: p.Effect == "permit", line: p.Pos.Line}
	for _, cond := range p.Conditions {
		values := cond.Operand.List
		if cond.Operand.Single != nil {
			values = []string{*cond.Operand.Single}
		}
		r.conditions = append(r.conditions, condition{
			attribute: cond.Attribute,
			operator:  cond.Operator,
			values:    values,
		})
	}
	return r
}

// ID implements distributor.Controller.
func (c *Controller) ID() string {
	return ControllerID
}

// Rules returns the number of compiled statements.
func (c *Controller) Rules() int {
	return len(c.rules)
}

// ControlEventDispatcher implements distributor.Controller.
func (c *Controller) ControlEventDispatcher(ctx context.Context, event *core.Event) bool {
	for _, r := range c.rules {
		if !r.matches(event) {
			continue
		}
		if !r.permit {
			slog.DebugContext(ctx, "event forbidden by admission policy",
				"event_id", event.ID().String(),
				"event_type", event.Type(),
				"line", r.line)
		}
		return r.permit
	}
	return true
}

func (r rule) matches(event *core.Event) bool {
	for _, cond := range r.conditions {
		if !cond.matches(event) {
			return false
		}
	}
	return true
}

func (c condition) matches(event *core.Event) bool {
	if c.attribute == "descriptor" {
		descriptors := event.Descriptors()
		anyIn := slices.ContainsFunc(descriptors, func(d string) bool {
			return slices.Contains(c.values, d)
		})
		if c.operator == "!=" {
			return !anyIn
		}
		return anyIn
	}

	var value string
	switch c.attribute {
	case "type":
		value = event.Type()
	case "source":
		value = event.Source().ID()
	}
	contains := slices.Contains(c.values, value)
	if c.operator == "!=" {
		return !contains
	}
	return contains
}
