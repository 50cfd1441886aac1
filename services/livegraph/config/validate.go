// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/AleutianAI/livegraph/services/livegraph/graph"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every validation and decoding failure.
var ErrInvalidConfig = errors.New("invalid config")

// configValidate is the validator instance for configuration structs.
// Initialized in init() with the ecosystem tag.
var configValidate *validator.Validate

var ecosystemPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// builtinEcosystems are the ecosystems with an in-process analyzer.
var builtinEcosystems = map[graph.Ecosystem]struct{}{
	graph.EcosystemTypeScript: {},
	graph.EcosystemJavaScript: {},
	graph.EcosystemPython:     {},
	graph.EcosystemGo:         {},
}

func init() {
	configValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = configValidate.RegisterValidation("ecosystem", validateEcosystem)

	// Report yaml field names so messages match the file.
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// validateEcosystem accepts lowercase identifiers such as "typescript" or
// "rust-cargo".
func validateEcosystem(fl validator.FieldLevel) bool {
	return ecosystemPattern.MatchString(fl.Field().String())
}

// Validate checks struct tags and cross-field rules.
//
// # Outputs
//
//   - error: Wraps ErrInvalidConfig, listing every failing field.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, describe(err))
	}

	var problems []string
	seen := make(map[string]struct{}, len(c.Analyzers))
	enabled := 0
	for i, a := range c.Analyzers {
		if _, dup := seen[a.Name]; dup {
			problems = append(problems, fmt.Sprintf("analyzers[%d].name: duplicate %q", i, a.Name))
		}
		seen[a.Name] = struct{}{}

		if a.Kind == KindBuiltin {
			if _, ok := builtinEcosystems[graph.Ecosystem(a.Ecosystem)]; !ok {
				problems = append(problems, fmt.Sprintf("analyzers[%d].ecosystem: no builtin analyzer for %q", i, a.Ecosystem))
			}
		}
		if !a.Disabled {
			enabled++
		}
	}
	if enabled == 0 {
		problems = append(problems, "analyzers: every analyzer is disabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := field + ": failed " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
