// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package schema

import (
	"fmt"
	"strings"
)

// Constraint names the schema keyword a value failed.
type Constraint string

const (
	ConstraintType                 Constraint = "type"
	ConstraintRequired             Constraint = "required"
	ConstraintEnum                 Constraint = "enum"
	ConstraintConst                Constraint = "const"
	ConstraintAdditionalProperties Constraint = "additionalProperties"
	ConstraintMinimum              Constraint = "minimum"
	ConstraintMaximum              Constraint = "maximum"
	ConstraintExclusiveMinimum     Constraint = "exclusiveMinimum"
	ConstraintExclusiveMaximum     Constraint = "exclusiveMaximum"
	ConstraintMinLength            Constraint = "minLength"
	ConstraintMaxLength            Constraint = "maxLength"
	ConstraintMinItems             Constraint = "minItems"
	ConstraintMaxItems             Constraint = "maxItems"
	ConstraintUniqueItems          Constraint = "uniqueItems"
	ConstraintMinProperties        Constraint = "minProperties"
	ConstraintMaxProperties        Constraint = "maxProperties"
	ConstraintMultipleOf           Constraint = "multipleOf"
	ConstraintPattern              Constraint = "pattern"
	ConstraintFalse                Constraint = "false"
)

// Path locates a value inside a record: object keys and array indices,
// outermost first.
type Path []string

// Pointer renders the path as an RFC 6901 JSON Pointer.
func (p Path) Pointer() string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, seg := range p {
		sb.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		sb.WriteString(strings.ReplaceAll(seg, "/", "~1"))
	}
	return sb.String()
}

func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return p.Pointer()
}

// ValidationError reports the first constraint a record failed.
type ValidationError struct {
	// Line is the 1-based line of the record, when known.
	Line       int
	Path       Path
	Constraint Constraint
	Detail     string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("validation error at line %d, path %s: %s: %s", e.Line, e.Path, e.Constraint, e.Detail)
	}
	return fmt.Sprintf("validation error at path %s: %s: %s", e.Path, e.Constraint, e.Detail)
}

// CompileError reports a schema document that cannot be compiled.
type CompileError struct {
	// Location is the JSON Pointer of the offending keyword in the schema.
	Location string
	Reason   string
}

func (e *CompileError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("invalid schema at %s: %s", e.Location, e.Reason)
	}
	return "invalid schema: " + e.Reason
}

func compileErrorf(loc Path, format string, args ...any) *CompileError {
	return &CompileError{Location: loc.Pointer(), Reason: fmt.Sprintf(format, args...)}
}
