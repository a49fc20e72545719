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

package columnar

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hashicorp/go-multierror"
)

// ColumnSpec names one target column and its type name, as written in a
// table definition file.
type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

var typesByName = map[string]arrow.DataType{
	"int8":         arrow.PrimitiveTypes.Int8,
	"int16":        arrow.PrimitiveTypes.Int16,
	"int32":        arrow.PrimitiveTypes.Int32,
	"int64":        arrow.PrimitiveTypes.Int64,
	"integer":      arrow.PrimitiveTypes.Int64,
	"uint8":        arrow.PrimitiveTypes.Uint8,
	"uint16":       arrow.PrimitiveTypes.Uint16,
	"uint32":       arrow.PrimitiveTypes.Uint32,
	"uint64":       arrow.PrimitiveTypes.Uint64,
	"float16":      arrow.FixedWidthTypes.Float16,
	"float32":      arrow.PrimitiveTypes.Float32,
	"float64":      arrow.PrimitiveTypes.Float64,
	"double":       arrow.PrimitiveTypes.Float64,
	"number":       arrow.PrimitiveTypes.Float64,
	"string":       arrow.BinaryTypes.String,
	"utf8":         arrow.BinaryTypes.String,
	"large_string": arrow.BinaryTypes.LargeString,
	"large_utf8":   arrow.BinaryTypes.LargeString,
	"bool":         arrow.FixedWidthTypes.Boolean,
	"boolean":      arrow.FixedWidthTypes.Boolean,
}

// TypeFromName maps a column type name to its Arrow type.
func TypeFromName(name string) (arrow.DataType, error) {
	dt, ok := typesByName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown column type %q", name)
	}
	return dt, nil
}

// NewTableSchema builds a nullable Arrow schema from column specs. Every
// problem found is reported, not only the first.
func NewTableSchema(cols []ColumnSpec) (*arrow.Schema, error) {
	var errs *multierror.Error
	if len(cols) == 0 {
		errs = multierror.Append(errs, fmt.Errorf("table schema has no columns"))
	}

	seen := mapset.NewThreadUnsafeSetWithSize[string](len(cols))
	fields := make([]arrow.Field, 0, len(cols))
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			errs = multierror.Append(errs, fmt.Errorf("column %d has no name", i+1))
			continue
		}
		if !seen.Add(name) {
			errs = multierror.Append(errs, fmt.Errorf("column %q is defined more than once", name))
			continue
		}
		dt, err := TypeFromName(c.Type)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("column %q: %w", name, err))
			continue
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

// ParseTableSchema parses a compact definition such as
// "user_id:int64,username:string,banned:bool".
func ParseTableSchema(def string) (*arrow.Schema, error) {
	var cols []ColumnSpec
	for part := range strings.SplitSeq(def, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, typ, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("column definition %q is not name:type", part)
		}
		cols = append(cols, ColumnSpec{Name: name, Type: typ})
	}
	return NewTableSchema(cols)
}
