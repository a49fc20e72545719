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

import "fmt"

// TypeMismatchError reports a value that cannot be stored in its column.
type TypeMismatchError struct {
	Column string
	// Line is the 1-based line of the record, when known.
	Line     int
	Found    string
	Expected string
	Value    string
}

func (e *TypeMismatchError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("type mismatch at line %d, column %q: expected %s, found %s %s", e.Line, e.Column, e.Expected, e.Found, e.Value)
	}
	return fmt.Sprintf("type mismatch in column %q: expected %s, found %s %s", e.Column, e.Expected, e.Found, e.Value)
}

// UnsupportedTypeError reports a target column type the encoder cannot build.
type UnsupportedTypeError struct {
	Column string
	Type   string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("column %q has unsupported type %s", e.Column, e.Type)
}
