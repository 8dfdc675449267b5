/*
Copyright © 2024 the sargrid authors.
This file is part of sargrid.

sargrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sargrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sargrid.  If not, see <http://www.gnu.org/licenses/>.
*/


package vector

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Where returns a copy of l holding the features for which the boolean
// expression expr is true. Field names are expression variables, so
// that `SAR_STAT_E >= 2 && TAXON == 'Birds'` selects endangered and
// threatened birds. Numeric fields are compared as floating point
// numbers.
func Where(name string, l *Layer, expr string) (*Layer, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("vector: parsing expression %q: %w", expr, err)
	}
	vars := e.Vars()
	if err := l.RequireFields(vars...); err != nil {
		return nil, fmt.Errorf("vector: expression %q: %w", expr, err)
	}
	o := l.empty(name)
	params := make(map[string]interface{}, len(vars))
	for i, f := range l.Features {
		for _, n := range vars {
			v, _ := f.Value(n)
			if x, ok := toFloat(v); ok {
				v = x
			}
			params[n] = v
		}
		result, err := e.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("vector: evaluating %q on feature %d of %s: %w", expr, i, l.Name, err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("vector: expression %q returns %T, not a boolean", expr, result)
		}
		if keep {
			o.Features = append(o.Features, f.copy())
		}
	}
	return o, nil
}
