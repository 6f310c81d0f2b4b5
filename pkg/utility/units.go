// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package utility

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	units "github.com/bcicen/go-units"
)

// dimension exponents: length, mass, time, temperature, information.
type dimension [5]int

func (d dimension) add(o dimension, sign int) dimension {
	for i := range d {
		d[i] += sign * o[i]
	}
	return d
}

func (d dimension) scale(n int) dimension {
	for i := range d {
		d[i] *= n
	}
	return d
}

var (
	dimLength      = dimension{1, 0, 0, 0, 0}
	dimMass        = dimension{0, 1, 0, 0, 0}
	dimTime        = dimension{0, 0, 1, 0, 0}
	dimTemperature = dimension{0, 0, 0, 1, 0}
	dimInformation = dimension{0, 0, 0, 0, 1}
	dimNone        = dimension{}

	dimArea      = dimLength.scale(2)
	dimVolume    = dimLength.scale(3)
	dimSpeed     = dimLength.add(dimTime, -1)
	dimFrequency = dimNone.add(dimTime, -1)
	dimForce     = dimMass.add(dimLength, 1).add(dimTime.scale(2), -1)
	dimEnergy    = dimForce.add(dimLength, 1)
	dimPower     = dimEnergy.add(dimTime, -1)
	dimPressure  = dimForce.add(dimArea, -1)
)

// quantity is a unit term in SI base units: value_si = v*factor + offset.
type quantity struct {
	factor float64
	offset float64
	dim    dimension
}

// anchors tie go-units quantities to SI dimensions. A named unit takes
// the dimension of the first anchor it converts to.
var anchorDefs = []struct {
	name   string
	factor float64
	dim    dimension
}{
	{"meter", 1, dimLength},
	{"kilogram", 1, dimMass},
	{"second", 1, dimTime},
	{"kelvin", 1, dimTemperature},
	{"bit", 1, dimInformation},
	{"liter", 1e-3, dimVolume},
	{"square meter", 1, dimArea},
	{"meter per second", 1, dimSpeed},
	{"joule", 1, dimEnergy},
	{"watt", 1, dimPower},
	{"pascal", 1, dimPressure},
}

type anchor struct {
	unit   units.Unit
	factor float64
	dim    dimension
}

var (
	anchorsOnce sync.Once
	anchors     []anchor
)

func unitAnchors() []anchor {
	anchorsOnce.Do(func() {
		for _, def := range anchorDefs {
			if u, err := units.Find(def.name); err == nil {
				anchors = append(anchors, anchor{unit: u, factor: def.factor, dim: def.dim})
			}
		}
	})
	return anchors
}

// coherent derived SI units usable inside compound expressions.
var derivedUnits = map[string]quantity{
	"N":      {factor: 1, dim: dimForce},
	"newton": {factor: 1, dim: dimForce},
	"J":      {factor: 1, dim: dimEnergy},
	"joule":  {factor: 1, dim: dimEnergy},
	"W":      {factor: 1, dim: dimPower},
	"watt":   {factor: 1, dim: dimPower},
	"Pa":     {factor: 1, dim: dimPressure},
	"pascal": {factor: 1, dim: dimPressure},
	"Hz":     {factor: 1, dim: dimFrequency},
	"hertz":  {factor: 1, dim: dimFrequency},
	"rad":    {factor: 1, dim: dimNone},
	"radian": {factor: 1, dim: dimNone},
}

// findUnit resolves a single unit name in the go-units catalog,
// tolerating case and plurals.
func findUnit(name string) (units.Unit, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return units.Unit{}, false
	}
	lower := strings.ToLower(name)
	candidates := []string{name, lower, strings.ReplaceAll(lower, "_", " ")}
	for _, suffix := range []string{"s", "es"} {
		if singular, ok := strings.CutSuffix(lower, suffix); ok && singular != "" {
			candidates = append(candidates, singular)
		}
	}
	for _, c := range candidates {
		if u, err := units.Find(c); err == nil {
			return u, true
		}
	}
	return units.Unit{}, false
}

var exponentPattern = regexp.MustCompile(`^(.+?)\s*(?:\^|\*\*)\s*(-?\d+)$`)

var powerPrefixes = []struct {
	prefix string
	n      int
}{
	{"square ", 2}, {"sq ", 2}, {"cubic ", 3}, {"cu ", 3},
}

// term resolves one factor of a unit expression: a derived SI unit, a
// go-units name, or either raised to a power ("m^2", "square feet").
func term(name string) (quantity, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return quantity{}, false
	}

	if m := exponentPattern.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[2])
		if base, ok := term(m[1]); ok && err == nil && base.offset == 0 {
			return quantity{factor: math.Pow(base.factor, float64(n)), dim: base.dim.scale(n)}, true
		}
		return quantity{}, false
	}

	lower := strings.ToLower(name)
	for _, p := range powerPrefixes {
		if rest, ok := strings.CutPrefix(lower, p.prefix); ok {
			if base, ok := term(rest); ok && base.offset == 0 {
				return quantity{factor: math.Pow(base.factor, float64(p.n)), dim: base.dim.scale(p.n)}, true
			}
			return quantity{}, false
		}
	}

	if q, ok := derivedUnits[name]; ok {
		return q, true
	}
	if q, ok := derivedUnits[lower]; ok {
		return q, true
	}

	u, ok := findUnit(name)
	if !ok {
		return quantity{}, false
	}
	for _, a := range unitAnchors() {
		zero, err := units.ConvertFloat(0, u, a.unit)
		if err != nil {
			continue
		}
		one, err := units.ConvertFloat(1, u, a.unit)
		if err != nil {
			continue
		}
		return quantity{
			factor: (one.Float() - zero.Float()) * a.factor,
			offset: zero.Float() * a.factor,
			dim:    a.dim,
		}, true
	}
	return quantity{}, false
}

// parseUnit resolves a unit expression such as "km/h", "miles per hour",
// "kg*m^2/s^2" or "square feet".
func parseUnit(expr string) (quantity, error) {
	expr = strings.TrimSpace(expr)
	if q, ok := term(expr); ok {
		return q, nil
	}

	normalized := strings.ReplaceAll(strings.ReplaceAll(expr, " per ", "/"), "**", "^")
	parts := strings.Split(normalized, "/")
	if len(parts) == 1 && !strings.ContainsAny(expr, "*·") {
		return quantity{}, fmt.Errorf("unknown unit %q", expr)
	}

	result := quantity{factor: 1}
	for i, part := range parts {
		sign := 1
		if i > 0 {
			sign = -1
		}
		for _, name := range strings.FieldsFunc(part, func(r rune) bool { return r == '*' || r == '·' }) {
			q, ok := term(name)
			if !ok {
				return quantity{}, fmt.Errorf("unknown unit %q", strings.TrimSpace(name))
			}
			if q.offset != 0 {
				return quantity{}, fmt.Errorf("offset unit %q cannot be combined", strings.TrimSpace(name))
			}
			result.factor *= math.Pow(q.factor, float64(sign))
			result.dim = result.dim.add(q.dim, sign)
		}
	}
	return result, nil
}

// convertUnits converts between two named units through go-units and
// falls back to dimensional analysis for compound expressions.
func convertUnits(value float64, from, to string) (float64, error) {
	if src, ok := findUnit(from); ok {
		if dst, ok := findUnit(to); ok {
			if v, err := units.ConvertFloat(value, src, dst); err == nil {
				return v.Float(), nil
			}
		}
	}

	src, err := parseUnit(from)
	if err != nil {
		return 0, err
	}
	dst, err := parseUnit(to)
	if err != nil {
		return 0, err
	}
	if src.dim != dst.dim {
		return 0, fmt.Errorf("incompatible dimensions")
	}
	base := value*src.factor + src.offset
	return (base - dst.offset) / dst.factor, nil
}
