package rdfvalue

import (
	"strconv"

	"golang.org/x/exp/constraints"
)

// CoerceLiteral maps a SPARQL result binding to a native value, following
// the datatype-dispatch table: integer -> int, decimal/double
// -> float, boolean -> bool, date/datetime/time -> its ISO-8601 lexical
// form unchanged, everything else (plain literals and IRIs) -> string.
func CoerceLiteral(t Term) any {
	if t.IsURI() {
		return t.Value
	}
	switch t.Datatype {
	case XSDInteger, XSDInt, XSDLong:
		if v, ok := parseNumeric[int64](t.Value, strconv.ParseInt); ok {
			return v
		}
		return t.Value
	case XSDDecimal, XSDDouble, XSDFloat:
		if v, ok := parseNumericFloat[float64](t.Value); ok {
			return v
		}
		return t.Value
	case XSDBoolean:
		if v, err := strconv.ParseBool(t.Value); err == nil {
			return v
		}
		return t.Value
	case XSDDate, XSDDateTime, XSDTime:
		// Lexical xsd forms are already ISO-8601; pass through verbatim.
		return t.Value
	default:
		return t.Value
	}
}

func parseNumeric[T constraints.Integer](s string, parse func(string, int, int) (int64, error)) (T, bool) {
	v, err := parse(s, 10, 64)
	if err != nil {
		var zero T
		return zero, false
	}
	return T(v), true
}

func parseNumericFloat[T constraints.Float](s string) (T, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var zero T
		return zero, false
	}
	return T(v), true
}
