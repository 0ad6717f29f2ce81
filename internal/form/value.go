package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the resolved type of an extraction value.
type ValueKind string

const (
	ValueKindText    ValueKind = "text"
	ValueKindNumber  ValueKind = "number"
	ValueKindBoolean ValueKind = "boolean"
	ValueKindDate    ValueKind = "date"
	ValueKindEmpty   ValueKind = "empty"
)

// Value is an extraction value resolved once at the fill engine boundary,
// so type dispatch further down is exhaustive instead of stringly-typed.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Bool   bool
	Date   time.Time
}

// dateLayouts are the accepted date spellings, German civil-status
// documents first.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02/01/2006",
}

// ResolveValue converts a loosely-typed value from an extraction row
// into a tagged Value. Nil and blank strings resolve to the empty value.
func ResolveValue(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: ValueKindEmpty}
	case bool:
		return Value{Kind: ValueKindBoolean, Bool: v}
	case float64:
		return Value{Kind: ValueKindNumber, Number: v}
	case float32:
		return Value{Kind: ValueKindNumber, Number: float64(v)}
	case int:
		return Value{Kind: ValueKindNumber, Number: float64(v)}
	case int64:
		return Value{Kind: ValueKindNumber, Number: float64(v)}
	case time.Time:
		return Value{Kind: ValueKindDate, Date: v}
	case string:
		return resolveString(v)
	default:
		return resolveString(fmt.Sprintf("%v", raw))
	}
}

func resolveString(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Value{Kind: ValueKindEmpty}
	}
	switch strings.ToLower(trimmed) {
	case "true", "ja", "yes":
		return Value{Kind: ValueKindBoolean, Bool: true, Text: trimmed}
	case "false", "nein", "no":
		return Value{Kind: ValueKindBoolean, Bool: false, Text: trimmed}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, trimmed); err == nil {
			return Value{Kind: ValueKindDate, Date: d, Text: trimmed}
		}
	}
	return Value{Kind: ValueKindText, Text: trimmed}
}

// IsEmpty reports whether the value carries nothing to fill.
func (v Value) IsEmpty() bool {
	return v.Kind == ValueKindEmpty
}

// IsTrue reports whether the value counts as true-like for checkbox
// fields: boolean true, the strings true/ja/yes/1, or a non-zero number.
func (v Value) IsTrue() bool {
	switch v.Kind {
	case ValueKindBoolean:
		return v.Bool
	case ValueKindNumber:
		return v.Number != 0
	case ValueKindText:
		switch strings.ToLower(v.Text) {
		case "true", "ja", "yes", "1":
			return true
		}
	}
	return false
}

// String renders the value the way it is written into a text field.
func (v Value) String() string {
	switch v.Kind {
	case ValueKindEmpty:
		return ""
	case ValueKindBoolean:
		if v.Text != "" {
			return v.Text
		}
		return strconv.FormatBool(v.Bool)
	case ValueKindNumber:
		if v.Number == math.Trunc(v.Number) {
			return strconv.FormatInt(int64(v.Number), 10)
		}
		return strconv.FormatFloat(v.Number, 'f', 2, 64)
	case ValueKindDate:
		if v.Text != "" {
			return v.Text
		}
		return v.Date.Format("02.01.2006")
	default:
		return v.Text
	}
}
