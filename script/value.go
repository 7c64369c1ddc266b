package script

import "github.com/dop251/goja"

// Value is a script's completion value. The zero Value behaves like
// JavaScript undefined.
type Value struct {
	raw goja.Value
}

// Bool coerces the value with JavaScript truthiness rules: undefined, null,
// 0, NaN and "" are false, everything else true.
func (v Value) Bool() bool {
	if v.raw == nil {
		return false
	}
	return v.raw.ToBoolean()
}

// String renders the value the way JavaScript string conversion would.
// Undefined and null both render as "".
func (v Value) String() string {
	if v.IsNullish() {
		return ""
	}
	return v.raw.String()
}

// Export converts the value to a plain Go value (string, int64, float64,
// bool, []any, map[string]any), or nil for undefined and null.
func (v Value) Export() any {
	if v.IsNullish() {
		return nil
	}
	return v.raw.Export()
}

// IsNullish reports whether the value is undefined or null.
func (v Value) IsNullish() bool {
	return v.raw == nil || goja.IsUndefined(v.raw) || goja.IsNull(v.raw)
}
