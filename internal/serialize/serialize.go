// Package serialize converts typed template properties into the generic
// map form stored in templates.
//
// Zero-valued struct fields are omitted, field names come from json tags,
// and every number becomes a float64 so that rendered properties compare
// equal to properties decoded from a template file.
package serialize

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Properties serializes a struct (or pointer to struct) into template
// properties. A nil pointer yields nil.
func Properties(v any) (map[string]any, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("serialize: expected struct, got %s", val.Kind())
	}
	return structValue(val)
}

func structValue(val reflect.Value) (map[string]any, error) {
	result := make(map[string]any)
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldName(field)
		if name == "-" {
			continue
		}
		fv := val.Field(i)
		if isZero(fv) {
			continue
		}
		out, err := value(fv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if out != nil {
			result[name] = out
		}
	}
	return result, nil
}

// fieldName returns the json tag name of a field, or the Go name.
func fieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}

// isZero reports whether a struct field is omitted.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Struct:
		if z, ok := v.Interface().(interface{ IsZero() bool }); ok {
			return z.IsZero()
		}
		return false
	default:
		return v.IsZero()
	}
}

// value converts v into strings, bools, float64s, []any and map[string]any.
// Map entries and slice elements are kept even when zero.
func value(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		if _, ok := v.Interface().(json.Marshaler); !ok {
			return value(v.Elem())
		}
	}

	if m, ok := v.Interface().(json.Marshaler); ok {
		return viaJSON(m)
	}

	switch v.Kind() {
	case reflect.Struct:
		return structValue(v)
	case reflect.Slice, reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			elem, err := value(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = elem
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("serialize: map key must be string, got %s", v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			elem, err := value(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = elem
		}
		return out, nil
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	default:
		return viaJSON(v.Interface())
	}
}

func viaJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
