package utils

import (
	"reflect"
	"strings"
	"unicode"
)

// TrimAllStringFields returns a copy of input with every reachable string
// trimmed. Structs, pointers, slices and maps are walked recursively.
func TrimAllStringFields(input any) any {
	if input == nil {
		return nil
	}
	return trimValue(reflect.ValueOf(input)).Interface()
}

func trimValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		elem := trimValue(v.Elem())
		ptr := reflect.New(elem.Type())
		ptr.Elem().Set(elem)
		return ptr

	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if out.Field(i).CanSet() {
				out.Field(i).Set(trimValue(v.Field(i)))
			}
		}
		return out

	case reflect.Slice:
		if v.IsNil() || v.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(trimValue(v.Index(i)))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMap(v.Type())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(trimValue(iter.Key()), trimValue(iter.Value()))
		}
		return out

	case reflect.String:
		return reflect.ValueOf(strings.TrimSpace(v.String())).Convert(v.Type())
	}

	return v
}

// CamelToSnake converts "schoolsSupported" to "schools_supported".
// Runs of capitals are kept together, so "learnersAssessedUniqueID" becomes
// "learners_assessed_unique_id".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			prevUpper := i > 0 && unicode.IsUpper(runes[i-1])
			if i > 0 && (prevLower || (prevUpper && nextLower)) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
