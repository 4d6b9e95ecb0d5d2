package session

import (
	"fmt"
	"reflect"
	"regexp"
	"time"
)

// sanitize walks an arbitrary value tree (as found in the free-form
// map[string]any fields on Session/AgentResponse/FacilitatorDecision —
// Metadata, StageData, DataAnalyzed, ErrorDetails, ExecutionDetails) and
// produces a JSON-marshalable equivalent per the store's serialization
// contract: reference cycles are broken with a sentinel marker, functions/
// regexes/errors/non-string-keyed maps become opaque string markers, and
// time.Time values are rendered as ISO-8601 or "null" for the zero value.
func sanitize(v any) any {
	return sanitizeValue(v, make(map[uintptr]bool))
}

func sanitizeValue(v any, seen map[uintptr]bool) any {
	if v == nil {
		return nil
	}

	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	case error:
		return fmt.Sprintf("[error: %s]", t.Error())
	case *regexp.Regexp:
		return fmt.Sprintf("[regexp: %s]", t.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return sanitizeMap(rv, seen)
	case reflect.Slice, reflect.Array:
		return sanitizeSlice(rv, seen)
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem().Interface(), seen)
	case reflect.Func:
		return "[function]"
	case reflect.Chan:
		return "[channel]"
	default:
		return v
	}
}

func sanitizeMap(rv reflect.Value, seen map[uintptr]bool) any {
	if rv.Type().Key().Kind() != reflect.String {
		return fmt.Sprintf("[map: %s]", rv.Type())
	}
	ptr := rv.Pointer()
	if ptr != 0 {
		if seen[ptr] {
			return "[circular]"
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = sanitizeValue(iter.Value().Interface(), seen)
	}
	return out
}

func sanitizeSlice(rv reflect.Value, seen map[uintptr]bool) any {
	if rv.Kind() == reflect.Slice && rv.Pointer() != 0 {
		ptr := rv.Pointer()
		if seen[ptr] {
			return "[circular]"
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = sanitizeValue(rv.Index(i).Interface(), seen)
	}
	return out
}
