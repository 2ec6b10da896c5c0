package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SanitizeMetadata converts arbitrary values into a JSON-safe tree.
// Decimal-like numbers become float64, times become RFC3339 strings, and
// identifiers or other opaque values become their string form.
func SanitizeMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return finite(f)
		}
		return x.String()
	case *big.Float:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return finite(f)
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return finite(f)
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(time.RFC3339)
	case time.Duration:
		return x.String()
	case uuid.UUID:
		return x.String()
	case *uuid.UUID:
		if x == nil {
			return nil
		}
		return x.String()
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	case map[string]any:
		return SanitizeMetadata(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = sanitizeValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = sanitizeValue(iter.Value().Interface())
			}
			return out
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
	}
	return fmt.Sprintf("%v", v)
}

// finite keeps NaN and infinities as strings since JSON cannot carry them.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// encodeMetadata sanitizes and marshals metadata for the JSON column.
func encodeMetadata(in map[string]any) ([]byte, error) {
	if len(in) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(SanitizeMetadata(in))
}
