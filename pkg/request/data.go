package request

import (
	"bytes"
	jsonlib "encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

// StructToMap converts a struct to values map.
// Only defined allowedFields are converted.
// If allowedFields = nil, then all exported fields are converted.
//
// Field name is read from `json` tag, the Go field name is used as fallback.
// Field with tag `json:"-"` is ignored.
// Field with `omitempty` json option is exported only if value is not empty.
func StructToMap(in any, allowedFields []string) (out map[string]any) {
	out = make(map[string]any)
	structToMap(reflect.ValueOf(in), out, allowedFields)
	return out
}

func structToMap(in reflect.Value, out map[string]any, allowedFields []string) {
	// Initialize
	for in.Kind() == reflect.Ptr || in.Kind() == reflect.Interface {
		in = in.Elem()
	}
	t := in.Type()

	// Convert allowed slice to map
	allowed := make(map[string]bool)
	for _, field := range allowedFields {
		allowed[field] = true
	}

	// Iterate over fields
	for i := range t.NumField() {
		field := t.Field(i)
		fieldValue := in.Field(i)

		// Process embedded type
		if field.Anonymous && fieldValue.Kind() == reflect.Struct {
			structToMap(fieldValue, out, allowedFields)
			continue
		}

		if !field.IsExported() {
			continue
		}

		// Get field name and options
		tag := strings.Split(field.Tag.Get("json"), ",")
		fieldName := tag[0]
		if fieldName == "-" {
			continue
		}
		if fieldName == "" {
			fieldName = field.Name
		}

		// Skip empty optional field
		if len(tag) > 1 && tag[1] == "omitempty" && fieldValue.IsZero() {
			continue
		}

		// Is allowed?
		if len(allowedFields) > 0 && !allowed[fieldName] {
			continue
		}

		// Ok, add to map
		out[fieldName] = fieldValue.Interface()
	}
}

// toPairs converts structured data to ordered key-value pairs.
// The order of *orderedmap.OrderedMap is kept, keys of a Go map are sorted, slices use indexes as keys.
// The second return value is false if the data are not structured, for example a string or a number.
func toPairs(data any) ([]orderedmap.Pair, bool) {
	switch v := data.(type) {
	case nil, string, []byte:
		return nil, false
	case *orderedmap.OrderedMap:
		if v == nil {
			return nil, false
		}
		keys := v.Keys()
		out := make([]orderedmap.Pair, 0, len(keys))
		for _, k := range keys {
			value, _ := v.Get(k)
			out = append(out, orderedmap.Pair{Key: k, Value: value})
		}
		return out, true
	case orderedmap.OrderedMap:
		return toPairs(&v)
	}

	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		keys := rv.MapKeys()
		sort.SliceStable(keys, func(i, j int) bool {
			return keys[i].String() < keys[j].String()
		})
		out := make([]orderedmap.Pair, 0, len(keys))
		for _, k := range keys {
			out = append(out, orderedmap.Pair{Key: k.String(), Value: rv.MapIndex(k).Interface()})
		}
		return out, true
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]orderedmap.Pair, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, orderedmap.Pair{Key: strconv.Itoa(i), Value: rv.Index(i).Interface()})
		}
		return out, true
	case reflect.Struct:
		m := StructToMap(rv.Interface(), nil)
		return toPairs(m)
	default:
		return nil, false
	}
}

// isStructured returns true for data that are serialized, not sent as a raw string.
func isStructured(data any) bool {
	_, ok := toPairs(data)
	return ok
}

// isEmptyData returns true for nil, empty string and empty structures.
func isEmptyData(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	}
	if pairs, ok := toPairs(data); ok {
		return len(pairs) == 0
	}
	return false
}

// marshalJSON serializes structured data to a JSON string.
func marshalJSON(data any) (string, error) {
	// Ordered map
	if orderedMap, ok := data.(*orderedmap.OrderedMap); ok {
		// Standard json encoding library is used.
		// JsonIter lib returns non-compact JSON,
		// if custom OrderedMap.MarshalJSON method is used.
		var buf bytes.Buffer
		enc := jsonlib.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(orderedMap); err != nil {
			return "", fmt.Errorf(`cannot encode JSON body: %w`, err)
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	}

	// Other types
	v, err := json.MarshalToString(data)
	if err != nil {
		return "", fmt.Errorf(`cannot encode JSON body: %w`, err)
	}
	return v, nil
}

func castToString(v any) (string, error) {
	if b, ok := v.([]byte); ok {
		return string(b), nil
	}
	if orderedMap, ok := v.(*orderedmap.OrderedMap); ok {
		return marshalJSON(orderedMap)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf(`cannot cast %T to string: %w`, v, err)
	}
	return s, nil
}
