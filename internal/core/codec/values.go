package codec

import (
	"fmt"
	"reflect"
	"slices"
)

// Marshaler is implemented by payload types that know their own wire form.
type Marshaler interface {
	ToBytable() (Bytable, error)
}

// Value encodes a property value. The wire form carries no type tag: the
// receiver knows the type from the property key. Go int and uint are written
// as 32-bit values.
func Value(v any) (Bytable, error) {
	switch t := v.(type) {
	case nil:
		return Empty, nil
	case Marshaler:
		return t.ToBytable()
	case Bytable:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int32(int32(t)), nil
	case int8:
		return Uint8(uint8(t)), nil
	case int16:
		return Uint16(uint16(t)), nil
	case int32:
		return Int32(t), nil
	case int64:
		return Int64(t), nil
	case uint:
		return Uint32(uint32(t)), nil
	case uint8:
		return Uint8(t), nil
	case uint16:
		return Uint16(t), nil
	case uint32:
		return Uint32(t), nil
	case uint64:
		return Uint64(t), nil
	case float32:
		return Float32(t), nil
	case float64:
		return Float64(t), nil
	case string:
		return String(t), nil
	case []byte:
		return Raw(t), nil
	case []uint64:
		return Uint64s(t), nil
	case []any:
		return List(t)
	case map[string]any:
		return Dictionary(t)
	}
	return reflectValue(reflect.ValueOf(v))
}

// List writes a u32 count followed by each encoded item.
func List(items []any) (Bytable, error) {
	parts := make([]Bytable, 0, len(items)+1)
	parts = append(parts, Uint32(uint32(len(items))))
	for i, item := range items {
		b, err := Value(item)
		if err != nil {
			return Empty, fmt.Errorf("list item %d: %w", i, err)
		}
		parts = append(parts, b)
	}
	return Join(parts...), nil
}

// Dictionary writes a u32 count followed by key/value pairs sorted by key.
func Dictionary(m map[string]any) (Bytable, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]Bytable, 0, 2*len(keys)+1)
	parts = append(parts, Uint32(uint32(len(keys))))
	for _, k := range keys {
		b, err := Value(m[k])
		if err != nil {
			return Empty, fmt.Errorf("dictionary key %q: %w", k, err)
		}
		parts = append(parts, String(k), b)
	}
	return Join(parts...), nil
}

// reflectValue handles named types (ids, enums) and typed slices.
func reflectValue(rv reflect.Value) (Bytable, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int32:
		return Int32(int32(rv.Int())), nil
	case reflect.Int8:
		return Uint8(uint8(rv.Int())), nil
	case reflect.Int16:
		return Uint16(uint16(rv.Int())), nil
	case reflect.Int64:
		return Int64(rv.Int()), nil
	case reflect.Uint, reflect.Uint32:
		return Uint32(uint32(rv.Uint())), nil
	case reflect.Uint8:
		return Uint8(uint8(rv.Uint())), nil
	case reflect.Uint16:
		return Uint16(uint16(rv.Uint())), nil
	case reflect.Uint64:
		return Uint64(rv.Uint()), nil
	case reflect.Float32:
		return Float32(float32(rv.Float())), nil
	case reflect.Float64:
		return Float64(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return List(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return Dictionary(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return Empty, nil
		}
		return Value(rv.Elem().Interface())
	}
	return Empty, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type())
}
