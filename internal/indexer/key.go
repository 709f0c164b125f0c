package indexer

import (
	"fmt"
	"reflect"
	"strings"
)

// ValueKey is the normalized form of a property value used as a bucket key.
// It is always comparable.
type ValueKey = any

// PropertyIndex maps a value key to the ascending positions holding that value.
type PropertyIndex map[ValueKey][]int

// NormalizeKey converts a raw property value into its bucket key. Slices and
// arrays become "[a,b,c]" strings; comparable scalars are used as they are.
// Values that cannot be map keys at all (maps, funcs) fall back to their
// fmt.Sprint form.
func NormalizeKey(value any) ValueKey {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if isSequence(rv) {
		return bracketed(rv)
	}
	if data, ok := value.([]byte); ok {
		return string(data)
	}
	// Value.Comparable also catches structs whose interface fields hold
	// maps or slices, which would panic on hashing.
	if !rv.Comparable() {
		return fmt.Sprint(value)
	}
	return value
}

// bracketKey is the secondary lookup form: the joined sequence for slices,
// the value wrapped in brackets for everything else.
func bracketKey(value any) string {
	if value != nil {
		if rv := reflect.ValueOf(value); isSequence(rv) {
			return bracketed(rv)
		}
	}
	var b strings.Builder
	b.WriteByte('[')
	writeElement(&b, value)
	b.WriteByte(']')
	return b.String()
}

func isSequence(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		// []byte is a scalar blob, not a list of numbers.
		return rv.Type().Elem().Kind() != reflect.Uint8
	}
	return false
}

func bracketed(rv reflect.Value) string {
	var b strings.Builder
	b.WriteByte('[')
	joinSequence(&b, rv)
	b.WriteByte(']')
	return b.String()
}

// joinSequence writes the elements separated by commas. Nested sequences are
// flattened into the same list and nil elements render empty.
func joinSequence(b *strings.Builder, rv reflect.Value) {
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		writeElement(b, rv.Index(i).Interface())
	}
}

func writeElement(b *strings.Builder, elem any) {
	if elem == nil {
		return
	}
	rv := reflect.ValueOf(elem)
	switch {
	case isSequence(rv):
		joinSequence(b, rv)
	case rv.Kind() == reflect.Pointer && rv.IsNil():
	default:
		if data, ok := elem.([]byte); ok {
			b.Write(data)
			return
		}
		fmt.Fprint(b, elem)
	}
}
