package inspector

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// defaultRenderBudget bounds Stringify when no explicit limit is given.
	defaultRenderBudget = 4096
	maxRenderDepth      = 8
)

// Stringify renders v for display. Rendering walks the value itself instead
// of handing it to fmt, so self-referencing maps, slices and pointers stop
// at "..." and huge collections stop at the output budget. A value whose
// String or Error method panics becomes Unrepresentable.
func Stringify(v any) string {
	return StringifyN(v, defaultRenderBudget)
}

// StringifyN is Stringify bounded to max runes, with the cut marked by "...".
func StringifyN(v any, max int) (s string) {
	if max <= 0 {
		max = defaultRenderBudget
	}
	r := &renderer{budget: max + 1, visiting: map[visit]bool{}}
	defer func() {
		if recover() != nil {
			s = Unrepresentable
		}
	}()
	if v == nil {
		return "None"
	}
	r.value(reflect.ValueOf(v), 0)
	if r.broken {
		return Unrepresentable
	}
	return Truncate(r.b.String(), max)
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type renderer struct {
	b        strings.Builder
	budget   int
	visiting map[visit]bool
	broken   bool
}

func (r *renderer) full() bool { return r.budget <= 0 || r.broken }

func (r *renderer) write(s string) {
	if r.full() {
		return
	}
	if n := utf8.RuneCountInString(s); n > r.budget {
		s = string([]rune(s)[:r.budget])
	}
	r.budget -= utf8.RuneCountInString(s)
	r.b.WriteString(s)
}

// enter marks a reference value as being rendered; false means it is
// already on the current path.
func (r *renderer) enter(v reflect.Value) (visit, bool) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if key.ptr == 0 {
		return key, true
	}
	if r.visiting[key] {
		return key, false
	}
	r.visiting[key] = true
	return key, true
}

func (r *renderer) value(v reflect.Value, depth int) {
	if r.full() {
		return
	}
	if !v.IsValid() {
		r.write("<nil>")
		return
	}
	if depth > maxRenderDepth {
		r.write("...")
		return
	}
	if isNilRef(v) {
		r.write("<nil>")
		return
	}
	if s, ok := r.method(v); ok {
		r.write(s)
		return
	}

	switch v.Kind() {
	case reflect.String:
		if depth == 0 {
			r.write(strconv.Quote(v.String()))
		} else {
			r.write(v.String())
		}
	case reflect.Bool:
		r.write(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r.write(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		r.write(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		r.write(strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits()))
	case reflect.Complex64, reflect.Complex128:
		r.write(strconv.FormatComplex(v.Complex(), 'g', -1, v.Type().Bits()))
	case reflect.Interface:
		r.value(v.Elem(), depth)
	case reflect.Pointer:
		key, ok := r.enter(v)
		if !ok {
			r.write("...")
			return
		}
		defer delete(r.visiting, key)
		if k := v.Elem().Kind(); k == reflect.Struct || k == reflect.Map || k == reflect.Slice || k == reflect.Array {
			r.write("&")
			r.value(v.Elem(), depth+1)
			return
		}
		r.write("0x" + strconv.FormatUint(uint64(v.Pointer()), 16))
	case reflect.Map:
		key, ok := r.enter(v)
		if !ok {
			r.write("...")
			return
		}
		defer delete(r.visiting, key)
		r.write("map[")
		keys := v.MapKeys()
		sort.SliceStable(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
		for i, k := range keys {
			if r.full() {
				return
			}
			if i > 0 {
				r.write(" ")
			}
			r.value(k, depth+1)
			r.write(":")
			r.value(v.MapIndex(k), depth+1)
		}
		r.write("]")
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice {
			key, ok := r.enter(v)
			if !ok {
				r.write("...")
				return
			}
			defer delete(r.visiting, key)
		}
		r.write("[")
		for i := 0; i < v.Len(); i++ {
			if r.full() {
				return
			}
			if i > 0 {
				r.write(" ")
			}
			r.value(v.Index(i), depth+1)
		}
		r.write("]")
	case reflect.Struct:
		r.write("{")
		for i := 0; i < v.NumField(); i++ {
			if r.full() {
				return
			}
			if i > 0 {
				r.write(" ")
			}
			r.value(v.Field(i), depth+1)
		}
		r.write("}")
	default:
		r.write("<" + v.Type().String() + ">")
	}
}

// method renders v through its Error or String method when it has one.
func (r *renderer) method(v reflect.Value) (s string, ok bool) {
	if !v.CanInterface() {
		return "", false
	}
	defer func() {
		if recover() != nil {
			r.broken = true
			s, ok = "", true
		}
	}()
	switch t := v.Interface().(type) {
	case error:
		return t.Error(), true
	case fmt.Stringer:
		return t.String(), true
	}
	return "", false
}

func isNilRef(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func:
		return v.IsNil()
	}
	return false
}

func keyLess(a, b reflect.Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	switch a.Kind() {
	case reflect.String:
		return a.String() < b.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() < b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() < b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() < b.Float()
	case reflect.Bool:
		return !a.Bool() && b.Bool()
	}
	return false
}
