// Package payload lets demo and test code view an allocated device
// region as a fixed-layout, pointer-free Go struct: a no-pointer
// struct/byte-view conversion that overlays typed storage on top of a
// raw device allocation. It is not a tensor library: it moves bytes in
// and out of a region the caller already owns, nothing more.
package payload

import (
	"fmt"
	"reflect"
	"unsafe"
)

// scalarKinds are the fixed-width kinds a payload field may terminate
// in without ever hiding a pointer.
var scalarKinds = map[reflect.Kind]bool{
	reflect.Bool:    true,
	reflect.Int:     true,
	reflect.Int8:    true,
	reflect.Int16:   true,
	reflect.Int32:   true,
	reflect.Int64:   true,
	reflect.Uint:    true,
	reflect.Uint8:   true,
	reflect.Uint16:  true,
	reflect.Uint32:  true,
	reflect.Uint64:  true,
	reflect.Uintptr: true,
	reflect.Float32: true,
	reflect.Float64: true,
}

// pointerKinds always smuggle a live pointer somewhere in their
// representation, regardless of what they currently hold.
var pointerKinds = map[reflect.Kind]bool{
	reflect.String:        true,
	reflect.Slice:         true,
	reflect.Map:           true,
	reflect.Pointer:       true,
	reflect.Interface:     true,
	reflect.Func:          true,
	reflect.Chan:          true,
	reflect.UnsafePointer: true,
}

// step is one pending unit of work in the breadth-first scan below: a
// type still to be classified, and the dotted field path that led to it
// (empty at the root).
type step struct {
	t    reflect.Type
	path string
}

// AssertNoPointers reports an error if T (or any field or array element
// reachable from it) contains pointer-like data. Writing such a type's
// bytes directly into device memory would copy dangling host pointers
// instead of the data the caller intended.
//
// The scan works off an explicit queue rather than recursing field by
// field, and memoizes every type it has already cleared so a struct
// referenced from several fields is only expanded once.
func AssertNoPointers[T any]() error {
	var zero T
	cleared := make(map[reflect.Type]bool)
	queue := []step{{t: reflect.TypeOf(zero)}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cleared[cur.t] {
			continue
		}

		switch kind := cur.t.Kind(); {
		case scalarKinds[kind]:
			cleared[cur.t] = true
		case kind == reflect.Array:
			cleared[cur.t] = true
			queue = append(queue, step{t: cur.t.Elem(), path: cur.path})
		case kind == reflect.Struct:
			cleared[cur.t] = true
			for i := 0; i < cur.t.NumField(); i++ {
				f := cur.t.Field(i)
				queue = append(queue, step{t: f.Type, path: extendPath(cur.path, f.Name)})
			}
		case pointerKinds[kind]:
			return fmt.Errorf("field %s: type %s contains pointer-like data", describePath(cur.path), cur.t)
		default:
			return fmt.Errorf("field %s: unsupported kind %s (%s)", describePath(cur.path), kind, cur.t)
		}
	}
	return nil
}

func extendPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func describePath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func viewOf[T any](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// Write copies v's bytes into dst, which must be at least
// unsafe.Sizeof(*v) long — typically the slice View returns for an
// allocated device region.
func Write[T any](dst []byte, v *T) error {
	if err := AssertNoPointers[T](); err != nil {
		return err
	}
	src := viewOf(v)
	if len(dst) < len(src) {
		return fmt.Errorf("payload: dst too small: have %d want %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// Read reconstructs a *T from src, which must be exactly
// unsafe.Sizeof(T{}) bytes long.
func Read[T any](src []byte) (*T, error) {
	if err := AssertNoPointers[T](); err != nil {
		return nil, err
	}
	out := new(T)
	dst := viewOf(out)
	if len(src) != len(dst) {
		return nil, fmt.Errorf("payload: size mismatch: got=%d want=%d", len(src), len(dst))
	}
	copy(dst, src)
	return out, nil
}
