package encoding

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

type handlerData struct {
	handler handler
	layout  layout
}

var (
	encodeProcess sync.Map
	padNull       [wordSize]byte
)

// Size returns the wire size of val, or of the value it points to.
func Size(val any) (int, error) {
	if val == nil {
		return 0, ErrNilValue
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		typ = typ.(reflect2.PtrType).Elem()
	}
	l, err := layoutOf(typ)
	return l.size, err
}

// Encode writes val, or the value it points to, into stream.
func Encode(stream Stream, val any) error {
	if val == nil {
		return ErrNilValue
	}
	typ := reflect2.TypeOf(val)
	ptr := reflect2.PtrOf(val)
	if typ.Kind() == reflect.Pointer {
		if ptr == nil {
			return ErrNilValue
		}
		typ = typ.(reflect2.PtrType).Elem()
	}
	data, err := getMarshalData(typ)
	if err != nil {
		return err
	}
	return data.handler(stream, ptr)
}

func getMarshalData(typ reflect2.Type) (*handlerData, error) {
	key := typ.RType()
	if v, ok := encodeProcess.Load(key); ok {
		return v.(*handlerData), nil
	}
	marshal, l, err := encode(typ)
	if err != nil {
		return nil, err
	}
	data := &handlerData{marshal, l}
	encodeProcess.Store(key, data)
	return data, nil
}

func encode(typ reflect2.Type) (handler, layout, error) {
	l, err := layoutOf(typ)
	if err != nil {
		return nil, layout{}, err
	}
	if isRaw(typ) {
		return encodeRaw(l.size), l, nil
	}
	switch typ.Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		size := int(typ.Type1().Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			var word [wordSize]byte
			copy(word[:], unsafe.Slice((*byte)(ptr), size))
			_, err := stream.Write(word[:])
			return err
		}, l, nil
	case reflect.Array:
		return encodeArray(typ.(reflect2.ArrayType), l)
	case reflect.Struct:
		return encodeStruct(typ.(reflect2.StructType), l)
	}
	return nil, layout{}, ErrUnsupportedType
}

func encodeRaw(size int) handler {
	return func(stream Stream, ptr unsafe.Pointer) error {
		_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
		return err
	}
}

func encodeArray(typ reflect2.ArrayType, l layout) (handler, layout, error) {
	marshal, _, err := encode(typ.Elem())
	if err != nil {
		return nil, layout{}, err
	}
	count := typ.Len()
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := marshal(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
				return err
			}
		}
		return nil
	}, l, nil
}

func encodeStruct(typ reflect2.StructType, l layout) (handler, layout, error) {
	plan, err := planStruct(typ)
	if err != nil {
		return nil, layout{}, err
	}
	marshals := make([]handler, len(plan.fields))
	for i, f := range plan.fields {
		if marshals[i], _, err = encode(f.field.Type()); err != nil {
			return nil, layout{}, err
		}
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i, f := range plan.fields {
			if err := writePad(stream, f.pad); err != nil {
				return err
			}
			if err := marshals[i](stream, f.field.UnsafeGet(ptr)); err != nil {
				return err
			}
		}
		return writePad(stream, plan.tail)
	}, l, nil
}

func writePad(stream Stream, n int) error {
	for n > 0 {
		chunk := min(n, len(padNull))
		if _, err := stream.Write(padNull[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
