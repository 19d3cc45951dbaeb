package encoding

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

var decodeProcess sync.Map

// Decode reads the value val points to from stream.
func Decode(stream Stream, val any) error {
	if val == nil {
		return ErrNilValue
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() != reflect.Pointer {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNilValue
	}
	data, err := getUnmarshalData(typ.(reflect2.PtrType).Elem())
	if err != nil {
		return err
	}
	return data.handler(stream, ptr)
}

func getUnmarshalData(typ reflect2.Type) (*handlerData, error) {
	key := typ.RType()
	if v, ok := decodeProcess.Load(key); ok {
		return v.(*handlerData), nil
	}
	unmarshal, l, err := decode(typ)
	if err != nil {
		return nil, err
	}
	data := &handlerData{unmarshal, l}
	decodeProcess.Store(key, data)
	return data, nil
}

func decode(typ reflect2.Type) (handler, layout, error) {
	l, err := layoutOf(typ)
	if err != nil {
		return nil, layout{}, err
	}
	if isRaw(typ) {
		return decodeRaw(l.size), l, nil
	}
	switch typ.Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		size := int(typ.Type1().Size())
		return func(stream Stream, ptr unsafe.Pointer) error {
			var word [wordSize]byte
			if _, err := stream.Read(word[:]); err != nil {
				return err
			}
			copy(unsafe.Slice((*byte)(ptr), size), word[:])
			return nil
		}, l, nil
	case reflect.Array:
		return decodeArray(typ.(reflect2.ArrayType), l)
	case reflect.Struct:
		return decodeStruct(typ.(reflect2.StructType), l)
	}
	return nil, layout{}, ErrUnsupportedType
}

func decodeRaw(size int) handler {
	return func(stream Stream, ptr unsafe.Pointer) error {
		_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
		return err
	}
}

func decodeArray(typ reflect2.ArrayType, l layout) (handler, layout, error) {
	unmarshal, _, err := decode(typ.Elem())
	if err != nil {
		return nil, layout{}, err
	}
	count := typ.Len()
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i := 0; i < count; i++ {
			if err := unmarshal(stream, typ.UnsafeGetIndex(ptr, i)); err != nil {
				return err
			}
		}
		return nil
	}, l, nil
}

func decodeStruct(typ reflect2.StructType, l layout) (handler, layout, error) {
	plan, err := planStruct(typ)
	if err != nil {
		return nil, layout{}, err
	}
	unmarshals := make([]handler, len(plan.fields))
	for i, f := range plan.fields {
		if unmarshals[i], _, err = decode(f.field.Type()); err != nil {
			return nil, layout{}, err
		}
	}
	return func(stream Stream, ptr unsafe.Pointer) error {
		for i, f := range plan.fields {
			if err := stream.Skip(f.pad); err != nil {
				return err
			}
			if err := unmarshals[i](stream, f.field.UnsafeGet(ptr)); err != nil {
				return err
			}
		}
		return stream.Skip(plan.tail)
	}, l, nil
}
