package encoding

import (
	"errors"
	"reflect"

	"github.com/modern-go/reflect2"
)

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrNotPointer      = errors.New("decode target is not a pointer")
	ErrNilValue        = errors.New("nil value")
	ErrShortBuffer     = errors.New("short buffer")
)

type fieldPlan struct {
	field reflect2.StructField
	pad   int
}

type structPlan struct {
	fields []fieldPlan
	tail   int
	layout layout
	raw    bool
}

func layoutOf(typ reflect2.Type) (layout, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		size := int(typ.Type1().Size())
		return layout{size, size}, nil
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return layout{wordSize, wordSize}, nil
	case reflect.Array:
		at := typ.(reflect2.ArrayType)
		elem, err := layoutOf(at.Elem())
		if err != nil {
			return layout{}, err
		}
		return layout{at.Len() * elem.size, elem.align}, nil
	case reflect.Struct:
		plan, err := planStruct(typ.(reflect2.StructType))
		if err != nil {
			return layout{}, err
		}
		return plan.layout, nil
	}
	return layout{}, ErrUnsupportedType
}

// isRaw reports whether the Go memory of typ already matches its wire layout.
func isRaw(typ reflect2.Type) bool {
	switch typ.Kind() {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		return typ.Type1().Size() == wordSize
	case reflect.Array:
		return isRaw(typ.(reflect2.ArrayType).Elem())
	case reflect.Struct:
		plan, err := planStruct(typ.(reflect2.StructType))
		return err == nil && plan.raw
	}
	return true
}

func planStruct(typ reflect2.StructType) (structPlan, error) {
	plan := structPlan{raw: true}
	var wire int
	maxAlign := 1
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			plan.raw = false
			continue
		}
		l, err := layoutOf(field.Type())
		if err != nil {
			return structPlan{}, err
		}
		pad := l.pad(wire)
		if !isRaw(field.Type()) || int(field.Offset()) != wire+pad {
			plan.raw = false
		}
		wire += pad + l.size
		maxAlign = max(maxAlign, l.align)
		plan.fields = append(plan.fields, fieldPlan{field, pad})
	}
	size := alignUp(wire, maxAlign)
	plan.tail = size - wire
	plan.layout = layout{size, maxAlign}
	if size != int(typ.Type1().Size()) {
		plan.raw = false
	}
	return plan, nil
}
