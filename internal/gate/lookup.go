package gate

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// Receiver — capability-интерфейс для объектов, которые сами отдают атрибуты по имени.
// Если получатель его реализует, рефлексия не используется.
type Receiver interface {
	GateAttr(name string) (any, bool)
}

// Fields — простейший Receiver поверх мапы. Ключи сравниваются точно.
type Fields map[string]any

func (f Fields) GateAttr(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

// Canonical приводит значение к канонической форме: строка, без пробелов по краям, в верхнем регистре.
// Повторная канонизация ничего не меняет.
func Canonical(v any) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// Lookup читает атрибут name у получателя.
// Порядок: Receiver, map[string]any / map[string]string, поле структуры
// (точное имя, тег `gate:"..."`, затем без учета регистра), метод без аргументов
// (имя без учета регистра). Поле всегда важнее одноименного метода.
func Lookup(recv any, name string) (any, error) {
	if name == "" || recv == nil {
		return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
	}
	// Типизированный nil (например (*RequestReceiver)(nil)) не передаем в GateAttr
	if rv := reflect.ValueOf(recv); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
	}

	switch r := recv.(type) {
	case Receiver:
		if v, ok := r.GateAttr(name); ok {
			return v, nil
		}
		return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
	case map[string]any:
		if v, ok := r[name]; ok {
			return v, nil
		}
		return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
	case map[string]string:
		if v, ok := r[name]; ok {
			return v, nil
		}
		return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
	}

	if v, ok := reflectLookup(reflect.ValueOf(recv), name); ok {
		return v, nil
	}
	return nil, &AttributeError{Attribute: name, Receiver: typeName(recv)}
}

func reflectLookup(rv reflect.Value, name string) (any, bool) {
	if v, ok := fieldLookup(rv, name); ok {
		return v, true
	}
	// Метод ищем по исходному значению: у указателя метод-сет шире
	return methodLookup(rv, name)
}

func fieldLookup(rv reflect.Value, name string) (any, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	rt := rv.Type()
	if f, ok := rt.FieldByName(name); ok && f.IsExported() {
		return rv.FieldByIndex(f.Index).Interface(), true
	}

	var fallback = -1
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get("gate"), ","); tag == name {
			return rv.Field(i).Interface(), true
		}
		if fallback < 0 && strings.EqualFold(f.Name, name) {
			fallback = i
		}
	}
	if fallback >= 0 {
		return rv.Field(fallback).Interface(), true
	}
	return nil, false
}

func methodLookup(rv reflect.Value, name string) (any, bool) {
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, false
	}
	rt := rv.Type()
	for i := range rt.NumMethod() {
		m := rt.Method(i)
		if !strings.EqualFold(m.Name, name) {
			continue
		}
		// Только геттеры: без аргументов, одно возвращаемое значение
		if m.Type.NumIn() != 1 || m.Type.NumOut() != 1 {
			return nil, false
		}
		return rv.Method(i).Call(nil)[0].Interface(), true
	}
	return nil, false
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
