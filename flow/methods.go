package flow

import (
	"fmt"
	"reflect"
	"strings"
)

var (
	anyType   = reflect.TypeFor[any]()
	boolType  = reflect.TypeFor[bool]()
	errorType = reflect.TypeFor[error]()
)

// methodKind selects which signatures a named method may have.
type methodKind int

const (
	// predicateMethod returns exactly one bool.
	predicateMethod methodKind = iota
	// effectMethod returns nothing or a single error.
	effectMethod
	// resolverMethod returns exactly one value, canonicalized with StateOf.
	resolverMethod
)

func (k methodKind) String() string {
	switch k {
	case predicateMethod:
		return "func(...any) bool"
	case effectMethod:
		return "func(...any) error"
	case resolverMethod:
		return "func(...any) State"
	default:
		return "unknown"
	}
}

// methodRef is a subject method resolved by name at declaration time.
// Methods take either no arguments or a single variadic ...any, which
// receives the invocation arguments.
type methodRef struct {
	name     string
	variadic bool
	kind     methodKind
}

// resolveMethod looks up name on T and checks its signature against kind.
func resolveMethod[T any](name string, kind methodKind) (methodRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return methodRef{}, ErrEmptyName
	}

	typ := reflect.TypeFor[T]()

	method, ok := typ.MethodByName(name)
	if !ok {
		return methodRef{}, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, typeName(typ), name)
	}

	mt := method.Type

	// Methods of concrete types carry their receiver as the first parameter.
	offset := 1
	if typ.Kind() == reflect.Interface {
		offset = 0
	}

	ref := methodRef{name: name, kind: kind}

	switch mt.NumIn() - offset {
	case 0:
	case 1:
		if !mt.IsVariadic() || mt.In(offset).Elem() != anyType {
			return methodRef{}, fmt.Errorf("%w: %s.%s must be %s", ErrInvalidMethod, typeName(typ), name, kind)
		}

		ref.variadic = true
	default:
		return methodRef{}, fmt.Errorf("%w: %s.%s must be %s", ErrInvalidMethod, typeName(typ), name, kind)
	}

	if !kind.accepts(mt) {
		return methodRef{}, fmt.Errorf("%w: %s.%s must be %s", ErrInvalidMethod, typeName(typ), name, kind)
	}

	return ref, nil
}

func (k methodKind) accepts(mt reflect.Type) bool {
	switch k {
	case predicateMethod:
		return mt.NumOut() == 1 && mt.Out(0) == boolType
	case effectMethod:
		return mt.NumOut() == 0 || (mt.NumOut() == 1 && mt.Out(0) == errorType)
	case resolverMethod:
		return mt.NumOut() == 1
	default:
		return false
	}
}

// call invokes the method on subject, forwarding args when the method is variadic.
func (m methodRef) call(subject any, args []any) []reflect.Value {
	fn := reflect.ValueOf(subject).MethodByName(m.name)

	if !m.variadic {
		return fn.Call(nil)
	}

	in := make([]reflect.Value, len(args))

	for i, arg := range args {
		if arg == nil {
			in[i] = reflect.Zero(anyType)
		} else {
			in[i] = reflect.ValueOf(arg)
		}
	}

	return fn.Call(in)
}

// methodPredicate adapts a resolved predicate method.
func methodPredicate[T Subject](ref methodRef) Predicate[T] {
	return func(subject T, args ...any) bool {
		return ref.call(subject, args)[0].Bool()
	}
}

// methodEffect adapts a resolved effect method.
func methodEffect[T Subject](ref methodRef) Effect[T] {
	return func(subject T, args ...any) error {
		out := ref.call(subject, args)
		if len(out) == 0 || out[0].IsNil() {
			return nil
		}

		err, _ := out[0].Interface().(error)

		return err
	}
}

// methodResolver adapts a resolved destination method.
func methodResolver[T Subject](ref methodRef) Resolver[T] {
	return func(subject T, args ...any) State {
		return StateOf(ref.call(subject, args)[0].Interface())
	}
}

// SubjectTypeOf returns the name flows use for T: the type name with any
// pointer indirection removed.
func SubjectTypeOf[T any]() string {
	return typeName(reflect.TypeFor[T]())
}

func typeName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.Name() != "" {
		return typ.Name()
	}

	return typ.String()
}
