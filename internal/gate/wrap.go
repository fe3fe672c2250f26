package gate

// Result — ответ обернутого метода. Called == false означает, что вызов подавлен,
// и Value тогда всегда нулевое значение T.
type Result[T any] struct {
	Value  T
	Called bool
}

func (r Result[T]) Suppressed() bool {
	return !r.Called
}

// Wrap0 оборачивает метод без аргументов.
func Wrap0[R, T any](g *Gate, fn func(R) T) func(R) (Result[T], error) {
	return func(recv R) (Result[T], error) {
		var res Result[T]
		d, err := g.Decide(recv)
		if err != nil || !d.Allowed {
			return res, err
		}
		return Result[T]{Value: fn(recv), Called: true}, nil
	}
}

// Wrap оборачивает метод с одним аргументом. Несколько аргументов передаются структурой.
func Wrap[R, A, T any](g *Gate, fn func(R, A) T) func(R, A) (Result[T], error) {
	return func(recv R, arg A) (Result[T], error) {
		var res Result[T]
		d, err := g.Decide(recv)
		if err != nil || !d.Allowed {
			return res, err
		}
		return Result[T]{Value: fn(recv, arg), Called: true}, nil
	}
}

// WrapErr — то же, что Wrap, для методов, возвращающих ошибку.
// Ошибка метода пробрасывается как есть, Called при этом true.
func WrapErr[R, A, T any](g *Gate, fn func(R, A) (T, error)) func(R, A) (Result[T], error) {
	return func(recv R, arg A) (Result[T], error) {
		var res Result[T]
		d, err := g.Decide(recv)
		if err != nil || !d.Allowed {
			return res, err
		}
		v, err := fn(recv, arg)
		return Result[T]{Value: v, Called: true}, err
	}
}

// WrapProc оборачивает метод без возвращаемого значения (только побочный эффект).
func WrapProc[R, A any](g *Gate, fn func(R, A)) func(R, A) (bool, error) {
	return func(recv R, arg A) (bool, error) {
		d, err := g.Decide(recv)
		if err != nil || !d.Allowed {
			return false, err
		}
		fn(recv, arg)
		return true, nil
	}
}
