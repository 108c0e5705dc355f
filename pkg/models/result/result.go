// Package result holds the outcome algebra of the data plane: a two-variant
// Result type and the write/query outcomes that are combined when a logical
// request is fanned out over several storage nodes.
package result

import "fmt"

// Result holds either an Ok value or an Err value, never both.
type Result[T, E any] struct {
	ok   T
	err  E
	isOk bool
}

func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{ok: v, isOk: true}
}

func Fail[T, E any](e E) Result[T, E] {
	return Result[T, E]{err: e}
}

func (r Result[T, E]) IsOk() bool {
	return r.isOk
}

// GetOk returns the Ok value, or the zero value of T for an Err result.
func (r Result[T, E]) GetOk() T {
	return r.ok
}

// GetErr returns the Err value, or the zero value of E for an Ok result.
func (r Result[T, E]) GetErr() E {
	return r.err
}

func (r Result[T, E]) UnwrapOr(def T) T {
	if r.isOk {
		return r.ok
	}
	return def
}

func (r Result[T, E]) UnwrapOrElse(fallback func(E) T) T {
	if r.isOk {
		return r.ok
	}
	return fallback(r.err)
}

func (r Result[T, E]) String() string {
	if r.isOk {
		return fmt.Sprintf("Ok(%v)", r.ok)
	}
	return fmt.Sprintf("Err(%v)", r.err)
}

// Map transforms the Ok value and passes an Err through untouched.
func Map[T, U, E any](r Result[T, E], f func(T) U) Result[U, E] {
	if r.isOk {
		return Ok[U, E](f(r.ok))
	}
	return Fail[U](r.err)
}

// MapErr transforms the Err value and passes an Ok through untouched.
func MapErr[T, E, F any](r Result[T, E], f func(E) F) Result[T, F] {
	if r.isOk {
		return Ok[T, F](r.ok)
	}
	return Fail[T](f(r.err))
}

// MapOr projects the Ok value, returning def for an Err.
func MapOr[T, U, E any](r Result[T, E], def U, f func(T) U) U {
	if r.isOk {
		return f(r.ok)
	}
	return def
}

// MapOrElse projects either variant to a plain value.
func MapOrElse[T, U, E any](r Result[T, E], fallback func(E) U, f func(T) U) U {
	if r.isOk {
		return f(r.ok)
	}
	return fallback(r.err)
}

// AndThen calls f with the Ok value. An Err is returned as is and f is not called.
func AndThen[T, U, E any](r Result[T, E], f func(T) Result[U, E]) Result[U, E] {
	if r.isOk {
		return f(r.ok)
	}
	return Fail[U](r.err)
}

// OrElse calls f with the Err value. An Ok is returned as is and f is not called.
func OrElse[T, E, F any](r Result[T, E], f func(E) Result[T, F]) Result[T, F] {
	if r.isOk {
		return Ok[T, F](r.ok)
	}
	return f(r.err)
}
