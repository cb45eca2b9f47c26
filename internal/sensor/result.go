package sensor

// Result is the outcome of one driver call: a value or a fault, never both.
type Result[T any] struct {
	value T
	fault error
}

// Ok wraps a successfully read value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fault wraps the reason a driver call failed. A nil err is recorded as an
// unknown fault so the result is never mistaken for Ok.
func Fault[T any](err error) Result[T] {
	if err == nil {
		err = errUnknownFault
	}
	return Result[T]{fault: err}
}

// IsFault reports whether the call failed.
func (r Result[T]) IsFault() bool {
	return r.fault != nil
}

// Unwrap returns the value and the fault. The value is the zero value of T
// when the result is a fault.
func (r Result[T]) Unwrap() (T, error) {
	return r.value, r.fault
}

// Err returns the fault, or nil.
func (r Result[T]) Err() error {
	return r.fault
}
