package result

// Outcome is a successful per-node result that can be merged with its peers
// and folded into a failure.
type Outcome[T any] interface {
	Combine(T) T
	FoldInto(*Err) *Err
}

// Combine merges two per-node results:
//   - Ok + Ok merges the outcomes;
//   - Ok + Err folds the success into the failure;
//   - Err + Err appends b's chain to a's, keeping a's head.
//
// Totals do not depend on grouping, but with two failures the head reported
// first does: callers must not rely on which endpoint's error is the head.
func Combine[T Outcome[T]](a, b Result[T, *Err]) Result[T, *Err] {
	switch {
	case a.IsOk() && b.IsOk():
		return Ok[T, *Err](a.GetOk().Combine(b.GetOk()))
	case a.IsOk():
		return Fail[T](a.GetOk().FoldInto(b.GetErr()))
	case b.IsOk():
		return Fail[T](b.GetOk().FoldInto(a.GetErr()))
	default:
		return Fail[T](a.GetErr().Combine(b.GetErr()))
	}
}

// CombineAll left-folds rest into first.
func CombineAll[T Outcome[T]](first Result[T, *Err], rest ...Result[T, *Err]) Result[T, *Err] {
	acc := first
	for _, r := range rest {
		acc = Combine(acc, r)
	}
	return acc
}
