package stream

import "github.com/pg-sharding/dataplane/pkg/models/dperror"

// FlatIterator pulls batches from a BlockingIterator and yields their elements
// one by one.
type FlatIterator[T, U any] struct {
	src     *BlockingIterator[T]
	flatten func(T) []U

	batch []U
	pos   int
}

func NewFlatIterator[T, U any](src *BlockingIterator[T], flatten func(T) []U) *FlatIterator[T, U] {
	return &FlatIterator[T, U]{
		src:     src,
		flatten: flatten,
	}
}

func (it *FlatIterator[T, U]) HasNext() (bool, error) {
	for it.pos >= len(it.batch) {
		ok, err := it.src.HasNext()
		if err != nil || !ok {
			return false, err
		}
		b, err := it.src.Next()
		if err != nil {
			return false, err
		}
		it.batch = it.flatten(b)
		it.pos = 0
	}
	return true, nil
}

func (it *FlatIterator[T, U]) Next() (U, error) {
	if it.pos >= len(it.batch) {
		var zero U
		return zero, dperror.New(dperror.DP_NO_SUCH_ELEMENT, "Next called without a successful HasNext")
	}
	v := it.batch[it.pos]
	it.pos++
	return v, nil
}

func (it *FlatIterator[T, U]) Close() {
	it.src.Close()
}
