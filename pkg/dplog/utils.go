package dplog

import (
	"io"
	"os"
	"reflect"
)

// GetPointer returns the memory address of the given value as an unsigned integer.
// It is used to tell shared resources apart in log lines.
func GetPointer(value any) uint {
	ptr := reflect.ValueOf(value).Pointer()
	return uint(ptr)
}

// newWriter opens filepath in append mode, or returns os.Stdout when the path is empty.
func newWriter(filepath string) (*os.File, io.Writer, error) {
	if filepath == "" {
		return nil, os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
