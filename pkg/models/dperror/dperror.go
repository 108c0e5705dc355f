package dperror

import (
	"errors"
	"fmt"
)

const (
	DP_UNEXPECTED                = "DPU"
	DP_ROUTING_ERROR             = "DPR"
	DP_RPC_ERROR                 = "DPC"
	DP_TIMEOUT                   = "DPT"
	DP_RESOURCE_HOLDER_VIOLATION = "DPH"
	DP_LIMIT_EXCEEDED            = "DPL"
	DP_INVALID_CONFIG            = "DPI"
	DP_STREAM_CLOSED             = "DPS"
	DP_SQL_PARSE                 = "DPQ"
	DP_NO_SUCH_ELEMENT           = "DPN"
)

var existingErrorCodeMap = map[string]string{
	DP_UNEXPECTED:                "unexpected error",
	DP_ROUTING_ERROR:             "routing error",
	DP_RPC_ERROR:                 "rpc error",
	DP_TIMEOUT:                   "timeout",
	DP_RESOURCE_HOLDER_VIOLATION: "resource holder violation",
	DP_LIMIT_EXCEEDED:            "concurrency limit exceeded",
	DP_INVALID_CONFIG:            "invalid config",
	DP_STREAM_CLOSED:             "stream closed",
	DP_SQL_PARSE:                 "sql parse error",
	DP_NO_SUCH_ELEMENT:           "no such element",
}

// GetMessageByCode returns the human readable name of an error code.
func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "Unexpected error"
}

var _ error = &DataPlaneError{}

type DataPlaneError struct {
	Err error

	ErrorCode string
	ErrHint   string
}

// New creates a DataPlaneError with the given code and message.
func New(errorCode string, errorMsg string) *DataPlaneError {
	return &DataPlaneError{
		Err:       errors.New(errorMsg),
		ErrorCode: errorCode,
	}
}

// Newf is New with a format string.
func Newf(errorCode string, format string, a ...any) *DataPlaneError {
	return &DataPlaneError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

// NewByCode creates an error whose message is the default message of the code.
func NewByCode(errorCode string) *DataPlaneError {
	return New(errorCode, GetMessageByCode(errorCode))
}

// Wrap attaches a code to an existing error.
func Wrap(errorCode string, err error) *DataPlaneError {
	return &DataPlaneError{
		Err:       err,
		ErrorCode: errorCode,
	}
}

func (er *DataPlaneError) Error() string {
	if er.ErrHint != "" {
		return fmt.Sprintf("%s: %v (hint: %s)", GetMessageByCode(er.ErrorCode), er.Err, er.ErrHint)
	}
	return fmt.Sprintf("%s: %v", GetMessageByCode(er.ErrorCode), er.Err)
}

func (er *DataPlaneError) Unwrap() error {
	return er.Err
}

// WithHint returns a copy of the error carrying a hint for the caller.
func (er *DataPlaneError) WithHint(hint string) *DataPlaneError {
	return &DataPlaneError{
		Err:       er.Err,
		ErrorCode: er.ErrorCode,
		ErrHint:   hint,
	}
}

// IsCode reports whether any error in err's chain is a DataPlaneError with the given code.
func IsCode(err error, code string) bool {
	var de *DataPlaneError
	if errors.As(err, &de) {
		return de.ErrorCode == code
	}
	return false
}
