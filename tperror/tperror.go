// Package tperror maps business, transport and timeout failures into the
// stable protocol error codes exchanged between participants.
package tperror

import (
	"errors"
	"fmt"
)

type TPError struct {
	Code        string
	Description string
}

func (e TPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// ErrorInformation is the wire shape carried in error callbacks and
// persisted on an errored workflow's data bag.
type ErrorInformation struct {
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (e TPError) Information() ErrorInformation {
	return ErrorInformation{
		ErrorCode:        e.Code,
		ErrorDescription: e.Description,
	}
}

func FromInformation(info ErrorInformation) TPError {
	return TPError{Code: info.ErrorCode, Description: info.ErrorDescription}
}

// Reformat maps an arbitrary error to a protocol error. TPError values
// pass through unchanged; everything else collapses to fallback, or to
// ServerError when no fallback is given. Callers log the original error
// before reformatting.
func Reformat(err error, fallback ...TPError) TPError {
	var tpErr TPError
	if errors.As(err, &tpErr) {
		return tpErr
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ServerError
}
