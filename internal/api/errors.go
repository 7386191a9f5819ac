package api

import "errors"

// ErrInvalidRequest marks client mistakes that map to HTTP 400.
var ErrInvalidRequest = errors.New("invalid_request")

// fieldError is an invalid request blamed on one request field. Param is
// empty for whole-body problems such as malformed JSON.
type fieldError struct {
	param string
	msg   string
}

func (e *fieldError) Error() string {
	return e.msg
}

func (e *fieldError) Unwrap() error {
	return ErrInvalidRequest
}

func invalidField(param, msg string) error {
	return &fieldError{param: param, msg: msg}
}

// errorParam names the request field an error is about, if any.
func errorParam(err error) string {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.param
	}
	return ""
}
