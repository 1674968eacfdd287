package async

import "errors"

var (
	ErrAlreadySubmitted = errors.New("payable call already submitted")
	ErrIllegalState     = errors.New("payable call not submitted, call WithValue first")
	ErrNotDone          = errors.New("transaction outcome not available yet")
)
