package accessor

import "errors"

// error related variables; store errors are returned as-is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrSerialization   = errors.New("value can't be serialized")
	ErrDeserialization = errors.New("stored value can't be deserialized")
)
