package tdms

import "errors"

var (
	// ErrUnsupportedVersion indicates that the TDMS file uses a version not supported by this library.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrReadFailed indicates that reading data from the underlying file or reader failed.
	ErrReadFailed = errors.New("failed to read data")

	// ErrInvalidFileFormat indicates that the TDMS file structure is malformed or doesn't conform to the specification.
	ErrInvalidFileFormat = errors.New("invalid file format")

	// ErrInvalidPath indicates that an object path within the TDMS file is not properly formatted.
	ErrInvalidPath = errors.New("invalid object path")

	// ErrUnsupportedType indicates that the data type encountered is not supported by this library.
	ErrUnsupportedType = errors.New("unsupported data type")

	// ErrIncorrectType indicates that a type assertion or conversion failed because the actual type differs from the expected type.
	ErrIncorrectType = errors.New("incorrect data type")

	// ErrInvalidUTF8 indicates that a length-prefixed string did not contain valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid utf-8 string")

	// ErrStringHasNoFixedSize indicates fixed_size was queried for the variable-length string type.
	ErrStringHasNoFixedSize = errors.New("string type has no fixed size")

	// ErrNoPreviousObject indicates a segment declared "matches previous value" for an
	// object that has never been seen before in an earlier segment.
	ErrNoPreviousObject = errors.New("no previous object to carry raw data index over from")

	// ErrChannelNotFound indicates that a channel path doesn't correspond to any known object.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrObjectHasNoRawData indicates that data was requested for an object that never
	// carries a raw-data type, e.g. a group or file-level object.
	ErrObjectHasNoRawData = errors.New("object has no raw data")
)
