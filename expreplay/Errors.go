package expreplay

import "errors"

// DatasetError implements errors unique to a replay dataset
type DatasetError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *DatasetError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *DatasetError) Unwrap() error {
	return e.Err
}

// ErrMissingField reports that a checkpoint file for one of the stored
// fields could not be found
var ErrMissingField = errors.New("missing dataset field")

var errExhausted = errors.New("dataset exhausted")

var errEmptyDataset = errors.New("dataset empty")

// IsExhausted returns whether or not an error reports that all recorded
// transitions of a dataset have been replayed
func IsExhausted(err error) bool {
	return errors.Is(err, errExhausted)
}

// IsEmptyDataset returns whether or not an error reports that a dataset
// holds no transitions
func IsEmptyDataset(err error) bool {
	return errors.Is(err, errEmptyDataset)
}

// Exhausted returns the error reported when the dataset has no more
// transitions to replay
func Exhausted(op string) error {
	return &DatasetError{Op: op, Err: errExhausted}
}
