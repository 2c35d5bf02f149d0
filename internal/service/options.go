package service

import (
	"errors"
	"fmt"
)

// ErrInvalidLimit is returned for a non-positive limit
var ErrInvalidLimit = errors.New("invalid limit")

// Option is a function that sets an option for service operations
type Option func(o any) error

type limitOption interface {
	setLimit(limit int) error
}

// ListPendingOptions is the options for the ListPendingRepositoryIDs operation
type ListPendingOptions struct {
	Limit int
}

func (o *ListPendingOptions) setLimit(limit int) error {
	o.Limit = limit
	return nil
}

// WithLimit caps the number of results of a list operation
func WithLimit(limit int) Option {
	return func(o any) error {
		if limit <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
		}

		switch o := o.(type) {
		case limitOption:
			return o.setLimit(limit)
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
	}
}
