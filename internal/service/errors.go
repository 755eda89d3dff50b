package service

import (
	"errors"
	"fmt"

	"github.com/njrgourav11/service-buddy-sub000/internal/domain"
)

// storeError maps persistence sentinels onto the public error kinds. Typed
// errors raised by transition checks pass through untouched.
func storeError(op, id string, err error) error {
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, domain.ErrRecordNotFound):
		return &domain.Error{Kind: domain.KindNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrConcurrentModification):
		return &domain.Error{
			Kind:    domain.KindConflict,
			Message: fmt.Sprintf("%s %s: booking changed concurrently, reload and retry", op, id),
			Err:     err,
		}
	case errors.Is(err, domain.ErrDuplicate):
		return &domain.Error{Kind: domain.KindConflict, Message: fmt.Sprintf("%s %s: already exists", op, id)}
	default:
		return domain.Upstream(op, err)
	}
}
