// Package service holds helpers shared by the domain services.
package service

import (
	"errors"

	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// StoreError converts a repository failure into an application error.
// AppErrors raised by the store (e.g. Unavailable) pass through unchanged.
func StoreError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Internal(err)
}
