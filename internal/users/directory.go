package users

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mahima-medicare/healthstack-backend/pkg/db/models"
)

// Directory resolves order owners to their contact email. Implements the
// recipient lookup the notification emailer depends on.
type Directory struct {
	repo *Repository
}

// NewDirectory wraps the users repository for recipient resolution.
func NewDirectory(repo *Repository) *Directory {
	return &Directory{repo: repo}
}

// EmailForUser returns the order owner's email, or empty when the account is
// missing or inactive. Missing accounts are not an error for best-effort mail.
func (d *Directory) EmailForUser(ctx context.Context, order *models.Order) (string, error) {
	if d == nil || d.repo == nil || order == nil {
		return "", nil
	}
	user, err := d.repo.FindByID(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	if !user.IsActive {
		return "", nil
	}
	return user.Email, nil
}
