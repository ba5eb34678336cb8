// Package account_repo provides the PostgreSQL account repository.
package account_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"condo/internal/core/apperror"
	"condo/internal/domain/account"
	"condo/internal/infrastructure/storage/postgres"
)

const (
	userTable = "users"

	// unique (mobile)
	userMobileConstraint = "users_mobile_key"
)

// UserRepo implements account.Repository.
type UserRepo struct {
	*postgres.BaseRepo[*account.User]
}

var _ account.Repository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txm *postgres.TxManager) *UserRepo {
	return &UserRepo{
		BaseRepo: postgres.NewBaseRepo(txm, "User", userTable, func() *account.User { return &account.User{} }),
	}
}

// Create inserts an account.
func (r *UserRepo) Create(ctx context.Context, user *account.User) error {
	if err := r.BaseRepo.Create(ctx, user); err != nil {
		return mapUserError(err, user)
	}
	return nil
}

// Update writes the account with optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *account.User) error {
	if err := r.BaseRepo.Update(ctx, user); err != nil {
		return mapUserError(err, user)
	}
	return nil
}

// GetByMobile looks an account up by its normalized mobile.
func (r *UserRepo) GetByMobile(ctx context.Context, mobile string) (*account.User, error) {
	mobile = account.NormalizeMobile(mobile)
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"mobile": mobile}).Limit(1), mobile)
}

func mapUserError(err error, user *account.User) error {
	if postgres.IsUniqueViolation(err, userMobileConstraint) {
		return apperror.NewDuplicateMobile("mobile", user.Mobile).WithCause(err)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return fmt.Errorf("user %s: %w", user.ID, err)
}
