package usecase

import (
	"time"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/repo/persistent"
)

type UserUseCase interface {
	Get(id string) (*entity.User, error)
	List() ([]*entity.User, error)
	SetPermissions(id string, permissions []entity.Permission) (*entity.User, error)
	// ResetTokens revokes every token issued to the user before now.
	ResetTokens(id string) error
}

type userUseCase struct {
	userRepo persistent.UserRepository
}

func NewUserUseCase(userRepo persistent.UserRepository) UserUseCase {
	return &userUseCase{userRepo: userRepo}
}

func (uc *userUseCase) Get(id string) (*entity.User, error) {
	return uc.userRepo.GetByID(id)
}

func (uc *userUseCase) List() ([]*entity.User, error) {
	return uc.userRepo.GetAll()
}

func (uc *userUseCase) SetPermissions(id string, permissions []entity.Permission) (*entity.User, error) {
	for _, permission := range permissions {
		if !permission.Valid() {
			return nil, apperr.Validation("unknown permission %q", permission)
		}
	}
	if err := uc.userRepo.SetPermissions(id, permissions); err != nil {
		return nil, err
	}
	return uc.userRepo.GetByID(id)
}

func (uc *userUseCase) ResetTokens(id string) error {
	return uc.userRepo.SetLastTokenReset(id, time.Now())
}
