package usecase

import (
	"time"
	"unicode"

	"bookstack/internal/apperr"
	"bookstack/internal/entity"
	"bookstack/internal/repo/persistent"
	"bookstack/pkg/jwt"
	"bookstack/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	BcryptCost             int
	PasswordRequireSpecial bool
	BootstrapAdmin         bool
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthUseCase interface {
	Register(username, password string) (*entity.User, error)
	Login(username, password string) (*entity.User, *TokenPair, error)
	Refresh(rawRefreshToken string) (string, error)
	Logout(refreshHash string) error
	// ResolveActor maps access token claims to the current user, enforcing
	// the last-token-reset cutoff.
	ResolveActor(userID string, issuedAt time.Time) (*entity.User, error)
	// SweepExpiredTokens drops stored refresh tokens whose expiry passed.
	SweepExpiredTokens() error
}

type authUseCase struct {
	userRepo   persistent.UserRepository
	tokenRepo  persistent.TokenRepository
	jwtService *jwt.Service
	config     AuthConfig
	logger     *logger.Logger
}

func NewAuthUseCase(
	userRepo persistent.UserRepository,
	tokenRepo persistent.TokenRepository,
	jwtService *jwt.Service,
	config AuthConfig,
	logger *logger.Logger,
) AuthUseCase {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &authUseCase{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtService: jwtService,
		config:     config,
		logger:     logger,
	}
}

func (uc *authUseCase) Register(username, password string) (*entity.User, error) {
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if err := uc.checkPasswordPolicy(password); err != nil {
		return nil, err
	}

	if _, err := uc.userRepo.GetByUsername(username); err == nil {
		return nil, apperr.Conflict("user with the name %s already exists", username)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), uc.config.BcryptCost)
	if err != nil {
		uc.logger.Error("Failed to hash password: %v", err)
		return nil, err
	}

	permissions := []entity.Permission{entity.PermissionCreate}
	if uc.config.BootstrapAdmin {
		count, err := uc.userRepo.Count()
		if err != nil {
			return nil, err
		}
		// Bootstrap: the very first account administers the instance.
		if count == 0 {
			permissions = []entity.Permission{entity.PermissionAdmin}
		}
	}

	user := &entity.User{
		Username:       username,
		PasswordHash:   string(hashed),
		Permissions:    permissions,
		LastTokenReset: time.Unix(0, 0),
	}
	if err := uc.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// checkPasswordPolicy requires at least 8 characters with an upper-case
// letter, a lower-case letter and a digit; a config switch additionally
// requires a special character.
func (uc *authUseCase) checkPasswordPolicy(password string) error {
	if len(password) < 8 {
		return apperr.Validation("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return apperr.Validation("password must contain upper and lower case letters and a digit")
	}
	if uc.config.PasswordRequireSpecial && !hasSpecial {
		return apperr.Validation("password must contain a special character")
	}
	return nil
}

func (uc *authUseCase) Login(username, password string) (*entity.User, *TokenPair, error) {
	user, err := uc.userRepo.GetByUsername(username)
	if err != nil {
		return nil, nil, apperr.Unauthenticated("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.Unauthenticated("invalid credentials")
	}

	refreshToken, err := uc.jwtService.GenerateRefreshToken(user.ID)
	if err != nil {
		uc.logger.Error("Failed to generate refresh token: %v", err)
		return nil, nil, err
	}

	claims, err := uc.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, nil, err
	}

	hash := jwt.HashToken(refreshToken)
	if err := uc.tokenRepo.Upsert(&entity.Token{
		Hash:      hash,
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}); err != nil {
		uc.logger.Error("Failed to store refresh token: %v", err)
		return nil, nil, err
	}

	accessToken, err := uc.jwtService.GenerateAccessToken(user.ID, hash)
	if err != nil {
		uc.logger.Error("Failed to generate access token: %v", err)
		return nil, nil, err
	}

	return user, &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (uc *authUseCase) Refresh(rawRefreshToken string) (string, error) {
	claims, err := uc.jwtService.ValidateRefreshToken(rawRefreshToken)
	if err != nil {
		return "", apperr.Unauthenticated("invalid refresh token")
	}

	hash := jwt.HashToken(rawRefreshToken)
	stored, err := uc.tokenRepo.GetByHash(hash)
	if err != nil || time.Now().After(stored.ExpiresAt) {
		return "", apperr.Forbidden("refresh token was not found in valid refresh tokens list")
	}

	user, err := uc.ResolveActor(claims.UserID, claims.IssuedAt.Time)
	if err != nil {
		return "", err
	}

	return uc.jwtService.GenerateAccessToken(user.ID, hash)
}

func (uc *authUseCase) Logout(refreshHash string) error {
	if refreshHash == "" {
		return apperr.Validation("token carries no refresh hash")
	}
	return uc.tokenRepo.DeleteByHash(refreshHash)
}

func (uc *authUseCase) SweepExpiredTokens() error {
	return uc.tokenRepo.DeleteExpired(time.Now())
}

func (uc *authUseCase) ResolveActor(userID string, issuedAt time.Time) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("user can't be found")
		}
		return nil, err
	}
	if user.LastTokenReset.After(issuedAt) {
		return nil, apperr.Unauthenticated("token has been revoked")
	}
	return user, nil
}
