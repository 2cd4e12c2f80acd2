package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/auth"
	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/domain"
	"github.com/spec-kit/presence-service/internal/limiter"
	"github.com/spec-kit/presence-service/internal/repository"
	"github.com/spec-kit/presence-service/internal/uploads"
	apperrors "github.com/spec-kit/presence-service/pkg/util"
)

// AuthService coordinates signup, login and profile flows. It has no
// knowledge of the token wire format beyond the TokenManager it delegates to,
// and no knowledge of hashing beyond the auth package helpers.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	uploader   uploads.Uploader
	lim        limiter.Limiter
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates collaborator requirements for the service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Uploader uploads.Uploader
	Limiter  limiter.Limiter
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	lim := deps.Limiter
	if lim == nil {
		lim = limiter.Noop{}
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()),
		uploader:   deps.Uploader,
		lim:        lim,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     deps.Logger,
	}
}

// Signup creates a new account and issues its first token.
func (s *AuthService) Signup(ctx context.Context, fullName, email, password, bio string) (*domain.User, string, time.Time, error) {
	if fullName == "" || email == "" || password == "" || bio == "" {
		return nil, "", time.Time{}, apperrors.NewMissingField("Missing details")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewDuplicateEmail()
	} else if !isNotFound(err) {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Bio:          bio,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", time.Time{}, apperrors.NewDuplicateEmail()
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	token, exp, err := s.tokenMgr.Generate(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Login authenticates by email and password. Absent accounts and wrong
// passwords produce the same caller-visible failure; the distinction lives
// only in the logs.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*domain.User, string, time.Time, error) {
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewMissingField("Missing details")
	}

	ipHash := limiter.HashIP(clientIP)
	allowed, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		s.logger.Warn("login limiter unavailable", zap.Error(err))
	}
	if !allowed {
		return nil, "", time.Time{}, apperrors.NewRateLimited()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("login for unknown email", zap.String("email", email))
			_ = s.lim.Failure(ctx, email, ipHash)
			return nil, "", time.Time{}, apperrors.NewBadCredentials()
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Debug("login with wrong password", zap.String("user_id", user.ID))
		_ = s.lim.Failure(ctx, email, ipHash)
		return nil, "", time.Time{}, apperrors.NewBadCredentials()
	}
	_ = s.lim.Success(ctx, email, ipHash)

	token, exp, err := s.tokenMgr.Generate(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// UpdateProfile changes the caller's display fields; an optional profile
// picture arrives as a base64 data URL and is stored via the uploader.
func (s *AuthService) UpdateProfile(ctx context.Context, userID, fullName, bio, profilePic string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, apperrors.NewInternalError(err)
	}

	if fullName != "" {
		user.FullName = fullName
	}
	user.Bio = bio

	if profilePic != "" {
		if s.uploader == nil {
			return nil, apperrors.NewUploadFailed(errors.New("no uploader configured"))
		}
		url, err := s.uploader.Upload(ctx, profilePic)
		if err != nil {
			return nil, apperrors.NewUploadFailed(err)
		}
		user.ProfilePicURL = url
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, repository.ErrNotFound)
}
