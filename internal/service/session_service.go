package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/auth"
	"github.com/spec-kit/session-service/internal/config"
	"github.com/spec-kit/session-service/internal/domain"
	"github.com/spec-kit/session-service/internal/events"
	"github.com/spec-kit/session-service/internal/repository"
)

// SessionService coordinates login, logout, sign-out and explicit refresh.
type SessionService struct {
	verifier   *auth.CredentialVerifier
	codec      *auth.TokenCodec
	store      repository.RefreshTokenRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	cfg        config.AuthConfig
	logger     *zap.Logger
}

// SessionDependencies encapsulates collaborators for the session service.
type SessionDependencies struct {
	Verifier     *auth.CredentialVerifier
	Codec        *auth.TokenCodec
	RefreshStore repository.RefreshTokenRepository
	UserRepo     repository.UserRepository
	Dispatcher   events.Dispatcher
}

// NewSessionService builds the service.
func NewSessionService(cfg config.AuthConfig, deps SessionDependencies, logger *zap.Logger) *SessionService {
	return &SessionService{
		verifier:   deps.Verifier,
		codec:      deps.Codec,
		store:      deps.RefreshStore,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		cfg:        cfg,
		logger:     logger.Named("session"),
	}
}

// Login verifies credentials and opens a session, replacing any previous one.
func (s *SessionService) Login(ctx context.Context, subject, password string) (*domain.TokenPair, error) {
	user, err := s.verifier.Verify(ctx, subject, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", zap.String("subject", user.Username))
	s.publish(ctx, events.NewEvent(events.EventSessionLogin, user.Username, events.LoginPayload{
		Role:             string(user.Role),
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}))
	return pair, nil
}

// Logout ends the subject's session. Calling it without a session is not an
// error; removed reports whether one existed.
func (s *SessionService) Logout(ctx context.Context, subject string) (bool, error) {
	removed, err := s.store.Delete(ctx, subject)
	if err != nil {
		return false, err
	}

	s.logger.Info("logout", zap.String("subject", subject), zap.Bool("had_session", removed))
	s.publish(ctx, events.NewEvent(events.EventSessionLogout, subject, events.LogoutPayload{HadSession: removed}))
	return removed, nil
}

// SignOut deletes the account after re-checking the password. The session is
// removed before the account, so ErrAccountNotFound leaves it logged out.
func (s *SessionService) SignOut(ctx context.Context, subject, password string) error {
	if _, ok := s.store.Get(ctx, subject); !ok {
		return domain.ErrAlreadySignedOut
	}

	if _, err := s.verifier.Verify(ctx, subject, password); err != nil {
		return err
	}

	if _, err := s.store.Delete(ctx, subject); err != nil {
		return err
	}

	rows, err := s.users.DeleteBySubject(ctx, subject)
	if err != nil {
		return fmt.Errorf("delete account %q: %w", subject, err)
	}
	if rows == 0 {
		s.logger.Warn("sign-out found no account", zap.String("subject", subject))
		s.publish(ctx, events.NewEvent(events.EventSessionSignout, subject, events.SignoutPayload{AccountRemoved: false}))
		return domain.ErrAccountNotFound
	}

	s.logger.Info("signed out", zap.String("subject", subject))
	s.publish(ctx, events.NewEvent(events.EventSessionSignout, subject, events.SignoutPayload{AccountRemoved: true}))
	return nil
}

// Refresh trades an access token, expired or not, for a new pair as long as
// the subject still holds a valid stored refresh token.
func (s *SessionService) Refresh(ctx context.Context, accessToken string) (*domain.TokenPair, error) {
	access, err := s.codec.Decode(accessToken)
	if err != nil && !errors.Is(err, domain.ErrExpiredToken) {
		return nil, err
	}
	if access.Kind != domain.TokenKindAccess {
		return nil, domain.ErrMalformedToken
	}

	stored, ok := s.store.Get(ctx, access.Subject)
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	refresh, err := s.codec.Decode(stored)
	if err != nil || refresh.Kind != domain.TokenKindRefresh || refresh.Subject != access.Subject {
		return nil, domain.ErrInvalidRefreshToken
	}

	pair, err := s.issuePair(ctx, refresh.Subject, refresh.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tokens refreshed", zap.String("subject", refresh.Subject))
	s.publish(ctx, events.NewEvent(events.EventSessionReissue, refresh.Subject,
		events.ReissuePayload{Source: "refresh", Rotated: true}))
	return pair, nil
}

func (s *SessionService) issuePair(ctx context.Context, subject string, role domain.Role) (*domain.TokenPair, error) {
	access, accessExp, err := s.codec.Mint(domain.TokenKindAccess, subject, role, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}
	refresh, refreshExp, err := s.codec.Mint(domain.TokenKindRefresh, subject, role, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	if err := s.store.Save(ctx, subject, refresh, refreshExp); err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *SessionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
