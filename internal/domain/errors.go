package domain

import (
	"net/http"

	"github.com/spec-kit/session-service/pkg/util/errorutil"
)

// Token errors.
var (
	ErrMissingToken        = errorutil.NewDomainError("MISSING_TOKEN", "access token is missing", http.StatusUnauthorized, nil)
	ErrMalformedToken      = errorutil.NewDomainError("MALFORMED_TOKEN", "token is malformed or its signature is invalid", http.StatusUnauthorized, nil)
	ErrExpiredToken        = errorutil.NewDomainError("EXPIRED_TOKEN", "token has expired", http.StatusUnauthorized, nil)
	ErrUnsupportedToken    = errorutil.NewDomainError("UNSUPPORTED_TOKEN", "token uses an unsupported algorithm", http.StatusUnauthorized, nil)
	ErrInvalidRefreshToken = errorutil.NewDomainError("INVALID_REFRESH_TOKEN", "refresh token is invalid, please log in again", http.StatusUnauthorized, nil)
	ErrNoActiveSession     = errorutil.NewDomainError("NO_ACTIVE_SESSION", "no active session, please log in again", http.StatusUnauthorized, nil)
)

// Account errors.
var (
	ErrBadCredentials    = errorutil.NewDomainError("BAD_CREDENTIALS", "invalid username or password", http.StatusUnauthorized, nil)
	ErrAccountNotFound   = errorutil.NewDomainError("ACCOUNT_NOT_FOUND", "account not found", http.StatusNotFound, nil)
	ErrAlreadySignedOut  = errorutil.NewDomainError("ALREADY_SIGNED_OUT", "user is already logged out", http.StatusBadRequest, nil)
	ErrDuplicateUsername = errorutil.NewDomainError("DUPLICATE_USERNAME", "username is already in use", http.StatusConflict, nil)
	ErrDuplicateNickname = errorutil.NewDomainError("DUPLICATE_NICKNAME", "nickname is already in use", http.StatusConflict, nil)
)

// Backing store errors.
var (
	ErrStoreUnavailable = errorutil.NewDomainError("STORE_UNAVAILABLE", "session store unavailable", http.StatusInternalServerError, nil)
	ErrStoreWriteFailed = errorutil.NewDomainError("STORE_WRITE_FAILED", "session could not be persisted", http.StatusInternalServerError, nil)
)
