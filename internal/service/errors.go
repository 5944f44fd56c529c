package service

import "github.com/pressgate/pressgate/internal/apperr"

// Service-level sentinels. ErrInvalidCredentials covers three distinct login
// failures (unknown email, wrong password, deactivated account) with one
// message on purpose: distinguishable errors would let a caller enumerate
// accounts.
var (
	ErrInvalidCredentials = apperr.New(apperr.KindAuthentication, "Invalid email or password")
	ErrInvalidToken       = apperr.New(apperr.KindAuthentication, "Invalid or expired token")
	ErrInvalidSession     = apperr.New(apperr.KindAuthentication, "Invalid or expired session")
	ErrSessionNotFound    = apperr.New(apperr.KindNotFound, "Session not found")
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "User not found")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "Email is already registered")
	ErrWeakPassword       = apperr.New(apperr.KindValidation, "Password must be at least 8 characters")
	ErrInvalidRole        = apperr.New(apperr.KindValidation, "Role must be one of: user, author, admin")
	ErrLastAdmin          = apperr.New(apperr.KindPolicy, "Cannot remove the last admin user")
	ErrPromoteInactive    = apperr.New(apperr.KindPolicy, "Cannot promote an inactive user; activate the account first")
)
