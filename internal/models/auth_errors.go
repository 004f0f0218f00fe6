package models

import "github.com/gofiber/fiber/v2"

// Auth error codes use the provider-style "auth/<reason>" form clients already switch on.
const (
	AuthUserNotFound      = "auth/user-not-found"
	AuthWrongPassword     = "auth/wrong-password"
	AuthInvalidEmail      = "auth/invalid-email"
	AuthTooManyRequests   = "auth/too-many-requests"
	AuthEmailAlreadyInUse = "auth/email-already-in-use"
	AuthWeakPassword      = "auth/weak-password"
	AuthPasswordMismatch  = "auth/password-mismatch"
	AuthInvalidToken      = "auth/invalid-token"
	AuthLoginFailed       = "auth/login-failed"
	AuthSignupFailed      = "auth/signup-failed"
)

var authMessages = map[string]string{
	AuthUserNotFound:      "등록되지 않은 이메일입니다.",
	AuthWrongPassword:     "비밀번호가 올바르지 않습니다.",
	AuthInvalidEmail:      "유효하지 않은 이메일 형식입니다.",
	AuthTooManyRequests:   "너무 많은 시도로 인해 잠시 후 다시 시도해주세요.",
	AuthEmailAlreadyInUse: "이미 사용 중인 이메일입니다.",
	AuthWeakPassword:      "비밀번호가 너무 약합니다.",
	AuthPasswordMismatch:  "비밀번호가 일치하지 않습니다.",
	AuthInvalidToken:      "로그인이 필요합니다.",
	AuthLoginFailed:       "로그인 중 오류가 발생했습니다.",
	AuthSignupFailed:      "회원가입 중 오류가 발생했습니다.",
}

// AuthError is an authentication failure carrying a provider-style code.
type AuthError struct {
	Code string
	Err  error
}

func NewAuthError(code string, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message returns the localized, user-facing message for the code.
// Unknown codes fall back to the generic login message.
func (e *AuthError) Message() string {
	return AuthMessage(e.Code, AuthLoginFailed)
}

// Status returns the HTTP status the code is answered with.
func (e *AuthError) Status() int {
	switch e.Code {
	case AuthUserNotFound, AuthWrongPassword, AuthInvalidToken:
		return fiber.StatusUnauthorized
	case AuthTooManyRequests:
		return fiber.StatusTooManyRequests
	case AuthEmailAlreadyInUse:
		return fiber.StatusConflict
	case AuthInvalidEmail, AuthWeakPassword, AuthPasswordMismatch:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// AuthMessage maps a code to its localized message, using fallbackCode for unknown codes.
func AuthMessage(code, fallbackCode string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	return authMessages[fallbackCode]
}
