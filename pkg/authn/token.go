package authn

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trackora/workforce-idm/pkg/apperrors"
)

// sessionTokenLifetime bounds how long an issued token stays valid.
const sessionTokenLifetime = 24 * time.Hour

// signToken issues an HS256 session token carrying the account id in the
// subject claim.
func signToken(secret []byte, accountID uuid.UUID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   accountID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwt.NewNumericDate(time.Now().UTC().Add(sessionTokenLifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// TokenValidator resolves a Principal from an existing session token without
// a network round trip. Used on the cold-start/resume path where the client
// already holds a token and only the device check needs to run.
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator over the shared signing secret.
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{
		secret: []byte(secret),
	}
}

// Validate parses and verifies the session token and returns the principal
// it represents. The account id is carried in the subject claim.
func (v *TokenValidator) Validate(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "failed to parse session token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, apperrors.New(apperrors.ErrCodeTokenInvalid, "session token has no subject")
	}

	accountID, err := uuid.Parse(subject)
	if err != nil {
		return Principal{}, apperrors.Wrap(err, apperrors.ErrCodeTokenInvalid, "session token subject is not an account id")
	}

	return Principal{
		AccountID: accountID,
		Token:     tokenString,
	}, nil
}
