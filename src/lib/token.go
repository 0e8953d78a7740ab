package lib

import (
	"coachbook/src/types"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyIDToken parses and validates an identity token. Bookings carry
// the token in the request body rather than a header, so handlers call
// this directly.
func VerifyIDToken(token string) (*types.Claims, error) {
	jwtKey := []byte(os.Getenv("JWT_SECRET"))
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func GenerateIDToken(uid string, email string) (string, error) {
	jwtKey := []byte(os.Getenv("JWT_SECRET"))
	claims := &types.Claims{
		Email: email,
		UID:   uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	tkn := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tkn.SignedString(jwtKey)
}
