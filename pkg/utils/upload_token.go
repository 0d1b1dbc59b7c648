package utils

import (
	"errors"
	"log/slog"
	"time"

	"github.com/crosspost-io/crosspost/internal/transfer"
	"github.com/golang-jwt/jwt/v5"
)

// GenerateUploadToken issues the capability that authorizes chunk and
// complete calls for one upload session.
func GenerateUploadToken(secretKey, uploadID string, expiresAt time.Time) (string, error) {
	claims := transfer.UploadTokenClaims{
		UploadID: uploadID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "crosspost",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	return signedToken, nil
}

func ValidateUploadToken(secretKey, tokenString string) (*transfer.UploadTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &transfer.UploadTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if claims, ok := token.Claims.(*transfer.UploadTokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
