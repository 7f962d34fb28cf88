// Package tokens выпуск и проверка JWT юзера. Токены выпускает внешний сервис авторизации с тем же ключом,
// здесь они только проверяются. GenerateUserJWT используется в тестах и локальной отладке.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

type UserClaims struct {
	jwt.RegisteredClaims
	ID int64 `json:"uid"`
}

func GenerateUserJWT(id int64, expire time.Duration, key []byte) (string, error) {
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expire)),
		},
		ID: id,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("generating user jwt token: %w", err)
	}
	return token, nil
}

// ParseUserID проверяет подпись и срок действия токена и возвращает ID юзера.
func ParseUserID(tokenString string, key []byte) (int64, error) {
	claims := new(UserClaims)
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ID <= 0 {
		return 0, fmt.Errorf("%w: empty user id", ErrInvalidToken)
	}
	return claims.ID, nil
}
