// Package auth signs and verifies the short-lived tokens carried by local
// file links, so the local server only serves files it handed out.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filepool/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a token to one file of one site.
type Claims struct {
	jwt.RegisteredClaims
	SiteID string `json:"sid"`
	FileID string `json:"fid"`
}

func GenerateToken(siteID, fileID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		SiteID: siteID,
		FileID: fileID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies tokenString and returns its claims. Expired tokens
// yield common.ErrTokenExpired, anything else invalid common.ErrorInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrorInvalidToken
	}

	return claims, nil
}

// Verify checks that tokenString was issued for siteID/fileID.
func Verify(tokenString string, secretKey []byte, siteID, fileID string) error {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return err
	}
	if claims.SiteID != siteID || claims.FileID != fileID {
		return common.ErrorInvalidToken
	}
	return nil
}
