package utils

import (
	"github.com/golang-jwt/jwt"

	"page-token-service/infrastructure/logger"
)

// GenerateToken signs an HS256 JWT carrying the given claims. It mints the
// bearer tokens internal services present to the api route group.
func GenerateToken(payload map[string]interface{}, secretKey string) (string, error) {
	var claims jwt.MapClaims = payload
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while signing service token")
		return "", err
	}
	return tokenString, nil
}
