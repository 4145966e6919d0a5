package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims lleva los claims estándar más el comercio en cuyo nombre actúa el portador.
// Toda ruta /api queda acotada a MerchantID.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"user_id"`
	MerchantID string `json:"merchant_id"`
}

// Generate firma un token HS256 para userID actuando sobre merchantID.
func Generate(secret, userID, merchantID, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: empty secret")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID:     userID,
		MerchantID: merchantID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Parse valida el token y devuelve userID y merchantID.
// Se rechazan tokens vencidos, alterados o que no sean HMAC.
func Parse(secret, tokenString string) (userID, merchantID string, err error) {
	if secret == "" {
		return "", "", fmt.Errorf("jwt: empty secret")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("jwt: invalid claims")
	}
	if claims.MerchantID == "" {
		return "", "", fmt.Errorf("jwt: token carries no merchant")
	}
	return claims.UserID, claims.MerchantID, nil
}
