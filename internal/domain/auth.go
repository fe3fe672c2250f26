package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — JWT, который несет атрибуты получателя.
// Гейты HTTP/gRPC читают атрибуты отсюда раньше, чем из заголовков.
type CustomClaims struct {
	Attributes map[string]any `json:"attrs,omitempty"` // "language": "go", "tier": "gold"
	jwt.RegisteredClaims
}
