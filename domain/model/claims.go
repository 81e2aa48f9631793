package model

import "github.com/golang-jwt/jwt"

// UserClaims are the JWT claims carried by API callers.
type UserClaims struct {
	UserName string `json:"user_name"`
	AppID    string `json:"app_id"`
	jwt.StandardClaims
}
