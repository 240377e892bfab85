package models

import "github.com/golang-jwt/jwt/v5"

// Token subjects.
const (
	SubjectAdmin   = "admin"
	SubjectStudent = "student"
)

// AdminLoginRequest carries the username and the RSA encrypted password.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// StudentLoginRequest carries the id card number and encrypted password.
type StudentLoginRequest struct {
	IDCardNo string `json:"id_card_no" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AdminInfo is the operator summary stored by the desktop session.
type AdminInfo struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	Name          string    `json:"name"`
	Role          AdminRole `json:"role"`
	DepartmentIDs []int     `json:"department_ids"`
}

// AdminLoginResponse is returned by the admin login endpoint.
type AdminLoginResponse struct {
	AccessToken string     `json:"access_token"`
	Admin       *AdminInfo `json:"admin"`
}

// StudentLoginResponse is returned by the student login endpoint.
type StudentLoginResponse struct {
	AccessToken string   `json:"access_token"`
	User        *Student `json:"user"`
}

// PublicKeyResponse carries the PEM encoded login key.
type PublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID int       `json:"user_id"`
	Kind   string    `json:"kind"`
	Role   AdminRole `json:"role,omitempty"`
	jwt.RegisteredClaims
}
