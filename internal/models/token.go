package models

import (
	"time"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Verified token payload
type Token struct {
	ID        string // revocation key
	Subject   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type IssuedToken struct {
	ID        string
	Value     string
	ExpiresAt time.Time
}

// Token pair issues by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

type RevokedToken struct {
	TokenID   string
	RevokedAt time.Time
	ExpiresAt time.Time // revocation entry is useless after that time
}
