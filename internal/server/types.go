package server

import (
	"time"

	"github.com/mersel/xslt-service/internal/profile"
)

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// LoginRequest carries operator credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the issued bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProfileRequest is the body for creating or updating a profile.
type ProfileRequest struct {
	Description     string                           `json:"description,omitempty"`
	Extends         string                           `json:"extends,omitempty"`
	Suppressions    []profile.SuppressionRule        `json:"suppressions,omitempty"`
	XsdOverrides    map[string][]profile.XsdOverride `json:"xsdOverrides,omitempty"`
	SchematronRules map[string][]profile.CustomRule  `json:"schematronRules,omitempty"`
}

// GlobalRulesRequest replaces the global custom rule map.
type GlobalRulesRequest struct {
	Rules map[string][]profile.CustomRule `json:"rules"`
}

// PackageInfo describes one syncable package in the catalog listing.
type PackageInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	URL         string `json:"url"`
	PendingID   string `json:"pendingVersionId,omitempty"`
}
