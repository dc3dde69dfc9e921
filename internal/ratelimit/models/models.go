package models

import (
	"strings"
	"time"
)

// EndpointClass groups routes that share a budget.
type EndpointClass string

const (
	// ClassInvitation covers the token-bearing invitee routes.
	ClassInvitation EndpointClass = "invitation"
)

// Limit is a sliding-window budget.
type Limit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// RateLimitResult is the outcome of one check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// NewIPRateLimitKey builds the bucket key for a client IP within a class.
func NewIPRateLimitKey(ip string, class EndpointClass) string {
	return "rl:ip:" + SanitizeKeySegment(ip) + ":" + string(class)
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled
// segment cannot spill into a neighbouring bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
