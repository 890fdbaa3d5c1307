package utils

import (
	"time"
)

// ContextKey namespaces values stored in request contexts
type ContextKey string

// Request context keys set by handlers and read by flows and the logger
const (
	RequestIDKey ContextKey = "X-Request-ID"
	UserAgentKey ContextKey = "User-Agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
	TimeoutKey   ContextKey = "timeout"
)

// Request handling constants
const (
	// RedirectRequestTimeout bounds the synchronous part of a redirect
	RedirectRequestTimeout = 2 * time.Second

	// ImpressionRequestTimeout bounds an impression request including its store write
	ImpressionRequestTimeout = 5 * time.Second

	// MaxPartnerCodeLength is the longest public partner code accepted in URLs and forms
	MaxPartnerCodeLength = 64
)

