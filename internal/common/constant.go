package common

// TokenHeaderName is the HTTP header that carries the session token on
// every authenticated request.
const TokenHeaderName = "X-Token"
