// Package middleware adapts a docgate.Engine to net/http.
//
// # Pipeline
//
// Routes compose the adapters in this order:
//
//	RequestID → AccessLog → Recover → ClientIP → Reputation → RateLimit(class)
//	  → Authenticate → RequireRole → RequireCredits → handler
//
// Each adapter is a func(http.Handler) http.Handler. Rejections are written
// with [WriteError] as {"error": code, "message": text}; the message never
// says which check failed beyond what [docgate.Classify] allows.
//
// # Token headers
//
// "Authorization: Bearer <token>" is canonical. "x-auth-token" is accepted
// when no bearer token is present.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs (the engine owns tokens).
//   - Touch Redis or the credential store directly.
package middleware
