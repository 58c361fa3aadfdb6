// Package jwt issues and verifies the HS256 session tokens carried in the
// Authorization or x-auth-token header.
//
// A token only proves who signed it. Admission additionally requires an
// active server-side session bound to the token (see package session).
package jwt
