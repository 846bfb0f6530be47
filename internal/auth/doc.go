// Package auth provides the credential and token primitives of authcore.
//
// This package implements:
//   - Password hashing (bcrypt and argon2id, self-describing output)
//   - Session token minting and verification (HS256, single issuer)
//   - The closed USER < ADMIN role order and the Authorize guard
//
// Everything here is immutable after construction and safe for concurrent
// use. Nothing reads ambient request state: callers pass Claims explicitly.
package auth
