// Package jwt issues and verifies the signed tokens the engine deals in:
// access, refresh, and password-reset. Each kind carries a use discriminator
// so one kind can never stand in for another.
package jwt
