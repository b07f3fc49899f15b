// Package domain holds the error values shared by pushgate's public
// packages.
//
// It has no dependencies on infrastructure concerns so that every layer,
// from the lifecycle manager to the facade, can return and match the same
// sentinels with errors.Is.
package domain
