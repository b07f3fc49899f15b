// Package certsource supplies the client certificate used to authenticate
// against the push gateway.
//
// A Source hands out a PKCS#12 bundle and its passphrase. Sources load
// lazily and cache what they read; Certificate decodes a bundle into a
// tls.Certificate.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package certsource
