package certsource

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"sync"

	"software.sslmate.com/src/go-pkcs12"
)

// ErrNoBundle is returned by a File source without a path.
var ErrNoBundle = errors.New("certsource: no certificate bundle configured")

// Source provides a loadable certificate bundle and its passphrase.
type Source interface {
	Bundle() (data []byte, passphrase string, err error)
}

// Invalidator is implemented by sources whose cached bundle can be dropped so
// the next Bundle call reloads it.
type Invalidator interface {
	Invalidate()
}

// Static is a Source over an in-memory bundle.
type Static struct {
	Data       []byte
	Passphrase string
}

// Bundle returns the configured bundle.
func (s Static) Bundle() ([]byte, string, error) {
	if len(s.Data) == 0 {
		return nil, "", ErrNoBundle
	}
	return s.Data, s.Passphrase, nil
}

// File reads a PKCS#12 bundle from disk on first use and caches it until
// Invalidate is called.
type File struct {
	path       string
	passphrase string

	mu   sync.Mutex
	data []byte
}

// NewFile creates a File source. Nothing is read until Bundle is called.
func NewFile(path, passphrase string) *File {
	return &File{path: path, passphrase: passphrase}
}

// Path returns the bundle location.
func (f *File) Path() string { return f.path }

// Bundle returns the cached bundle, reading it first if needed.
func (f *File) Bundle() ([]byte, string, error) {
	if f.path == "" {
		return nil, "", ErrNoBundle
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.data == nil {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, "", fmt.Errorf("certsource: read bundle: %w", err)
		}
		f.data = data
	}
	return f.data, f.passphrase, nil
}

// Invalidate drops the cached bundle.
func (f *File) Invalidate() {
	f.mu.Lock()
	f.data = nil
	f.mu.Unlock()
}

// Certificate decodes the bundle from src into a TLS client certificate,
// including any intermediate certificates it carries.
func Certificate(src Source) (tls.Certificate, error) {
	data, passphrase, err := src.Bundle()
	if err != nil {
		return tls.Certificate{}, err
	}

	key, leaf, chain, err := pkcs12.DecodeChain(data, passphrase)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certsource: decode bundle: %w", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}
	for _, ca := range chain {
		cert.Certificate = append(cert.Certificate, ca.Raw)
	}
	return cert, nil
}
