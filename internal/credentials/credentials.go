// Package credentials loads the certificate material both peers need and
// turns it into a TLS configuration.
package credentials

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates the three PEM files a peer needs.
type Paths struct {
	Certificate string // certificate chain presented to the other peer
	PrivateKey  string // key for Certificate
	CA          string // trust anchor used to verify the other peer
}

// DefaultPaths returns the file names certgen writes, rooted at dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		Certificate: filepath.Join(dir, "peer.crt"),
		PrivateKey:  filepath.Join(dir, "peer.key"),
		CA:          filepath.Join(dir, "ca.crt"),
	}
}

// Material is loaded credential material.
type Material struct {
	Certificate tls.Certificate
	Roots       *x509.CertPool
}

// Load reads and parses the files named by p.
func Load(p Paths) (*Material, error) {
	cert, err := tls.LoadX509KeyPair(p.Certificate, p.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate %s: %w", p.Certificate, err)
	}

	caPEM, err := os.ReadFile(p.CA)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("no certificates found in CA file " + p.CA)
	}

	return &Material{Certificate: cert, Roots: roots}, nil
}

// Config returns a TLS configuration usable by either role. TLS 1.2 is the
// minimum version and both sides must present a certificate signed by the
// CA.
func (m *Material) Config() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{m.Certificate},
		RootCAs:      m.Roots,
		ClientCAs:    m.Roots,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
}
