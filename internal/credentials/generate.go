package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const validity = 365 * 24 * time.Hour

// Generate creates a throwaway CA and one peer certificate signed by it in
// dir, and returns where it put them. The peer certificate is valid for both
// client and server authentication and covers hosts, which may mix IP
// addresses and DNS names. Both peers can share the generated files.
func Generate(dir string, hosts ...string) (Paths, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Paths{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	paths := DefaultPaths(dir)

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to generate CA key: %w", err)
	}
	now := time.Now()
	caTemplate := &x509.Certificate{
		SerialNumber:          serial(),
		Subject:               pkix.Name{CommonName: "peer-chat CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to create CA certificate: %w", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return Paths{}, err
	}

	peerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to generate peer key: %w", err)
	}
	peerTemplate := &x509.Certificate{
		SerialNumber: serial(),
		Subject:      pkix.Name{CommonName: "peer-chat peer"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			peerTemplate.IPAddresses = append(peerTemplate.IPAddresses, ip)
		} else {
			peerTemplate.DNSNames = append(peerTemplate.DNSNames, h)
		}
	}
	peerDER, err := x509.CreateCertificate(rand.Reader, peerTemplate, caCert, &peerKey.PublicKey, caKey)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to create peer certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(peerKey)
	if err != nil {
		return Paths{}, err
	}
	caKeyDER, err := x509.MarshalECPrivateKey(caKey)
	if err != nil {
		return Paths{}, err
	}

	files := []struct {
		path  string
		block *pem.Block
		mode  os.FileMode
	}{
		{paths.CA, &pem.Block{Type: "CERTIFICATE", Bytes: caDER}, 0o644},
		{filepath.Join(dir, "ca.key"), &pem.Block{Type: "EC PRIVATE KEY", Bytes: caKeyDER}, 0o600},
		{paths.Certificate, &pem.Block{Type: "CERTIFICATE", Bytes: peerDER}, 0o644},
		{paths.PrivateKey, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}, 0o600},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, pem.EncodeToMemory(f.block), f.mode); err != nil {
			return Paths{}, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
	}
	return paths, nil
}

func serial() *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return n
}
