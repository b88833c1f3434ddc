// Package crypto holds the device identity: a self-signed TLS certificate
// and the fingerprint derived from it. Announcements carry the fingerprint;
// Verify ties it back to the certificate a peer actually presents, so a
// multicast announcement cannot impersonate another HTTPS device.
//
// In plain-HTTP mode there is no certificate to check against. The identity
// then degrades to a random per-process fingerprint and trust rests solely
// on the LAN. That is a reduced-assurance mode, not an equivalent one.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"time"

	"github.com/zpp0196/localsend-go/internal/utils"
	"github.com/google/uuid"
)

// Identity is this device's stable identity for the lifetime of the process.
type Identity struct {
	cert        tls.Certificate
	fingerprint string
	https       bool
}

// NewHTTPIdentity builds an identity for plain-HTTP operation. The
// fingerprint is random and cannot be verified against a connection.
func NewHTTPIdentity() *Identity {
	return &Identity{
		fingerprint: uuid.NewString(),
		https:       false,
	}
}

// LoadOrGenerate loads the certificate from the given PEM files, generating
// and persisting a fresh self-signed one when they do not exist yet.
func LoadOrGenerate(certFile, keyFile string) (*Identity, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		cert, err = genTLSCert()
		if err != nil {
			return nil, err
		}
		if err := persistCert(cert, certFile, keyFile); err != nil {
			return nil, err
		}
	}

	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, err
		}
		cert.Leaf = leaf
	}

	return &Identity{
		cert:        cert,
		fingerprint: utils.SHA256ofCert(cert.Leaf),
		https:       true,
	}, nil
}

// Fingerprint is deterministic for the lifetime of the process.
func (id *Identity) Fingerprint() string {
	return id.fingerprint
}

func (id *Identity) HTTPS() bool {
	return id.https
}

// Certificate returns the TLS certificate to serve with; only valid for
// HTTPS identities.
func (id *Identity) Certificate() (tls.Certificate, error) {
	if !id.https {
		return tls.Certificate{}, errors.New("http identity has no certificate")
	}
	return id.cert, nil
}

// Verify checks that an announced fingerprint matches the certificate
// presented on the connection used for transfer. For HTTP identities there
// is nothing to verify and the check is skipped by the callers.
func Verify(announced string, presented *x509.Certificate) bool {
	if presented == nil {
		return false
	}
	return announced == utils.SHA256ofCert(presented)
}

func genTLSCert() (tls.Certificate, error) {
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "LocalSend User",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	privkey, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return tls.Certificate{}, err
	}
	pubkey := privkey.Public()

	certBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, pubkey, privkey)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPrivKeyPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privkey),
	})

	certPem := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certBytes,
	})

	return tls.X509KeyPair(certPem, certPrivKeyPem)
}

func persistCert(cert tls.Certificate, certFile, keyFile string) error {
	certPem := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Certificate[0],
	})

	privkey, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return errors.New("unexpected private key type")
	}
	keyPem := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privkey),
	})

	if err := os.WriteFile(certFile, certPem, 0o644); err != nil {
		return err
	}
	return os.WriteFile(keyFile, keyPem, 0o600)
}
