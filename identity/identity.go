// Package identity turns certificate and key files into a TLS server identity
package identity

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"strings"

	"github.com/chrisvdg/contentserver/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var errUnknownKeyBlock = errors.New("unknown private key block")

// Identity is a certificate chain and its private key, ready for a listener
type Identity struct {
	cert tls.Certificate
}

// Leaf returns the parsed leaf certificate
func (i *Identity) Leaf() *x509.Certificate {
	return i.cert.Leaf
}

// TLSConfig returns a new server TLS config serving this identity
func (i *Identity) TLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{i.cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"http/1.1"},
	}
}

// Build reads the certificate chain and key named by rec and checks the key
// belongs to the leaf certificate. resolve maps the record paths to files,
// nil uses them as is.
func Build(rec config.TLS, resolve func(string) string) (*Identity, error) {
	if resolve == nil {
		resolve = func(p string) string { return p }
	}
	certPath := resolve(rec.CertFile)
	keyPath := resolve(rec.KeyFile)

	chain, leaf, err := readChain(certPath)
	if err != nil {
		return nil, err
	}
	key, err := readKey(keyPath)
	if err != nil {
		return nil, err
	}

	pub, ok := leaf.PublicKey.(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return nil, &Error{Kind: Unsupported, Path: certPath, Err: errors.Errorf("unsupported certificate key type %T", leaf.PublicKey)}
	}
	if !pub.Equal(key.Public()) {
		return nil, &Error{Kind: KeyCertMismatch, Path: keyPath, Err: errors.New("private key does not match certificate public key")}
	}

	log.Debugf("Built TLS identity for %s (expires %s)", leaf.Subject.CommonName, leaf.NotAfter)

	return &Identity{
		cert: tls.Certificate{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		},
	}, nil
}

// readChain reads every CERTIFICATE block of a PEM file, leaf first
func readChain(path string) ([][]byte, *x509.Certificate, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, nil, &Error{Kind: CertUnreadable, Path: path, Err: errors.Wrap(err, "failed to read certificate file")}
	}

	chain := [][]byte{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			chain = append(chain, block.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, nil, &Error{Kind: CertUnreadable, Path: path, Err: errors.New("no PEM certificate found")}
	}

	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, nil, &Error{Kind: CertUnreadable, Path: path, Err: errors.Wrap(err, "failed to parse certificate")}
	}

	return chain, leaf, nil
}

// readKey reads the first private key block of a PEM file
func readKey(path string) (crypto.Signer, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: KeyUnreadable, Path: path, Err: errors.Wrap(err, "failed to read key file")}
	}

	var block *pem.Block
	for {
		block, data = pem.Decode(data)
		if block == nil {
			return nil, &Error{Kind: KeyUnreadable, Path: path, Err: errors.New("no PEM private key found")}
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			break
		}
	}

	if block.Type == "ENCRYPTED PRIVATE KEY" || strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return nil, &Error{Kind: Unsupported, Path: path, Err: errors.New("encrypted private keys are not supported")}
	}

	key, err := parseKey(block)
	if errors.Cause(err) == errUnknownKeyBlock {
		return nil, &Error{Kind: Unsupported, Path: path, Err: errors.Wrap(err, block.Type)}
	}
	if err != nil {
		return nil, &Error{Kind: KeyUnreadable, Path: path, Err: err}
	}

	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	case *ecdh.PrivateKey:
		return nil, &Error{Kind: Unsupported, Path: path, Err: errors.Errorf("%s keys cannot sign", k.Curve())}
	default:
		return nil, &Error{Kind: Unsupported, Path: path, Err: errors.Errorf("unsupported private key type %T", key)}
	}
}

func parseKey(block *pem.Block) (interface{}, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		return key, errors.Wrap(err, "failed to parse PKCS#1 key")
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		return key, errors.Wrap(err, "failed to parse EC key")
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		return key, errors.Wrap(err, "failed to parse PKCS#8 key")
	default:
		return nil, errUnknownKeyBlock
	}
}
