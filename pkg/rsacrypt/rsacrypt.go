// Package rsacrypt encrypts login passwords with the server's RSA public key
// and decrypts them on the server side. Ciphertexts are PKCS#1 v1.5 and
// base64 encoded, the format produced by browser side JSEncrypt.
package rsacrypt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyPlaintext = errors.New("密码不能为空")
	ErrEmptyPublicKey = errors.New("公钥不能为空")
	ErrEncrypt        = errors.New("RSA 加密失败，请检查公钥格式是否正确")
	ErrDecrypt        = errors.New("密码解密失败")
	ErrInvalidKey     = errors.New("invalid RSA private key")
)

// DefaultBits is the key size generated when no key is configured.
const DefaultBits = 2048

// EncryptWithPublicKey encrypts plain with the PEM encoded public key.
func EncryptWithPublicKey(plain, publicKeyPEM string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPlaintext
	}
	if strings.TrimSpace(publicKeyPEM) == "" {
		return "", ErrEmptyPublicKey
	}
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(plain))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return base64.StdEncoding.EncodeToString(cipher), nil
}

// ParsePublicKey accepts PKIX or PKCS#1 keys, with or without PEM armour.
func ParsePublicKey(raw string) (*rsa.PublicKey, error) {
	der, err := decodePEM(raw, "PUBLIC KEY")
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key")
		}
		return pub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}

// KeyPair holds the server side private key.
type KeyPair struct {
	private *rsa.PrivateKey
	pubPEM  string
}

// GenerateKeyPair creates a fresh key, used when none is configured.
func GenerateKeyPair(bits int) (*KeyPair, error) {
	if bits <= 0 {
		bits = DefaultBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return newKeyPair(key)
}

// LoadKeyPair parses a PKCS#1 or PKCS#8 private key. Literal "\n" sequences,
// as found in single line environment values, are converted to newlines.
func LoadKeyPair(raw string) (*KeyPair, error) {
	raw = strings.ReplaceAll(raw, `\n`, "\n")
	der, err := decodePEM(raw, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return newKeyPair(key)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return newKeyPair(key)
}

// LoadKeyPairFile reads a private key from disk.
func LoadKeyPairFile(path string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rsa key: %w", err)
	}
	return LoadKeyPair(string(data))
}

// Resolve picks the configured key source: inline PEM, then file, then a
// generated key. generated reports whether the last branch was taken.
func Resolve(inline, file string, bits int) (kp *KeyPair, generated bool, err error) {
	switch {
	case strings.TrimSpace(inline) != "":
		kp, err = LoadKeyPair(inline)
	case file != "":
		kp, err = LoadKeyPairFile(file)
	default:
		kp, err = GenerateKeyPair(bits)
		generated = true
	}
	return kp, generated, err
}

func newKeyPair(key *rsa.PrivateKey) (*KeyPair, error) {
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return &KeyPair{private: key, pubPEM: string(pubPEM)}, nil
}

// PublicKeyPEM returns the PKIX public key in PEM form.
func (k *KeyPair) PublicKeyPEM() string {
	return k.pubPEM
}

// PrivateKeyPEM returns the PKCS#1 private key in PEM form.
func (k *KeyPair) PrivateKeyPEM() string {
	der := x509.MarshalPKCS1PrivateKey(k.private)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}))
}

// Decrypt reverses EncryptWithPublicKey.
func (k *KeyPair) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, k.private, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// decodePEM returns the DER bytes of raw. Bodies without BEGIN/END lines
// are treated as bare base64.
func decodePEM(raw, kind string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if block, _ := pem.Decode([]byte(raw)); block != nil {
		return block.Bytes, nil
	}
	if strings.Contains(raw, "-----BEGIN") {
		return nil, fmt.Errorf("malformed %s PEM", strings.ToLower(kind))
	}
	compact := strings.Join(strings.Fields(raw), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", strings.ToLower(kind), err)
	}
	return der, nil
}
