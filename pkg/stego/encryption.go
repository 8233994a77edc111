package stego

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 16
	pbkdf2Iterations = 100000
)

// deriveKey stretches a passphrase into an AES-256 key.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, 32, sha256.New)
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// sealAESGCM encrypts data and prepends the random nonce.
func sealAESGCM(data []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption error: failed to create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func openAESGCM(data []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func GenerateRSAKeys(bits int, outDir string) error {
	if _, err := os.Stat(outDir); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", outDir)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return err
	}

	privBlock := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}
	// Only the owner may read the private key.
	if err := writePEM(filepath.Join(outDir, "private.pem"), privBlock, 0600); err != nil {
		return err
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return err
	}
	pubBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}
	return writePEM(filepath.Join(outDir, "public.pem"), pubBlock, 0644)
}

func writePEM(path string, block *pem.Block, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, block)
}

func loadPEM(path string, what string) (*pem.Block, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("failed to parse PEM block containing the %s", what)
	}
	return block, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	block, err := loadPEM(path, "public key")
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key is not of type RSA")
	}
	return rsaPub, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	block, err := loadPEM(path, "private key")
	if err != nil {
		return nil, err
	}
	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not of type RSA")
	}
	return priv, nil
}

// sealRSA encrypts data under a fresh AES key and wraps that key with
// RSA-OAEP. Format: [wrapped key length (4 bytes)] [wrapped key] [ciphertext].
func sealRSA(data []byte, pubKeyPath string) ([]byte, error) {
	pub, err := loadPublicKey(pubKeyPath)
	if err != nil {
		return nil, err
	}

	aesKey := make([]byte, 32)
	if _, err := rand.Read(aesKey); err != nil {
		return nil, err
	}
	wrappedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, aesKey, nil)
	if err != nil {
		return nil, err
	}
	ciphertext, err := sealAESGCM(data, aesKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 4+len(wrappedKey)+len(ciphertext))
	binary.BigEndian.PutUint32(out[0:4], uint32(len(wrappedKey)))
	copy(out[4:], wrappedKey)
	copy(out[4+len(wrappedKey):], ciphertext)
	return out, nil
}

func openRSA(data []byte, privKeyPath string) ([]byte, error) {
	priv, err := loadPrivateKey(privKeyPath)
	if err != nil {
		return nil, err
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("invalid data: too short")
	}
	keyLen := binary.BigEndian.Uint32(data[0:4])
	if uint64(len(data)) < 4+uint64(keyLen) {
		return nil, fmt.Errorf("invalid data: malformed key length")
	}

	aesKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, data[4:4+keyLen], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt AES key: %w", err)
	}
	plaintext, err := openAESGCM(data[4+keyLen:], aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}
