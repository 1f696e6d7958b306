package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log"
)

// AESCipher wraps message bodies with AES-256-CBC. The key is the
// SHA-256 digest of the configured secret and the IV its first 16 bytes,
// so the same secret always yields the same ciphertext for a body.
// Encrypt and Decrypt are total: any internal failure falls back to
// returning the input unchanged.
type AESCipher struct {
	key []byte
	iv  []byte
}

func New(secret string) *AESCipher {
	digest := sha256.Sum256([]byte(secret))
	return &AESCipher{
		key: digest[:],
		iv:  digest[:aes.BlockSize],
	}
}

func (c *AESCipher) Encrypt(plaintext string) string {
	if plaintext == "" {
		return plaintext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		log.Printf("encrypt failed: %v", err)
		return plaintext
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func (c *AESCipher) Decrypt(ciphertext string) string {
	if ciphertext == "" {
		return ciphertext
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return ciphertext
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		log.Printf("decrypt failed: %v", err)
		return ciphertext
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)

	plain, err := unpad(out, aes.BlockSize)
	if err != nil {
		return ciphertext
	}
	return string(plain)
}

// pad applies PKCS#7 padding.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
