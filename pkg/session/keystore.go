package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/pbkdf2"
)

const (
	keystoreVersion = 1
	kdfName         = "pbkdf2-sha256"
	kdfIterations   = 100_000
	saltSize        = 16
	nonceSize       = 12
	keySize         = 32
)

// ErrInvalidPassword is returned when a keystore cannot be decrypted with the given password.
var ErrInvalidPassword = errors.New("invalid password")

// Keystore is the on-disk form of an encrypted private key.
// EncryptedKey is base64(nonce || AES-256-GCM ciphertext).
type Keystore struct {
	Version      int    `json:"version"`
	Address      string `json:"address"`
	KDF          string `json:"kdf"`
	Iterations   int    `json:"iterations"`
	Salt         string `json:"salt"`
	EncryptedKey string `json:"encrypted_key"`
}

func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
}

// Encrypt seals a hex private key with password.
func Encrypt(privateKeyHex string, password string) (*Keystore, error) {
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}

	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	salt := make([]byte, saltSize)
	_, err = rand.Read(salt)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(deriveKey(password, salt, kdfIterations))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	_, err = rand.Read(nonce)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(privateKeyHex), nil)

	ks := &Keystore{
		Version:      keystoreVersion,
		Address:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		KDF:          kdfName,
		Iterations:   kdfIterations,
		Salt:         base64.StdEncoding.EncodeToString(salt),
		EncryptedKey: base64.StdEncoding.EncodeToString(sealed),
	}

	return ks, nil
}

// Decrypt opens the keystore with password and returns the private key.
func (k *Keystore) Decrypt(password string) (*ecdsa.PrivateKey, error) {
	if k.KDF != "" && k.KDF != kdfName {
		return nil, fmt.Errorf("unsupported kdf %q", k.KDF)
	}

	iterations := k.Iterations
	if iterations <= 0 {
		iterations = kdfIterations
	}

	salt, err := base64.StdEncoding.DecodeString(k.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(k.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted key: %w", err)
	}

	if len(sealed) <= nonceSize {
		return nil, errors.New("encrypted key is truncated")
	}

	gcm, err := newGCM(deriveKey(password, salt, iterations))
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, ErrInvalidPassword
	}

	key, err := crypto.HexToECDSA(string(plaintext))
	if err != nil {
		return nil, fmt.Errorf("parse decrypted key: %w", err)
	}

	if k.Address != "" && crypto.PubkeyToAddress(key.PublicKey) != common.HexToAddress(k.Address) {
		return nil, errors.New("decrypted key does not match keystore address")
	}

	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}

// LoadKeystore reads a keystore file.
func LoadKeystore(path string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore: %w", err)
	}

	var ks Keystore
	err = json.Unmarshal(data, &ks)
	if err != nil {
		return nil, fmt.Errorf("parse keystore: %w", err)
	}

	if ks.EncryptedKey == "" || ks.Salt == "" {
		return nil, errors.New("keystore is missing encrypted key or salt")
	}

	return &ks, nil
}

// Save writes the keystore to path with owner-only permissions.
func (k *Keystore) Save(path string) error {
	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal keystore: %w", err)
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0o700)
	if err != nil {
		return fmt.Errorf("create keystore dir: %w", err)
	}

	err = os.WriteFile(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}

	return nil
}
