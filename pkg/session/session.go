package session

import (
	"crypto/ecdsa"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// Session holds the signing key of the account while it is unlocked.
type Session struct {
	keystore *Keystore
	address  common.Address
	logger   *zap.Logger

	mu  sync.RWMutex
	key *ecdsa.PrivateKey
}

// New creates a locked session for keystore.
func New(keystore *Keystore, logger *zap.Logger) (*Session, error) {
	if keystore == nil {
		return nil, errors.New("keystore cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if !common.IsHexAddress(keystore.Address) {
		return nil, errors.New("keystore has no valid address")
	}

	s := &Session{
		keystore: keystore,
		address:  common.HexToAddress(keystore.Address),
		logger:   logger,
	}

	return s, nil
}

// NewUnlocked creates an already unlocked session from a raw key.
func NewUnlocked(key *ecdsa.PrivateKey, logger *zap.Logger) *Session {
	return &Session{
		address: crypto.PubkeyToAddress(key.PublicKey),
		logger:  logger,
		key:     key,
	}
}

// Unlock decrypts the keystore and keeps the key in memory.
func (s *Session) Unlock(password string) error {
	if s.keystore == nil {
		return errors.New("session has no keystore")
	}

	key, err := s.keystore.Decrypt(password)
	if err != nil {
		s.logger.Warn("session-unlock-failed", zap.String("address", s.address.Hex()), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.key = key
	s.mu.Unlock()

	s.logger.Info("session-unlocked", zap.String("address", s.address.Hex()))
	return nil
}

// Lock drops the in-memory key.
func (s *Session) Lock() {
	s.mu.Lock()
	s.key = nil
	s.mu.Unlock()

	s.logger.Info("session-locked", zap.String("address", s.address.Hex()))
}

// IsUnlocked reports whether a signing key is available.
func (s *Session) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}

// Address returns the account address, available even while locked.
func (s *Session) Address() common.Address {
	return s.address
}

// Key returns the signing key, or ErrSessionLocked.
func (s *Session) Key() (*ecdsa.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.key == nil {
		return nil, types.ErrSessionLocked
	}

	return s.key, nil
}
