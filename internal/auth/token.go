// Package auth keeps the local API token in the OS keychain, with a file
// fallback for machines that have none.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"
)

const (
	DefaultService = "geocoin"
	tokenAccount   = "api-token"
)

// ErrNotFound is returned when no token has been stored.
var ErrNotFound = keyring.ErrNotFound

// TokenStore wraps OS keychain with an optional file fallback.
type TokenStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewTokenStore creates a keyring wrapper.
func NewTokenStore(serviceName, fallbackPath string) *TokenStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = DefaultService
	}
	return &TokenStore{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

// Token returns the stored token or ErrNotFound.
func (k *TokenStore) Token() (string, error) {
	val, err := keyring.Get(k.service, tokenAccount)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("auth: keyring get: %w", err)
	}

	fallback, ferr := k.getFallback()
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", ferr
}

// SetToken stores value, falling back to the file when no keyring exists.
func (k *TokenStore) SetToken(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("auth: token is empty")
	}
	err := keyring.Set(k.service, tokenAccount, value)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("auth: keyring set: %w", err)
	}
	return k.setFallback(value)
}

// DeleteToken removes the token from both the keyring and the fallback.
func (k *TokenStore) DeleteToken() error {
	err := keyring.Delete(k.service, tokenAccount)
	if err != nil && (errors.Is(err, keyring.ErrNotFound) || isKeyringUnavailable(err)) {
		err = nil
	}
	if ferr := k.deleteFallback(); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return fmt.Errorf("auth: delete token: %w", err)
	}
	return nil
}

// EnsureToken returns the stored token, creating a random one on first use.
func (k *TokenStore) EnsureToken() (string, error) {
	tok, err := k.Token()
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	tok = uuid.NewString()
	if err := k.SetToken(tok); err != nil {
		return "", err
	}
	return tok, nil
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]string

func (k *TokenStore) setFallback(value string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return fmt.Errorf("auth: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[k.service] = value
	return k.writeFallbackUnlocked(data)
}

func (k *TokenStore) getFallback() (string, error) {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return "", fmt.Errorf("auth: fallback path not configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[k.service]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return val, nil
}

func (k *TokenStore) deleteFallback() error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[k.service]; !ok {
		return nil
	}
	delete(data, k.service)
	return k.writeFallbackUnlocked(data)
}

func (k *TokenStore) readFallbackUnlocked() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("auth: read fallback secrets: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("auth: decode fallback secrets: %w", err)
	}
	return out, nil
}

func (k *TokenStore) writeFallbackUnlocked(data fallbackSecrets) error {
	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("auth: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("auth: encode fallback secrets: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("auth: write fallback secrets: %w", err)
	}
	return nil
}
