// Package keyring provides secure credential storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"vpnswitch/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = common.AppName

	// kdfIterations is the PBKDF2 round count for the fallback file key.
	kdfIterations = 4096
)

// kdfSalt is fixed per application; the derived key already mixes in
// hostname, machine id, and uid.
var kdfSalt = []byte("vpnswitch-credential-store")

// Common errors returned by keyring operations.
var (
	ErrNotFound    = common.ErrCredentialsNotFound
	ErrAccess      = errors.New("keyring access denied")
	ErrUnavailable = errors.New("keyring service unavailable")
)

// Storage backend state.
var (
	mu          sync.Mutex
	useLocal    bool
	local       *fileStore
	initialized bool
)

// initStorage probes the system keyring once and falls back to the
// encrypted file store when no keyring service answers.
func initStorage() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}

	testKey := serviceName + "-test-init"
	err := keyring.Set(serviceName, testKey, "test")
	if err == nil {
		keyring.Delete(serviceName, testKey)
		useLocal = false
	} else {
		useLocal = true
		local = defaultFileStore()
	}
	initialized = true
}

func defaultFileStore() *fileStore {
	configDir, err := common.GetConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config", common.ConfigDirName)
		os.MkdirAll(configDir, 0700)
	}
	return newFileStore(filepath.Join(configDir, common.CredentialsFileName))
}

// fileStore is the encrypted local fallback. Entries are kept as a JSON
// map, AES-GCM sealed with a PBKDF2 key derived from machine-specific data.
type fileStore struct {
	mu      sync.RWMutex
	path    string
	key     []byte
	entries map[string]string
}

func newFileStore(path string) *fileStore {
	f := &fileStore{
		path:    path,
		key:     deriveKey(),
		entries: make(map[string]string),
	}
	f.load()
	return f
}

// deriveKey builds the fallback encryption key from machine-specific data.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", serviceName, hostname, machineID(), os.Getuid())
	return pbkdf2.Key([]byte(secret), kdfSalt, kdfIterations, 32, sha256.New)
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

func (f *fileStore) load() {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return
	}

	decrypted, err := decrypt(f.key, data)
	if err != nil {
		common.LogWarn("credential store unreadable, starting empty: %v", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	json.Unmarshal(decrypted, &f.entries)
}

func (f *fileStore) save() error {
	f.mu.RLock()
	data, err := json.Marshal(f.entries)
	f.mu.RUnlock()
	if err != nil {
		return err
	}

	encrypted, err := encrypt(f.key, data)
	if err != nil {
		return err
	}

	return os.WriteFile(f.path, encrypted, 0600)
}

func (f *fileStore) set(id, secret string) error {
	f.mu.Lock()
	f.entries[id] = secret
	f.mu.Unlock()
	return f.save()
}

func (f *fileStore) get(id string) (string, error) {
	f.mu.RLock()
	secret, ok := f.entries[id]
	f.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

func (f *fileStore) delete(id string) error {
	f.mu.Lock()
	delete(f.entries, id)
	f.mu.Unlock()
	return f.save()
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Store saves a secret for a VPN profile.
func Store(profileID string, secret string) error {
	if profileID == "" {
		return errors.New("profile ID cannot be empty")
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}
	initStorage()

	if useLocal {
		return local.set(profileID, secret)
	}

	if err := keyring.Set(serviceName, profileID, secret); err != nil {
		// Keyring went away mid-session; fall back to the file store.
		mu.Lock()
		useLocal = true
		if local == nil {
			local = defaultFileStore()
		}
		mu.Unlock()
		return local.set(profileID, secret)
	}
	return nil
}

// Get retrieves the secret for a VPN profile.
func Get(profileID string) (string, error) {
	if profileID == "" {
		return "", errors.New("profile ID cannot be empty")
	}
	initStorage()

	if useLocal {
		return local.get(profileID)
	}

	secret, err := keyring.Get(serviceName, profileID)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		if local != nil {
			return local.get(profileID)
		}
		return "", ErrNotFound
	}
	return secret, nil
}

// Delete removes the secret for a VPN profile.
func Delete(profileID string) error {
	if profileID == "" {
		return errors.New("profile ID cannot be empty")
	}
	initStorage()

	if useLocal {
		return local.delete(profileID)
	}

	keyring.Delete(serviceName, profileID)

	// Also drop any fallback copy left behind by an earlier outage.
	if local != nil {
		local.delete(profileID)
	}

	return nil
}

// Exists checks if a secret exists for a VPN profile.
func Exists(profileID string) bool {
	_, err := Get(profileID)
	return err == nil
}

// Service adapts the package functions to common.CredentialStore so the
// VPN manager can take credential storage as a dependency.
type Service struct{}

var _ common.CredentialStore = Service{}

// Store saves a secret for a profile.
func (Service) Store(profileID, secret string) error { return Store(profileID, secret) }

// Get retrieves the secret for a profile.
func (Service) Get(profileID string) (string, error) { return Get(profileID) }

// Delete removes the secret for a profile.
func (Service) Delete(profileID string) error { return Delete(profileID) }

// Exists reports whether a secret is stored for a profile.
func (Service) Exists(profileID string) bool { return Exists(profileID) }
