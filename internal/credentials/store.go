package credentials

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/grandprix/internal/models"
)

// Sentinel errors
var (
	// ErrNoCredentials is returned when no session is stored.
	ErrNoCredentials = errors.New("no stored credentials")

	// ErrInvalidCredentials is returned when asked to store an incomplete session.
	ErrInvalidCredentials = errors.New("token and user are required")
)

const (
	sessionFileName  = "session.json"
	returnToFileName = "return_to"
	fileVersion      = 1
)

// Credentials is the persisted session: the bearer token and the cached profile.
type Credentials struct {
	Token string
	User  models.UserProfile
}

// sessionFile is the on-disk representation of Credentials.
type sessionFile struct {
	Version  int                 `json:"version"`
	Token    string              `json:"token"`
	User     *models.UserProfile `json:"user,omitempty"`
	SavedAt  time.Time           `json:"saved_at"`
	Checksum string              `json:"checksum"`
}

// Store persists the session token and user profile on the local filesystem so
// they survive process restarts.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// NewStore creates a new credential store.
// If baseDir is empty, uses ~/.grandprix/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".grandprix")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return &Store{baseDir: baseDir}, nil
}

// Dir returns the directory holding the credential files.
func (s *Store) Dir() string {
	return s.baseDir
}

// Load reads the stored session. A missing, unreadable or corrupt file yields
// ErrNoCredentials; a session missing either the token or the user is treated
// the same way.
func (s *Store) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.read()
	if err != nil {
		return nil, err
	}

	if sf.Token == "" || sf.User == nil {
		return nil, ErrNoCredentials
	}

	return &Credentials{Token: sf.Token, User: *sf.User}, nil
}

// Token returns the stored bearer token, or an empty string when none is stored.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.read()
	if err != nil {
		return ""
	}
	return sf.Token
}

// Save persists the token and profile atomically.
func (s *Store) Save(token string, user models.UserProfile) error {
	if token == "" || user.ID.IsZero() {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sf := &sessionFile{
		Version: fileVersion,
		Token:   token,
		User:    &user,
		SavedAt: time.Now().UTC(),
	}

	sum, err := checksum(sf.Token, sf.User)
	if err != nil {
		return err
	}
	sf.Checksum = sum

	if err := s.write(sf); err != nil {
		return err
	}

	log.Info().
		Str("user", user.Username).
		Str("token", Fingerprint(token)).
		Msg("credentials saved")

	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, sessionFileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	log.Debug().Msg("credentials cleared")

	return nil
}

// SaveReturnTo remembers the view a signed out user was denied, so the next
// successful login can continue there.
func (s *Store) SaveReturnTo(location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, returnToFileName)
	if err := os.WriteFile(path, []byte(location), 0600); err != nil {
		return fmt.Errorf("failed to write return location: %w", err)
	}
	return nil
}

// TakeReturnTo returns and forgets the remembered location.
func (s *Store) TakeReturnTo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.baseDir, returnToFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	_ = os.Remove(path)

	location := strings.TrimSpace(string(data))
	return location, location != ""
}

// read loads and verifies the session file. Callers must hold s.mu.
func (s *Store) read() (*sessionFile, error) {
	path := filepath.Join(s.baseDir, sessionFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("failed to read credentials, treating as signed out")
		}
		return nil, ErrNoCredentials
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		log.Warn().Err(err).Msg("failed to parse credentials, treating as signed out")
		return nil, ErrNoCredentials
	}

	sum, err := checksum(sf.Token, sf.User)
	if err != nil || sum != sf.Checksum {
		log.Warn().Msg("credentials checksum mismatch, treating as signed out")
		return nil, ErrNoCredentials
	}

	return &sf, nil
}

// write stores the session file atomically. Callers must hold s.mu.
func (s *Store) write(sf *sessionFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	path := filepath.Join(s.baseDir, sessionFileName)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	return nil
}

// checksum computes the CRC64-NVME of the token and profile.
func checksum(token string, user *models.UserProfile) (string, error) {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user: %w", err)
	}

	h := crc64nvme.New()
	h.Write([]byte(token))
	h.Write([]byte{'\n'})
	h.Write(userJSON)
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// Fingerprint returns a short, log-safe identifier for a token
// (Base58-encoded SHA256, truncated).
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	fp := base58.Encode(hash[:])
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fp
}
