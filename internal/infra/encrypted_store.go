package infra

import (
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the SQLCipher database/sql driver.
	_ "github.com/mutecomm/go-sqlcipher/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eliteGoblin/focusd/totalctl/internal/domain"
)

const (
	storeDBName = "totalctl.db"

	// PasswordSecretKey holds the bcrypt hash of the unlock password.
	PasswordSecretKey = "unlock_password_hash"
)

// EncryptedStore is the SQLCipher database behind the daemon registry,
// secrets, password unlocks and OCR history.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// NewEncryptedStore opens (or creates) the encrypted database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedStore(dataDir string, key []byte) (*EncryptedStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// One connection per process; the daemon and CLI commands share the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daemon_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		last_heartbeat INTEGER NOT NULL,
		app_version TEXT DEFAULT '',
		mode TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS unlocks (
		rule_id TEXT NOT NULL,
		day TEXT NOT NULL,
		unlocked_at INTEGER NOT NULL,
		PRIMARY KEY (rule_id, day)
	);

	CREATE TABLE IF NOT EXISTS screen_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		app_hint TEXT DEFAULT '',
		category TEXT NOT NULL,
		confidence REAL NOT NULL,
		raw_text TEXT DEFAULT '',
		text_hash TEXT DEFAULT '',
		matched_patterns TEXT DEFAULT '[]',
		should_block INTEGER NOT NULL,
		screenshot_path TEXT DEFAULT ''
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *EncryptedStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- domain.DaemonRegistry implementation ---

// Register records the running monitor, replacing any previous record.
func (s *EncryptedStore) Register(daemon domain.Daemon) error {
	mode := string(ExecModeUser)
	if os.Geteuid() == 0 {
		mode = string(ExecModeSystem)
	}
	started := daemon.StartedAt
	if started.IsZero() {
		started = s.now()
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daemon_state (id, pid, started_at, last_heartbeat, app_version, mode)
		VALUES (1, ?, ?, ?, ?, ?)`,
		daemon.PID, started.Unix(), s.now().Unix(), daemon.AppVersion, mode,
	)
	return err
}

// UpdateHeartbeat refreshes the liveness timestamp.
func (s *EncryptedStore) UpdateHeartbeat() error {
	result, err := s.db.Exec(`UPDATE daemon_state SET last_heartbeat = ? WHERE id = 1`, s.now().Unix())
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("daemon not registered")
	}
	return nil
}

// Status returns the registered monitor, or nil when none is registered.
func (s *EncryptedStore) Status() (*domain.DaemonStatus, error) {
	var (
		pid       int
		heartbeat int64
		version   string
		mode      string
	)
	err := s.db.QueryRow(`SELECT pid, last_heartbeat, app_version, mode FROM daemon_state WHERE id = 1`).
		Scan(&pid, &heartbeat, &version, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.DaemonStatus{
		PID:           pid,
		LastHeartbeat: time.Unix(heartbeat, 0),
		AppVersion:    version,
		Mode:          mode,
	}, nil
}

// Clear removes the daemon record (on clean shutdown).
func (s *EncryptedStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM daemon_state`)
	return err
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (s *EncryptedStore) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrNoSecret)
	}
	return value, err
}

// SetSecret stores a secret.
func (s *EncryptedStore) SetSecret(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, s.now().Unix())
	return err
}

// HasSecret reports whether key is stored.
func (s *EncryptedStore) HasSecret(key string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM secrets WHERE key = ?`, key).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- domain.UnlockStore implementation ---

// IsUnlocked reports whether ruleID was unlocked on day.
func (s *EncryptedStore) IsUnlocked(ruleID, day string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM unlocks WHERE rule_id = ? AND day = ?`, ruleID, day).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Unlock records a one-shot override for ruleID on day.
func (s *EncryptedStore) Unlock(ruleID, day string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO unlocks (rule_id, day, unlocked_at) VALUES (?, ?, ?)`,
		ruleID, day, s.now().Unix())
	return err
}

// ClearUnlocks drops every override.
func (s *EncryptedStore) ClearUnlocks() error {
	_, err := s.db.Exec(`DELETE FROM unlocks`)
	return err
}

// --- domain.AnalysisHistory implementation ---

// Record stores one OCR analysis. Raw text is truncated to domain.MaxRawTextRunes.
func (s *EncryptedStore) Record(a domain.ScreenAnalysis) error {
	patterns, err := json.Marshal(a.MatchedPatterns)
	if err != nil {
		return err
	}
	raw := domain.TruncateRawText(a.RawText)
	ts := a.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err = s.db.Exec(`
		INSERT INTO screen_history
			(timestamp, app_hint, category, confidence, raw_text, text_hash, matched_patterns, should_block, screenshot_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(), a.AppHint, string(a.Category), a.Confidence, raw, a.TextHash,
		string(patterns), a.ShouldBlock, a.ScreenshotPath,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (s *EncryptedStore) Recent(limit int) ([]domain.ScreenAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT timestamp, app_hint, category, confidence, raw_text, text_hash, matched_patterns, should_block, screenshot_path
		FROM screen_history ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScreenAnalysis
	for rows.Next() {
		var (
			a        domain.ScreenAnalysis
			ts       int64
			category string
			patterns string
		)
		if err := rows.Scan(&ts, &a.AppHint, &category, &a.Confidence, &a.RawText,
			&a.TextHash, &patterns, &a.ShouldBlock, &a.ScreenshotPath); err != nil {
			return nil, err
		}
		a.Timestamp = time.Unix(ts, 0)
		a.Category = domain.TextCategory(category)
		if err := json.Unmarshal([]byte(patterns), &a.MatchedPatterns); err != nil {
			a.MatchedPatterns = nil
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- password helpers ---

// SetPassword stores the bcrypt hash of password.
func SetPassword(secrets domain.SecretStore, password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return secrets.SetSecret(PasswordSecretKey, string(hash))
}

// VerifyPassword checks password against the stored hash. It returns
// domain.ErrNoPassword when none is set and domain.ErrWrongPassword on mismatch.
func VerifyPassword(secrets domain.SecretStore, password string) error {
	hash, err := secrets.GetSecret(PasswordSecretKey)
	if errors.Is(err, domain.ErrNoSecret) {
		return domain.ErrNoPassword
	}
	if err != nil {
		return fmt.Errorf("failed to read password hash: %w", err)
	}
	if hash == "" {
		return domain.ErrNoPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.ErrWrongPassword
	}
	return nil
}

var (
	_ domain.DaemonRegistry  = (*EncryptedStore)(nil)
	_ domain.SecretStore     = (*EncryptedStore)(nil)
	_ domain.UnlockStore     = (*EncryptedStore)(nil)
	_ domain.AnalysisHistory = (*EncryptedStore)(nil)
)
