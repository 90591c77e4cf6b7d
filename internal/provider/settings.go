package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Override92/tid3/internal/encryption"
)

// SettingsService manages source API keys and engine tuning values in the
// settings key-value table. API keys are encrypted at rest.
type SettingsService struct {
	db        *sql.DB
	encryptor *encryption.Encryptor
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(db *sql.DB, encryptor *encryption.Encryptor) *SettingsService {
	return &SettingsService{db: db, encryptor: encryptor}
}

// apiKeySettingKey returns the settings table key for a source's API key.
func apiKeySettingKey(name SourceName) string {
	return fmt.Sprintf("source.%s.api_key", name)
}

// keyStatusSettingKey returns the settings table key for a source's key test status.
func keyStatusSettingKey(name SourceName) string {
	return fmt.Sprintf("source.%s.key_status", name)
}

// ctxKeyOverride is the context key for per-request API key overrides.
// This lets callers inject an unsaved key so adapters read it during
// TestConnection without persisting first.
type ctxKeyOverride struct{}

// WithAPIKeyOverride returns a child context that overrides the stored API
// key for the named source. GetAPIKey returns this value instead of
// querying the database.
func WithAPIKeyOverride(ctx context.Context, name SourceName, key string) context.Context {
	parentOverrides, _ := ctx.Value(ctxKeyOverride{}).(map[SourceName]string)

	// Always create a fresh map to avoid mutating a map stored in a parent context.
	overrides := make(map[SourceName]string, len(parentOverrides)+1)
	for k, v := range parentOverrides {
		overrides[k] = v
	}
	overrides[name] = key
	return context.WithValue(ctx, ctxKeyOverride{}, overrides)
}

// GetAPIKey retrieves and decrypts the API key for a source. Returns an
// empty string if no key is configured.
func (s *SettingsService) GetAPIKey(ctx context.Context, name SourceName) (string, error) {
	if overrides, ok := ctx.Value(ctxKeyOverride{}).(map[SourceName]string); ok {
		if v, found := overrides[name]; found {
			return v, nil
		}
	}

	key := apiKeySettingKey(name)
	var encrypted string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading API key for %s: %w", name, err)
	}
	plaintext, err := s.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypting API key for %s: %w", name, err)
	}
	return plaintext, nil
}

// SetAPIKey encrypts and stores the API key for a source. The key upsert
// and status clear run in one transaction so the status never goes stale.
func (s *SettingsService) SetAPIKey(ctx context.Context, name SourceName, apiKey string) error {
	encrypted, err := s.encryptor.Encrypt(apiKey)
	if err != nil {
		return fmt.Errorf("encrypting API key for %s: %w", name, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit
	key := apiKeySettingKey(name)
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, encrypted, encrypted,
	); err != nil {
		return fmt.Errorf("storing API key for %s: %w", name, err)
	}
	// Clear stale status so the key shows as "untested" until re-verified.
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing API key for %s: %w", name, err)
	}
	return nil
}

// DeleteAPIKey removes the API key for a source and its associated status.
func (s *SettingsService) DeleteAPIKey(ctx context.Context, name SourceName) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", name, err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", apiKeySettingKey(name)); err != nil {
		return fmt.Errorf("deleting API key for %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", keyStatusSettingKey(name)); err != nil {
		return fmt.Errorf("clearing key status for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete for %s: %w", name, err)
	}
	return nil
}

// SetKeyStatus persists the test result status ("ok", "invalid") for a
// source key. An empty string deletes the status row.
func (s *SettingsService) SetKeyStatus(ctx context.Context, name SourceName, status string) error {
	key := keyStatusSettingKey(name)
	if status == "" {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
			return fmt.Errorf("clearing key status for %s: %w", name, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, status, status,
	)
	if err != nil {
		return fmt.Errorf("storing key status for %s: %w", name, err)
	}
	return nil
}

// TestSourceKey runs the source's connectivity check and classifies the
// outcome: nil is "ok", *ErrAuthRequired is "invalid". Transient failures
// return the error unclassified and never touch the stored status. When
// persist is true the classified status is stored so KeyStatuses reflects
// the last test.
func (s *SettingsService) TestSourceKey(ctx context.Context, src TestableSource, persist bool) (string, error) {
	err := src.TestConnection(ctx)

	var status string
	switch {
	case err == nil:
		status = "ok"
	default:
		var authErr *ErrAuthRequired
		if !errors.As(err, &authErr) {
			return "", err
		}
		status = "invalid"
	}

	if persist {
		if err := s.SetKeyStatus(ctx, src.Name(), status); err != nil {
			return "", err
		}
	}
	return status, nil
}

// GetKeyStatus returns the persisted test status for a source key, or an
// empty string when none is stored.
func (s *SettingsService) GetKeyStatus(ctx context.Context, name SourceName) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", keyStatusSettingKey(name)).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key status for %s: %w", name, err)
	}
	return value, nil
}

// HasAPIKey checks whether an API key is configured for a source.
func (s *SettingsService) HasAPIKey(ctx context.Context, name SourceName) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM settings WHERE key = ?", apiKeySettingKey(name)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking API key for %s: %w", name, err)
	}
	return count > 0, nil
}

// GetValue reads an arbitrary unencrypted settings value, or returns
// fallback when the key is absent.
func (s *SettingsService) GetValue(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// SetValue upserts an arbitrary unencrypted settings value.
func (s *SettingsService) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = datetime('now')",
		key, value, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// SourceKeyStatus describes the API key configuration state for a source.
type SourceKeyStatus struct {
	Name        SourceName     `json:"name"`
	DisplayName string         `json:"display_name"`
	RequiresKey bool           `json:"requires_key"`
	HasKey      bool           `json:"has_key"`
	Status      string         `json:"status"` // "ok", "invalid", "untested", "not_required", "unconfigured"
	AccessTier  AccessTier     `json:"access_tier"`
	HelpURL     string         `json:"help_url,omitempty"`
	RateLimit   *RateLimitInfo `json:"rate_limit,omitempty"`
}

// KeyStatuses reports the key configuration state for every known source.
func (s *SettingsService) KeyStatuses(ctx context.Context, registry *Registry) ([]SourceKeyStatus, error) {
	caps := SourceCapabilities()
	statuses := make([]SourceKeyStatus, 0, len(AllSourceNames()))

	for _, name := range AllSourceNames() {
		st := SourceKeyStatus{
			Name:        name,
			DisplayName: name.DisplayName(),
		}
		if cap, ok := caps[name]; ok {
			st.AccessTier = cap.Tier
			st.HelpURL = cap.HelpURL
			st.RateLimit = cap.RateLimit
		}
		if src := registry.Get(name); src != nil {
			st.RequiresKey = src.RequiresAuth()
		} else if fp := registry.GetFingerprint(name); fp != nil {
			st.RequiresKey = fp.RequiresAuth()
		}

		hasKey, err := s.HasAPIKey(ctx, name)
		if err != nil {
			return nil, err
		}
		st.HasKey = hasKey

		switch {
		case !st.RequiresKey:
			st.Status = "not_required"
		case !hasKey:
			st.Status = "unconfigured"
		default:
			status, err := s.GetKeyStatus(ctx, name)
			if err != nil {
				return nil, err
			}
			if status == "" {
				status = "untested"
			}
			st.Status = status
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
