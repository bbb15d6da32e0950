// Package infra implements infrastructure concerns (usage source, process
// control, encrypted store, dialogue oracle).
package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/krisyupher/Focus-MotherFocus-sub003/internal/domain"
)

const storeDBName = "focusguard.db"

// EncryptedStore owns the SQLCipher database and hands out per-concern
// repositories backed by it.
type EncryptedStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedStore opens (or creates) the encrypted database.
// The key is supplied to SQLCipher as a raw hex key via the DSN.
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

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &EncryptedStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *EncryptedStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS category_mappings (
		app_id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		blocked INTEGER NOT NULL DEFAULT 0,
		custom_threshold_ms INTEGER NOT NULL DEFAULT 0,
		added_by TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agreements (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		agreed_ms INTEGER NOT NULL,
		created_at_ms INTEGER NOT NULL,
		expires_at_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		warned_at_ms INTEGER NOT NULL DEFAULT 0,
		violated_at_ms INTEGER NOT NULL DEFAULT 0,
		completed_at_ms INTEGER NOT NULL DEFAULT 0,
		conversation_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS agreement_audit (
		agreement_id TEXT NOT NULL,
		old_expires_at_ms INTEGER NOT NULL,
		new_expires_at_ms INTEGER NOT NULL,
		reason TEXT NOT NULL,
		at_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS interventions (
		id TEXT PRIMARY KEY,
		at_ms INTEGER NOT NULL,
		channel TEXT NOT NULL,
		app_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		outcome TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_interventions_channel ON interventions(channel, at_ms);

	CREATE TABLE IF NOT EXISTS usage_samples (
		app_id TEXT NOT NULL,
		window_start_ms INTEGER NOT NULL,
		window_end_ms INTEGER NOT NULL,
		foreground_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_samples_window ON usage_samples(window_start_ms, window_end_ms);
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

// Mappings returns the category-mapping repository.
func (s *EncryptedStore) Mappings() *MappingRepo {
	return &MappingRepo{db: s.db}
}

// Agreements returns the agreement repository.
func (s *EncryptedStore) Agreements() *AgreementRepo {
	return &AgreementRepo{db: s.db}
}

// Interventions returns the intervention log repository.
func (s *EncryptedStore) Interventions() *InterventionRepo {
	return &InterventionRepo{db: s.db}
}

// Samples returns the usage-sample repository.
func (s *EncryptedStore) Samples() *SampleRepo {
	return &SampleRepo{db: s.db}
}

func msOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timeOrZero(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// MappingRepo persists category mappings.
type MappingRepo struct {
	db *sql.DB
}

var _ domain.MappingStore = (*MappingRepo)(nil)

func (r *MappingRepo) Get(appID string) (*domain.CategoryMapping, error) {
	var m domain.CategoryMapping
	var blocked int
	var thresholdMs int64
	err := r.db.QueryRow(`
		SELECT app_id, category, blocked, custom_threshold_ms, added_by
		FROM category_mappings WHERE app_id = ?`, appID).
		Scan(&m.AppID, &m.Category, &blocked, &thresholdMs, &m.AddedBy)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Blocked = blocked != 0
	m.CustomThreshold = time.Duration(thresholdMs) * time.Millisecond
	return &m, nil
}

func (r *MappingRepo) Upsert(m domain.CategoryMapping) error {
	blocked := 0
	if m.Blocked {
		blocked = 1
	}
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO category_mappings
		(app_id, category, blocked, custom_threshold_ms, added_by)
		VALUES (?, ?, ?, ?, ?)`,
		m.AppID, string(m.Category), blocked, m.CustomThreshold.Milliseconds(), string(m.AddedBy))
	return err
}

func (r *MappingRepo) GetAll() ([]domain.CategoryMapping, error) {
	return r.query(`SELECT app_id, category, blocked, custom_threshold_ms, added_by
		FROM category_mappings ORDER BY app_id`)
}

func (r *MappingRepo) GetByCategory(c domain.Category) ([]domain.CategoryMapping, error) {
	return r.query(`SELECT app_id, category, blocked, custom_threshold_ms, added_by
		FROM category_mappings WHERE category = ? ORDER BY app_id`, string(c))
}

func (r *MappingRepo) Delete(appID string) error {
	_, err := r.db.Exec(`DELETE FROM category_mappings WHERE app_id = ?`, appID)
	return err
}

func (r *MappingRepo) query(query string, args ...any) ([]domain.CategoryMapping, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CategoryMapping
	for rows.Next() {
		var m domain.CategoryMapping
		var blocked int
		var thresholdMs int64
		if err := rows.Scan(&m.AppID, &m.Category, &blocked, &thresholdMs, &m.AddedBy); err != nil {
			return nil, err
		}
		m.Blocked = blocked != 0
		m.CustomThreshold = time.Duration(thresholdMs) * time.Millisecond
		out = append(out, m)
	}
	return out, rows.Err()
}

// AgreementRepo persists agreements and their audit trail.
type AgreementRepo struct {
	db *sql.DB
}

var _ domain.AgreementStore = (*AgreementRepo)(nil)

const agreementColumns = `id, app_id, category, agreed_ms, created_at_ms,
	expires_at_ms, status, warned_at_ms, violated_at_ms, completed_at_ms, conversation_id`

func (r *AgreementRepo) Insert(a domain.Agreement) error {
	_, err := r.db.Exec(`INSERT INTO agreements
		(id, app_id, category, agreed_ms, created_at_ms, expires_at_ms, status,
		 warned_at_ms, violated_at_ms, completed_at_ms, conversation_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.AppID, string(a.Category), a.AgreedDuration.Milliseconds(),
		a.CreatedAt.UnixMilli(), a.ExpiresAt.UnixMilli(), string(a.Status),
		msOrZero(a.WarnedAt), msOrZero(a.ViolatedAt), msOrZero(a.CompletedAt),
		a.ConversationID)
	return err
}

func (r *AgreementRepo) Update(a domain.Agreement) error {
	_, err := r.db.Exec(`UPDATE agreements SET
		app_id = ?, category = ?, agreed_ms = ?, created_at_ms = ?, expires_at_ms = ?,
		status = ?, warned_at_ms = ?, violated_at_ms = ?, completed_at_ms = ?, conversation_id = ?
		WHERE id = ?`,
		a.AppID, string(a.Category), a.AgreedDuration.Milliseconds(),
		a.CreatedAt.UnixMilli(), a.ExpiresAt.UnixMilli(), string(a.Status),
		msOrZero(a.WarnedAt), msOrZero(a.ViolatedAt), msOrZero(a.CompletedAt),
		a.ConversationID, a.ID)
	return err
}

func (r *AgreementRepo) Get(id string) (*domain.Agreement, error) {
	row := r.db.QueryRow(`SELECT `+agreementColumns+` FROM agreements WHERE id = ?`, id)
	a, err := scanAgreement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AgreementRepo) GetActive() ([]domain.Agreement, error) {
	rows, err := r.db.Query(`SELECT `+agreementColumns+` FROM agreements
		WHERE status = ? ORDER BY created_at_ms`, string(domain.AgreementActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row scanner) (domain.Agreement, error) {
	var a domain.Agreement
	var agreedMs, createdMs, expiresMs, warnedMs, violatedMs, completedMs int64
	err := row.Scan(&a.ID, &a.AppID, &a.Category, &agreedMs, &createdMs,
		&expiresMs, &a.Status, &warnedMs, &violatedMs, &completedMs, &a.ConversationID)
	if err != nil {
		return domain.Agreement{}, err
	}
	a.AgreedDuration = time.Duration(agreedMs) * time.Millisecond
	a.CreatedAt = time.UnixMilli(createdMs)
	a.ExpiresAt = time.UnixMilli(expiresMs)
	a.WarnedAt = timeOrZero(warnedMs)
	a.ViolatedAt = timeOrZero(violatedMs)
	a.CompletedAt = timeOrZero(completedMs)
	return a, nil
}

func (r *AgreementRepo) AppendAudit(e domain.AuditEntry) error {
	_, err := r.db.Exec(`INSERT INTO agreement_audit
		(agreement_id, old_expires_at_ms, new_expires_at_ms, reason, at_ms)
		VALUES (?, ?, ?, ?, ?)`,
		e.AgreementID, e.OldExpiresAt.UnixMilli(), e.NewExpiresAt.UnixMilli(),
		e.Reason, e.At.UnixMilli())
	return err
}

func (r *AgreementRepo) AuditFor(agreementID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.Query(`SELECT agreement_id, old_expires_at_ms, new_expires_at_ms, reason, at_ms
		FROM agreement_audit WHERE agreement_id = ? ORDER BY at_ms`, agreementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var oldMs, newMs, atMs int64
		if err := rows.Scan(&e.AgreementID, &oldMs, &newMs, &e.Reason, &atMs); err != nil {
			return nil, err
		}
		e.OldExpiresAt = time.UnixMilli(oldMs)
		e.NewExpiresAt = time.UnixMilli(newMs)
		e.At = time.UnixMilli(atMs)
		out = append(out, e)
	}
	return out, rows.Err()
}

// InterventionRepo is the append-only intervention history.
type InterventionRepo struct {
	db *sql.DB
}

var _ domain.InterventionLog = (*InterventionRepo)(nil)

func (r *InterventionRepo) Append(rec domain.InterventionRecord) error {
	_, err := r.db.Exec(`INSERT INTO interventions (id, at_ms, channel, app_id, action, outcome)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.At.UnixMilli(), rec.Channel, rec.AppID, string(rec.Action), rec.Outcome)
	return err
}

func (r *InterventionRepo) LastForChannel(channel string) (*domain.InterventionRecord, error) {
	var rec domain.InterventionRecord
	var atMs int64
	err := r.db.QueryRow(`SELECT id, at_ms, channel, app_id, action, outcome
		FROM interventions WHERE channel = ? ORDER BY at_ms DESC LIMIT 1`, channel).
		Scan(&rec.ID, &atMs, &rec.Channel, &rec.AppID, &rec.Action, &rec.Outcome)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.At = time.UnixMilli(atMs)
	return &rec, nil
}

func (r *InterventionRepo) Recent(limit int) ([]domain.InterventionRecord, error) {
	rows, err := r.db.Query(`SELECT id, at_ms, channel, app_id, action, outcome
		FROM interventions ORDER BY at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InterventionRecord
	for rows.Next() {
		var rec domain.InterventionRecord
		var atMs int64
		if err := rows.Scan(&rec.ID, &atMs, &rec.Channel, &rec.AppID, &rec.Action, &rec.Outcome); err != nil {
			return nil, err
		}
		rec.At = time.UnixMilli(atMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *InterventionRepo) DeleteOlderThan(t time.Time) error {
	_, err := r.db.Exec(`DELETE FROM interventions WHERE at_ms < ?`, t.UnixMilli())
	return err
}

// SampleRepo persists usage samples so baselines survive restarts.
type SampleRepo struct {
	db *sql.DB
}

var _ domain.SampleStore = (*SampleRepo)(nil)

func (r *SampleRepo) Record(sample domain.UsageSample) error {
	_, err := r.db.Exec(`INSERT INTO usage_samples
		(app_id, window_start_ms, window_end_ms, foreground_ms)
		VALUES (?, ?, ?, ?)`,
		sample.AppID, sample.WindowStart.UnixMilli(), sample.WindowEnd.UnixMilli(),
		sample.Foreground.Milliseconds())
	return err
}

func (r *SampleRepo) TotalsBetween(start, end time.Time) (map[string]time.Duration, error) {
	rows, err := r.db.Query(`SELECT app_id, SUM(foreground_ms) FROM usage_samples
		WHERE window_start_ms < ? AND window_end_ms > ?
		GROUP BY app_id`, end.UnixMilli(), start.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]time.Duration)
	for rows.Next() {
		var appID string
		var ms int64
		if err := rows.Scan(&appID, &ms); err != nil {
			return nil, err
		}
		totals[appID] = time.Duration(ms) * time.Millisecond
	}
	return totals, rows.Err()
}

func (r *SampleRepo) DeleteOlderThan(t time.Time) error {
	_, err := r.db.Exec(`DELETE FROM usage_samples WHERE window_end_ms < ?`, t.UnixMilli())
	return err
}
