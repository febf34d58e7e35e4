package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	identity   TEXT NOT NULL UNIQUE,
	data       TEXT NOT NULL,
	date_added DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	lead_id       TEXT PRIMARY KEY REFERENCES leads(id),
	data          TEXT NOT NULL,
	last_enriched DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS vetting_results (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS review_records (
	lead_id     TEXT PRIMARY KEY REFERENCES leads(id),
	status      TEXT NOT NULL DEFAULT 'pending',
	feedback    TEXT NOT NULL DEFAULT '',
	reviewed_at DATETIME,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_prefs (
	user_id TEXT PRIMARY KEY,
	prefs   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_identity ON leads(identity);
CREATE INDEX IF NOT EXISTS idx_leads_date_added ON leads(date_added);
CREATE INDEX IF NOT EXISTS idx_vetting_lead_created ON vetting_results(lead_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert leads")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (id, identity, data, date_added) VALUES (?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   id = excluded.id, data = excluded.data, date_added = excluded.date_added`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert lead")
	}
	defer stmt.Close()

	for _, lead := range leads {
		data, err := json.Marshal(lead)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal lead %s", lead.ID)
		}
		if _, err := stmt.ExecContext(ctx, lead.ID, lead.Identity, string(data), lead.DateAdded.UTC()); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert lead %s", lead.Identity)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert leads")
	}
	return len(leads), nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM leads WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrLeadNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}

	var lead model.Lead
	if err := json.Unmarshal([]byte(data), &lead); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM leads ORDER BY date_added ASC, identity ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal([]byte(data), &lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile model.EnrichedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal profile")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (lead_id, data, last_enriched) VALUES (?, ?, ?)
		 ON CONFLICT(lead_id) DO UPDATE SET data = excluded.data, last_enriched = excluded.last_enriched`,
		profile.Lead.ID, string(data), profile.LastEnriched.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert profile %s", profile.Lead.ID)
}

func (s *SQLiteStore) ListProfiles(ctx context.Context, leadIDs []string) ([]model.EnrichedProfile, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}

	query := `SELECT data FROM profiles WHERE lead_id IN (?` +
		strings.Repeat(", ?", len(leadIDs)-1) + `) ORDER BY lead_id`
	args := make([]any, len(leadIDs))
	for i, id := range leadIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list profiles")
	}
	defer rows.Close()

	var profiles []model.EnrichedProfile
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan profile")
		}
		var p model.EnrichedProfile
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "sqlite: list profiles iterate")
}

func (s *SQLiteStore) InsertVettingResults(ctx context.Context, results []model.VettingResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert vetting")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vetting_results (id, lead_id, data, created_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert vetting")
	}
	defer stmt.Close()

	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal vetting result %s", r.ID)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.LeadID, string(data), r.CreatedAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: insert vetting result %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert vetting")
}

func (s *SQLiteStore) LatestVettingResults(ctx context.Context) (map[string]model.VettingResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM vetting_results ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest vetting results")
	}
	defer rows.Close()

	// Later rows overwrite earlier ones, so the map holds the newest
	// result per lead.
	latest := make(map[string]model.VettingResult)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vetting result")
		}
		var r model.VettingResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal vetting result")
		}
		latest[r.LeadID] = r
	}
	return latest, eris.Wrap(rows.Err(), "sqlite: latest vetting iterate")
}

func (s *SQLiteStore) GetOrCreateReview(ctx context.Context, leadID string) (model.ReviewRecord, error) {
	rec, err := s.getReview(ctx, leadID)
	if err == nil {
		return rec, nil
	}
	if !eris.Is(err, sql.ErrNoRows) {
		return model.ReviewRecord{}, err
	}

	// No record yet; the lead must exist before we create one.
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE id = ?`, leadID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return model.ReviewRecord{}, eris.Wrapf(model.ErrLeadNotFound, "lead %s", leadID)
		}
		return model.ReviewRecord{}, eris.Wrapf(err, "sqlite: check lead %s", leadID)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_records (lead_id, status, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(lead_id) DO NOTHING`,
		leadID, string(model.ReviewPending), now,
	)
	if err != nil {
		return model.ReviewRecord{}, eris.Wrapf(err, "sqlite: create review %s", leadID)
	}
	return s.getReview(ctx, leadID)
}

func (s *SQLiteStore) getReview(ctx context.Context, leadID string) (model.ReviewRecord, error) {
	var rec model.ReviewRecord
	var reviewedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT lead_id, status, feedback, reviewed_at, created_at FROM review_records WHERE lead_id = ?`,
		leadID,
	).Scan(&rec.LeadID, &rec.Status, &rec.Feedback, &reviewedAt, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return model.ReviewRecord{}, eris.Wrap(sql.ErrNoRows, "sqlite: review not found")
	}
	if err != nil {
		return model.ReviewRecord{}, eris.Wrapf(err, "sqlite: get review %s", leadID)
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	return rec, nil
}

func (s *SQLiteStore) UpdateReview(ctx context.Context, rec model.ReviewRecord) error {
	var reviewedAt any
	if rec.ReviewedAt != nil {
		reviewedAt = rec.ReviewedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE review_records SET status = ?, feedback = ?, reviewed_at = ? WHERE lead_id = ?`,
		string(rec.Status), rec.Feedback, reviewedAt, rec.LeadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update review %s", rec.LeadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrLeadNotFound, "review %s", rec.LeadID)
	}
	return nil
}

func (s *SQLiteStore) ListQueueRows(ctx context.Context) ([]review.QueueRow, error) {
	return assembleQueueRows(ctx, s)
}

func (s *SQLiteStore) GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT prefs FROM user_prefs WHERE user_id = ?`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.DefaultPreferences(userID), nil
	}
	if err != nil {
		return model.UserPreferences{}, eris.Wrapf(err, "sqlite: get prefs %s", userID)
	}

	var prefs model.UserPreferences
	if err := yaml.Unmarshal([]byte(raw), &prefs); err != nil {
		return model.UserPreferences{}, eris.Wrap(err, "sqlite: unmarshal prefs")
	}
	prefs.UserID = userID
	return prefs, nil
}

func (s *SQLiteStore) PutPreferences(ctx context.Context, prefs model.UserPreferences) error {
	raw, err := yaml.Marshal(prefs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prefs")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_prefs (user_id, prefs) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET prefs = excluded.prefs`,
		prefs.UserID, string(raw),
	)
	return eris.Wrapf(err, "sqlite: put prefs %s", prefs.UserID)
}
