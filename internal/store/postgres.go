package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/podreach/leadpipe/internal/db"
	"github.com/podreach/leadpipe/internal/model"
	"github.com/podreach/leadpipe/internal/review"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_lead":       `SELECT data FROM leads WHERE id = $1`,
	"upsert_profile": `INSERT INTO profiles (lead_id, data, last_enriched) VALUES ($1, $2, $3) ON CONFLICT (lead_id) DO UPDATE SET data = EXCLUDED.data, last_enriched = EXCLUDED.last_enriched`,
	"get_review":     `SELECT lead_id, status, feedback, reviewed_at, created_at FROM review_records WHERE lead_id = $1`,
	"update_review":  `UPDATE review_records SET status = $1, feedback = $2, reviewed_at = $3 WHERE lead_id = $4`,
	"get_prefs":      `SELECT prefs FROM user_prefs WHERE user_id = $1`,
	"put_prefs":      `INSERT INTO user_prefs (user_id, prefs) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET prefs = EXCLUDED.prefs`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id         TEXT PRIMARY KEY,
	identity   TEXT NOT NULL UNIQUE,
	data       JSONB NOT NULL,
	date_added TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	lead_id       TEXT PRIMARY KEY REFERENCES leads(id),
	data          JSONB NOT NULL,
	last_enriched TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vetting_results (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_records (
	lead_id     TEXT PRIMARY KEY REFERENCES leads(id),
	status      TEXT NOT NULL DEFAULT 'pending',
	feedback    TEXT NOT NULL DEFAULT '',
	reviewed_at TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS user_prefs (
	user_id TEXT PRIMARY KEY,
	prefs   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_date_added ON leads(date_added);
CREATE INDEX IF NOT EXISTS idx_vetting_lead_created ON vetting_results(lead_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_review_status ON review_records(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		data, err := json.Marshal(lead)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal lead %s", lead.ID)
		}
		rows = append(rows, []any{lead.ID, lead.Identity, data, lead.DateAdded.UTC()})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      []string{"id", "identity", "data", "date_added"},
		ConflictKeys: []string{"identity"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert leads")
	}
	return int(n), nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM leads WHERE id = $1`, id).Scan(&data)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrLeadNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}

	var lead model.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead")
	}
	return &lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM leads ORDER BY date_added ASC, identity ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		var lead model.Lead
		if err := json.Unmarshal(data, &lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		leads = append(leads, lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, profile model.EnrichedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal profile")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (lead_id, data, last_enriched) VALUES ($1, $2, $3)
		 ON CONFLICT (lead_id) DO UPDATE SET data = EXCLUDED.data, last_enriched = EXCLUDED.last_enriched`,
		profile.Lead.ID, data, profile.LastEnriched.UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert profile %s", profile.Lead.ID)
}

func (s *PostgresStore) ListProfiles(ctx context.Context, leadIDs []string) ([]model.EnrichedProfile, error) {
	if len(leadIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT data FROM profiles WHERE lead_id = ANY($1) ORDER BY lead_id`,
		leadIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list profiles")
	}
	defer rows.Close()

	var profiles []model.EnrichedProfile
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan profile")
		}
		var p model.EnrichedProfile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "postgres: list profiles iterate")
}

func (s *PostgresStore) InsertVettingResults(ctx context.Context, results []model.VettingResult) error {
	if len(results) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(results))
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal vetting result %s", r.ID)
		}
		rows = append(rows, []any{r.ID, r.LeadID, data, r.CreatedAt.UTC()})
	}

	_, err := db.CopyFrom(ctx, s.pool, "vetting_results",
		[]string{"id", "lead_id", "data", "created_at"}, rows)
	return eris.Wrap(err, "postgres: insert vetting results")
}

func (s *PostgresStore) LatestVettingResults(ctx context.Context) (map[string]model.VettingResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (lead_id) data FROM vetting_results
		 ORDER BY lead_id, created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest vetting results")
	}
	defer rows.Close()

	latest := make(map[string]model.VettingResult)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan vetting result")
		}
		var r model.VettingResult
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal vetting result")
		}
		latest[r.LeadID] = r
	}
	return latest, eris.Wrap(rows.Err(), "postgres: latest vetting iterate")
}

func (s *PostgresStore) GetOrCreateReview(ctx context.Context, leadID string) (model.ReviewRecord, error) {
	rec, err := s.getReview(ctx, leadID)
	if err == nil {
		return rec, nil
	}
	if !eris.Is(err, pgx.ErrNoRows) {
		return model.ReviewRecord{}, err
	}

	var exists int
	if err := s.pool.QueryRow(ctx, `SELECT 1 FROM leads WHERE id = $1`, leadID).Scan(&exists); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return model.ReviewRecord{}, eris.Wrapf(model.ErrLeadNotFound, "lead %s", leadID)
		}
		return model.ReviewRecord{}, eris.Wrapf(err, "postgres: check lead %s", leadID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_records (lead_id, status, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (lead_id) DO NOTHING`,
		leadID, string(model.ReviewPending), time.Now().UTC(),
	)
	if err != nil {
		return model.ReviewRecord{}, eris.Wrapf(err, "postgres: create review %s", leadID)
	}
	return s.getReview(ctx, leadID)
}

func (s *PostgresStore) getReview(ctx context.Context, leadID string) (model.ReviewRecord, error) {
	var rec model.ReviewRecord
	var reviewedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT lead_id, status, feedback, reviewed_at, created_at FROM review_records WHERE lead_id = $1`,
		leadID,
	).Scan(&rec.LeadID, &rec.Status, &rec.Feedback, &reviewedAt, &rec.CreatedAt)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return model.ReviewRecord{}, eris.Wrap(pgx.ErrNoRows, "postgres: review not found")
		}
		return model.ReviewRecord{}, eris.Wrapf(err, "postgres: get review %s", leadID)
	}
	rec.ReviewedAt = reviewedAt
	return rec, nil
}

func (s *PostgresStore) UpdateReview(ctx context.Context, rec model.ReviewRecord) error {
	var reviewedAt any
	if rec.ReviewedAt != nil {
		reviewedAt = rec.ReviewedAt.UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE review_records SET status = $1, feedback = $2, reviewed_at = $3 WHERE lead_id = $4`,
		string(rec.Status), rec.Feedback, reviewedAt, rec.LeadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update review %s", rec.LeadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrLeadNotFound, "review %s", rec.LeadID)
	}
	return nil
}

func (s *PostgresStore) ListQueueRows(ctx context.Context) ([]review.QueueRow, error) {
	return assembleQueueRows(ctx, s)
}

func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `SELECT prefs FROM user_prefs WHERE user_id = $1`, userID).Scan(&raw)
	if eris.Is(err, pgx.ErrNoRows) {
		return model.DefaultPreferences(userID), nil
	}
	if err != nil {
		return model.UserPreferences{}, eris.Wrapf(err, "postgres: get prefs %s", userID)
	}

	var prefs model.UserPreferences
	if err := yaml.Unmarshal([]byte(raw), &prefs); err != nil {
		return model.UserPreferences{}, eris.Wrap(err, "postgres: unmarshal prefs")
	}
	prefs.UserID = userID
	return prefs, nil
}

func (s *PostgresStore) PutPreferences(ctx context.Context, prefs model.UserPreferences) error {
	raw, err := yaml.Marshal(prefs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prefs")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO user_prefs (user_id, prefs) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET prefs = EXCLUDED.prefs`,
		prefs.UserID, string(raw),
	)
	return eris.Wrapf(err, "postgres: put prefs %s", prefs.UserID)
}
