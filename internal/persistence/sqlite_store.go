package persistence

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/petrijr/auraflow/pkg/api"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Store and EventStore backed by SQLite.
//
// It expects an *sql.DB that uses the "modernc.org/sqlite" driver, for
// example one returned by OpenSQLite. SQLite serializes writers, which gives
// the per-record write serialization the Store contract requires.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure SQLiteStore implements the interfaces.
var _ Store = (*SQLiteStore)(nil)

var _ EventStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file at path with WAL
// journaling and a busy timeout suitable for a single-process daemon.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewSQLiteStore applies pending schema migrations to db and returns a
// new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}

	// m.Close is not called: it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context) (*api.Venture, error) {
	v := &api.Venture{
		ID:        NewVentureID(),
		State:     api.InitialState,
		CreatedAt: s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ventures (id, state, created_at)
		VALUES (?, ?, ?)`,
		v.ID,
		string(v.State),
		v.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert venture: %w", err)
	}
	return v, nil
}

const ventureColumns = `id, state, niche_idea, product_details, marketing_details, sales_details, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenture(row rowScanner) (*api.Venture, error) {
	var (
		v                                api.Venture
		state                            string
		niche, product, marketing, sales []byte
		createdAt                        int64
	)
	if err := row.Scan(&v.ID, &state, &niche, &product, &marketing, &sales, &createdAt); err != nil {
		return nil, err
	}
	v.State = api.State(state)
	v.NicheIdea = nullableRaw(niche)
	v.ProductDetails = nullableRaw(product)
	v.MarketingDetails = nullableRaw(marketing)
	v.SalesDetails = nullableRaw(sales)
	v.CreatedAt = time.Unix(0, createdAt).UTC()
	return &v, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*api.Venture, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ventureColumns+` FROM ventures WHERE id = ?`, id)
	v, err := scanVenture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
		}
		return nil, err
	}
	return v, nil
}

func (s *SQLiteStore) SetState(ctx context.Context, id string, state api.State) error {
	if err := checkState(state); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE ventures SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

// detailColumn maps an allow-listed field to its column. The column name is
// never taken from caller input.
func detailColumn(field api.DetailField) (string, error) {
	switch field {
	case api.FieldNicheIdea:
		return "niche_idea", nil
	case api.FieldProductDetails:
		return "product_details", nil
	case api.FieldMarketingDetails:
		return "marketing_details", nil
	case api.FieldSalesDetails:
		return "sales_details", nil
	default:
		return "", fmt.Errorf("%w: %q", api.ErrInvalidDetailField, string(field))
	}
}

func (s *SQLiteStore) SetDetail(ctx context.Context, id string, field api.DetailField, payload any) error {
	column, err := detailColumn(field)
	if err != nil {
		return err
	}
	raw, err := EncodeDetail(payload)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE ventures SET `+column+` = ? WHERE id = ?`, string(raw), id)
	if err != nil {
		return err
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*api.Venture, error) {
	query := `SELECT ` + ventureColumns + ` FROM ventures`
	var args []any
	if filter.State != "" {
		query += ` WHERE state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ventures []*api.Venture
	for rows.Next() {
		v, err := scanVenture(rows)
		if err != nil {
			return nil, err
		}
		ventures = append(ventures, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ventures, nil
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]string, error) {
	placeholders := make([]string, len(api.ActiveStates))
	args := make([]any, len(api.ActiveStates))
	for i, st := range api.ActiveStates {
		placeholders[i] = "?"
		args[i] = string(st)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM ventures
		WHERE state IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY rowid ASC`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) TryAcquireLease(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM ventures WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%w: %s", api.ErrVentureNotFound, id)
		}
		return false, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO venture_leases (venture_id, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(venture_id) DO UPDATE
		SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE venture_leases.owner = excluded.owner OR venture_leases.expires_at <= ?`,
		id,
		owner,
		now.Add(ttl).UnixNano(),
		now.UnixNano(),
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *SQLiteStore) RenewLease(ctx context.Context, id, owner string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be > 0")
	}
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE venture_leases SET expires_at = ?
		WHERE venture_id = ? AND owner = ? AND expires_at > ?`,
		now.Add(ttl).UnixNano(),
		id,
		owner,
		now.UnixNano(),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", api.ErrLeaseLost, id)
	}
	return nil
}

func (s *SQLiteStore) ReleaseLease(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM venture_leases WHERE venture_id = ? AND owner = ?`, id, owner)
	return err
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, ev api.VentureEvent) error {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO venture_events (venture_id, at, type, from_state, to_state, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.VentureID,
		at.UnixNano(),
		string(ev.Type),
		string(ev.From),
		string(ev.To),
		ev.Detail,
	)
	return err
}

func (s *SQLiteStore) ListEvents(ctx context.Context, ventureID string) ([]api.VentureEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT venture_id, at, type, from_state, to_state, detail
		FROM venture_events
		WHERE venture_id = ?
		ORDER BY id ASC`, ventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.VentureEvent
	for rows.Next() {
		var (
			ev            api.VentureEvent
			atN           int64
			typ, from, to string
		)
		if err := rows.Scan(&ev.VentureID, &atN, &typ, &from, &to, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN).UTC()
		ev.Type = api.EventType(typ)
		ev.From = api.State(from)
		ev.To = api.State(to)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
