package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dotsetgreg/leadbot/pkg/utils"
)

// SQLiteStore keeps the lead table in a local database file. Phones are
// stored normalized to digits so "+972..." and "972..." hit the same row.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create leads db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	cols := make([]string, 0, len(Columns)+1)
	cols = append(cols, "phone_key TEXT NOT NULL UNIQUE")
	for _, c := range Columns {
		if c == ColMessageCount {
			cols = append(cols, c+" INTEGER NOT NULL DEFAULT 0")
			continue
		}
		cols = append(cols, c+" TEXT NOT NULL DEFAULT ''")
	}
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS leads (` + strings.Join(cols, ", ") + `);`,
		`CREATE INDEX IF NOT EXISTS leads_status_idx ON leads(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init leads schema: %w", err)
		}
	}
	return nil
}

var selectColumns = strings.Join(Columns, ", ")

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	vals := make([]string, len(Columns))
	var count int
	dest := make([]any, len(Columns))
	for i, c := range Columns {
		if c == ColMessageCount {
			dest[i] = &count
			continue
		}
		dest[i] = &vals[i]
	}
	if err := row.Scan(dest...); err != nil {
		return Lead{}, err
	}
	l := FromRow(vals)
	l.MessageCount = count
	return l, nil
}

func (s *SQLiteStore) Get(ctx context.Context, phone string) (*Lead, error) {
	key := utils.NormalizeNumber(phone)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM leads WHERE phone_key = ?`, key)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %s: %w", phone, err)
	}
	return &l, nil
}

func (s *SQLiteStore) Create(ctx context.Context, lead Lead) error {
	key := utils.NormalizeNumber(lead.Phone)
	if key == "" {
		return fmt.Errorf("create lead: phone is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(Columns)+1), ", ")
	args := make([]any, 0, len(Columns)+1)
	args = append(args, key)
	for _, c := range Columns {
		if c == ColMessageCount {
			args = append(args, lead.MessageCount)
			continue
		}
		args = append(args, lead.Get(c))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (phone_key, `+selectColumns+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("create lead %s: %w", lead.Phone, err)
	}
	return nil
}

func (s *SQLiteStore) Update(ctx context.Context, phone string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	key := utils.NormalizeNumber(phone)

	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	// Columns order keeps the statement text stable.
	for _, c := range Columns {
		v, ok := fields[c]
		if !ok {
			continue
		}
		sets = append(sets, c+" = ?")
		if c == ColMessageCount {
			var probe Lead
			probe.Set(c, v)
			args = append(args, probe.MessageCount)
			continue
		}
		args = append(args, v)
	}
	args = append(args, key)

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE phone_key = ?`, args...)
	if err != nil {
		return fmt.Errorf("update lead %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update lead %s: not found", phone)
	}
	return nil
}

// RowIndex returns the insertion position (1-based) of the lead.
func (s *SQLiteStore) RowIndex(ctx context.Context, phone string) (int, bool, error) {
	var rowID int
	err := s.db.QueryRowContext(ctx, `SELECT rowid FROM leads WHERE phone_key = ?`, utils.NormalizeNumber(phone)).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("row index %s: %w", phone, err)
	}
	return rowID, true, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM leads ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
