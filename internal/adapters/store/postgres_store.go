package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/svjp05/IEMS-SERVR/internal/domain"
	"github.com/svjp05/IEMS-SERVR/internal/ports"
)

// DefaultTable receives samples that carry no waveform tag.
const DefaultTable = "earthquake_data"

var (
	ErrNilSample        = errors.New("sample is nil")
	ErrInvalidAmplitude = errors.New("amplitude is not a finite number")
	ErrInvalidTable     = errors.New("invalid table name")
)

// Postgres truncates identifiers at 63 bytes; two are kept for the _x suffix.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,60}$`)

// ValidateTable checks that name can serve as the base table name, including
// its per-channel siblings.
func ValidateTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// PostgresStore writes each sample into earthquake_data or one of its
// per-channel siblings (earthquake_data_x, _y, _z).
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{db: db, tableName: table}
}

func (p *PostgresStore) Name() string { return "postgres" }

// TableFor picks the table for a sample based on its waveform tag.
func (p *PostgresStore) TableFor(s *domain.Sample) string {
	return tableFor(p.tableName, s.WaveformType())
}

func tableFor(base, waveform string) string {
	switch waveform {
	case "X":
		return base + "_x"
	case "Y":
		return base + "_y"
	case "Z":
		return base + "_z"
	default:
		return base
	}
}

func (p *PostgresStore) Save(ctx context.Context, s *domain.Sample) (ports.SavedSample, error) {
	if err := validate(s); err != nil {
		return ports.SavedSample{}, err
	}

	md := s.Metadata
	if md == nil {
		md = domain.Metadata{}
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return ports.SavedSample{}, fmt.Errorf("marshal metadata: %w", err)
	}

	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	table := p.TableFor(s)
	query := "INSERT INTO " + pq.QuoteIdentifier(table) + " (timestamp, amplitude, metadata) VALUES ($1, $2, $3) RETURNING id, timestamp"

	var (
		id     int64
		stored time.Time
	)
	if err := p.db.QueryRowContext(ctx, query, ts, s.Amplitude, raw).Scan(&id, &stored); err != nil {
		return ports.SavedSample{}, fmt.Errorf("insert into %s: %w", table, err)
	}

	return ports.SavedSample{
		ID:        id,
		Timestamp: stored,
		Metadata:  md,
		TableName: table,
	}, nil
}

func validate(s *domain.Sample) error {
	if s == nil {
		return ErrNilSample
	}
	if !s.Finite() {
		return ErrInvalidAmplitude
	}
	return nil
}

var _ ports.SampleStore = (*PostgresStore)(nil)
