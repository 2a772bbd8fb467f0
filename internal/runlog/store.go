package runlog

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/monitoring"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Run kinds.
const (
	KindGenerate    = "generate"
	KindExisting    = "existing"
	KindInterpolate = "interpolate"
	KindLattice     = "lattice"
)

// Run is one ledger row.
type Run struct {
	ID            string
	Kind          string
	Seed          int64
	Width         int
	Height        int
	Steps         int
	StartingStep  int
	ConfigJSON    string
	DenoiserCalls int
	Duration      time.Duration
	Stats         grid.Stats
	HasHeights    bool
	CreatedAt     time.Time
}

// Store is a sqlite-backed run ledger.
type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
	now func() time.Time
}

// Open opens or creates the ledger at path and migrates it to the latest
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run ledger: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Store{db: db, enc: enc, dec: dec, now: time.Now}, nil
}

// Close releases the database and codecs.
func (s *Store) Close() error {
	s.dec.Close()
	_ = s.enc.Close()
	return s.db.Close()
}

// SchemaVersion reports the applied migration version.
func (s *Store) SchemaVersion() (uint, bool, error) {
	return schemaVersion(s.db)
}

// Record inserts run and returns its id. A new id is assigned when run.ID is
// empty. heights may be nil; otherwise it is stored compressed and its
// statistics override run.Stats.
func (s *Store) Record(ctx context.Context, run Run, heights *grid.Grid) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	if run.ConfigJSON == "" {
		run.ConfigJSON = "{}"
	}

	var blob []byte
	if heights != nil {
		run.Stats = heights.Stats()
		run.Width, run.Height = heights.Width(), heights.Height()
		blob = s.enc.EncodeAll(encodeHeights(heights), nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, kind, seed, width, height, steps, starting_step, config_json,
			denoiser_calls, duration_ns, min_height, max_height, mean_height,
			stddev_height, heights_zstd, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Seed, run.Width, run.Height, run.Steps, run.StartingStep,
		run.ConfigJSON, run.DenoiserCalls, int64(run.Duration),
		run.Stats.Min, run.Stats.Max, run.Stats.Mean, run.Stats.StdDev,
		blob, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	monitoring.Logf("[runlog] recorded %s run %s (seed=%d, %dx%d, %d calls, %s)",
		run.Kind, run.ID, run.Seed, run.Width, run.Height, run.DenoiserCalls, run.Duration)
	return run.ID, nil
}

const runColumns = `run_id, kind, seed, width, height, steps, starting_step, config_json,
	denoiser_calls, duration_ns, min_height, max_height, mean_height, stddev_height,
	heights_zstd IS NOT NULL, created_at_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r          Run
		durationNS int64
		createdNS  int64
	)
	err := row.Scan(&r.ID, &r.Kind, &r.Seed, &r.Width, &r.Height, &r.Steps, &r.StartingStep,
		&r.ConfigJSON, &r.DenoiserCalls, &durationNS,
		&r.Stats.Min, &r.Stats.Max, &r.Stats.Mean, &r.Stats.StdDev,
		&r.HasHeights, &createdNS)
	if err != nil {
		return Run{}, err
	}
	r.Duration = time.Duration(durationNS)
	r.CreatedAt = time.Unix(0, createdNS)
	return r, nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. A limit of 0 or less returns
// every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadHeights returns the stored height field of a run.
func (s *Store) LoadHeights(ctx context.Context, id string) (*grid.Grid, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT heights_zstd FROM runs WHERE run_id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load heights for %s: %w", id, err)
	}
	if blob == nil {
		return nil, fmt.Errorf("run %s has no stored heights", id)
	}
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress heights for %s: %w", id, err)
	}
	return decodeHeights(raw)
}

// Delete removes a run. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// encodeHeights stores the first plane as width, height (uint32) followed by
// float64 samples, little endian.
func encodeHeights(g *grid.Grid) []byte {
	w, h := g.Width(), g.Height()
	buf := make([]byte, 8, 8+8*w*h)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(w))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h))
	for _, v := range g.Flat()[:w*h] {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func decodeHeights(raw []byte) (*grid.Grid, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("stored heights truncated: %d bytes", len(raw))
	}
	w := int(binary.LittleEndian.Uint32(raw[0:4]))
	h := int(binary.LittleEndian.Uint32(raw[4:8]))
	body := raw[8:]
	if len(body) != 8*w*h {
		return nil, fmt.Errorf("stored heights: %dx%d needs %d bytes, have %d", w, h, 8*w*h, len(body))
	}
	values := make([]float64, w*h)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i:]))
	}
	return grid.FromValues(grid.Plane(w, h), values)
}
