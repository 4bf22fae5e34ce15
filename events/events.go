// Package events stores a durable log of gate activations in sqlite.
package events

import (
	"context"
	"database/sql"
	"embed"
	"image"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // register the sqlite driver

	"go.viam.com/gatekeeper/vision/objectdetection"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Activation is one gate opening.
type Activation struct {
	ID         string                    `json:"id"`
	Time       time.Time                 `json:"time"`
	FrameIndex int                       `json:"frame_index"`
	Detection  objectdetection.Detection `json:"detection"`
}

// NewActivation returns an activation with a fresh id.
func NewActivation(at time.Time, frameIndex int, det objectdetection.Detection) Activation {
	return Activation{ID: uuid.NewString(), Time: at, FrameIndex: frameIndex, Detection: det}
}

// Log is the activation log.
type Log struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings its schema up to date.
func Open(ctx context.Context, path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open activation log %s", path)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot open activation log %s", path), db.Close())
	}
	if err := migrateUp(db); err != nil {
		return nil, multierr.Combine(err, db.Close())
	}
	return &Log{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "cannot read embedded migrations")
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "cannot create sqlite migration driver")
	}
	// Closing m would close db, so it is left to the garbage collector.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "cannot create migrator")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "migration up failed")
	}
	return nil
}

// Record stores an activation.
func (l *Log) Record(ctx context.Context, a Activation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	b := a.Detection.BoundingBox
	_, err := l.db.ExecContext(ctx, `INSERT INTO activations
		(id, activated_at_unix_nanos, frame_index, class_id, label, confidence, box_x1, box_y1, box_x2, box_y2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Time.UnixNano(), a.FrameIndex, a.Detection.ClassID, a.Detection.Label, a.Detection.Confidence,
		b.Min.X, b.Min.Y, b.Max.X, b.Max.Y,
	)
	return errors.Wrap(err, "cannot record activation")
}

// Recent returns up to limit activations, newest first. limit <= 0 returns all of them.
func (l *Log) Recent(ctx context.Context, limit int) ([]Activation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `SELECT
		id, activated_at_unix_nanos, frame_index, class_id, label, confidence, box_x1, box_y1, box_x2, box_y2
		FROM activations ORDER BY activated_at_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query activations")
	}
	defer rows.Close() //nolint:errcheck

	activations := []Activation{}
	for rows.Next() {
		var (
			a              Activation
			nanos          int64
			x1, y1, x2, y2 int
		)
		if err := rows.Scan(&a.ID, &nanos, &a.FrameIndex, &a.Detection.ClassID, &a.Detection.Label,
			&a.Detection.Confidence, &x1, &y1, &x2, &y2); err != nil {
			return nil, errors.Wrap(err, "cannot scan activation")
		}
		a.Time = time.Unix(0, nanos)
		a.Detection.BoundingBox = image.Rect(x1, y1, x2, y2)
		activations = append(activations, a)
	}
	return activations, rows.Err()
}

// Count returns the number of stored activations.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activations").Scan(&n)
	return n, err
}

// Close closes the database.
func (l *Log) Close() error {
	return l.db.Close()
}
