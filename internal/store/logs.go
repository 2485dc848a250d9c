package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/santelocale/healthlog/internal/health"
	"github.com/santelocale/healthlog/internal/live"
	"github.com/santelocale/healthlog/internal/observability"
)

// LogDAO is the query and command surface over health_logs.
//
// kind and recorded_at are stored in clear for ordering and filtering;
// the value, display text and annotation are sealed in payload, bound to
// kind and recorded_at as associated data.
type LogDAO struct {
	store  *Store
	sealer *sealer
}

// logPayload is the sealed part of a row.
type logPayload struct {
	Value       float64 `json:"v"`
	DisplayText string  `json:"d,omitempty"`
	Annotation  string  `json:"a,omitempty"`
}

// ObserveAll streams every measurement, most recent first, ties by
// ascending ID. Each commit to health_logs produces a new snapshot.
func (d *LogDAO) ObserveAll(ctx context.Context) *live.Subscription[[]health.Measurement] {
	return live.Observe(ctx, d.store.tracker, "logs.all", d.All, LogsTable)
}

// ObserveLastGlucose streams the most recent glucose measurement, or nil
// when there is none.
func (d *LogDAO) ObserveLastGlucose(ctx context.Context) *live.Subscription[*health.Measurement] {
	return live.Observe(ctx, d.store.tracker, "logs.last_glucose", d.LastGlucose, LogsTable)
}

// All returns one snapshot of ObserveAll. Returns an empty slice, not
// nil, when the table is empty.
func (d *LogDAO) All(ctx context.Context) ([]health.Measurement, error) {
	if err := d.store.checkOpen(); err != nil {
		return nil, err
	}
	defer observability.ObserveQuery("logs.all", time.Now())

	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, kind, recorded_at, payload
		FROM health_logs
		ORDER BY recorded_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query health logs: %w", err)
	}
	defer rows.Close()

	logs := []health.Measurement{}
	for rows.Next() {
		m, err := d.scan(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health logs: %w", err)
	}
	return logs, nil
}

// LastGlucose returns the glucose measurement with the greatest
// recorded_at (lowest ID on a tie), or nil.
func (d *LogDAO) LastGlucose(ctx context.Context) (*health.Measurement, error) {
	if err := d.store.checkOpen(); err != nil {
		return nil, err
	}
	defer observability.ObserveQuery("logs.last_glucose", time.Now())

	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, kind, recorded_at, payload
		FROM health_logs
		WHERE kind = ?
		ORDER BY recorded_at DESC, id ASC
		LIMIT 1
	`, string(health.KindGlucose))

	m, err := d.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert stores m and returns its new ID. m.ID must be zero. The row is
// visible to every snapshot taken after Insert returns.
func (d *LogDAO) Insert(ctx context.Context, m health.Measurement) (int64, error) {
	if err := d.store.checkOpen(); err != nil {
		return 0, err
	}
	if err := m.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMeasurement, err)
	}

	plain, err := json.Marshal(logPayload{
		Value:       m.Value,
		DisplayText: m.DisplayText,
		Annotation:  m.Annotation,
	})
	if err != nil {
		return 0, fmt.Errorf("insert health log: marshal payload: %w", err)
	}
	payload, err := d.sealer.seal(plain, associatedData(m.Kind, m.RecordedAt))
	if err != nil {
		return 0, fmt.Errorf("insert health log: seal payload: %w", err)
	}

	res, err := d.store.db.ExecContext(ctx, `
		INSERT INTO health_logs (kind, recorded_at, payload)
		VALUES (?, ?, ?)
	`, string(m.Kind), m.RecordedAt, payload)
	if err != nil {
		return 0, fmt.Errorf("insert health log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert health log: last insert id: %w", err)
	}

	d.changed("insert")
	return id, nil
}

// Delete removes m by ID. Deleting a row that no longer exists is not an
// error.
func (d *LogDAO) Delete(ctx context.Context, m health.Measurement) error {
	return d.DeleteByID(ctx, m.ID)
}

// DeleteByID removes the row with the given ID, if present.
func (d *LogDAO) DeleteByID(ctx context.Context, id int64) error {
	if err := d.store.checkOpen(); err != nil {
		return err
	}
	res, err := d.store.db.ExecContext(ctx, `DELETE FROM health_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete health log %d: %w", id, err)
	}
	// Idempotent deletes leave observers alone.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	d.changed("delete")
	return nil
}

// DeleteAll removes every row. IDs are not reused afterwards.
func (d *LogDAO) DeleteAll(ctx context.Context) error {
	if err := d.store.checkOpen(); err != nil {
		return err
	}
	if _, err := d.store.db.ExecContext(ctx, `DELETE FROM health_logs`); err != nil {
		return fmt.Errorf("delete all health logs: %w", err)
	}
	d.changed("delete_all")
	return nil
}

// Count returns the number of rows.
func (d *LogDAO) Count(ctx context.Context) (int, error) {
	if err := d.store.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := d.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count health logs: %w", err)
	}
	return n, nil
}

func (d *LogDAO) changed(op string) {
	observability.RecordWrite(LogsTable, op)
	d.store.tracker.Notify(LogsTable)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *LogDAO) scan(row rowScanner) (health.Measurement, error) {
	var (
		m       health.Measurement
		kind    string
		payload []byte
	)
	if err := row.Scan(&m.ID, &kind, &m.RecordedAt, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("scan health log: %w", err)
	}
	m.Kind = health.Kind(kind)

	plain, err := d.sealer.open(payload, associatedData(m.Kind, m.RecordedAt))
	if err != nil {
		return m, fmt.Errorf("%w: health log %d: %w", ErrCorruptRow, m.ID, err)
	}
	var p logPayload
	if err := json.Unmarshal(plain, &p); err != nil {
		return m, fmt.Errorf("%w: health log %d: %w", ErrCorruptRow, m.ID, err)
	}
	m.Value = p.Value
	m.DisplayText = p.DisplayText
	m.Annotation = p.Annotation

	if err := m.ValidateStored(); err != nil {
		return m, fmt.Errorf("%w: health log %d: %w", ErrCorruptRow, m.ID, err)
	}
	return m, nil
}

func associatedData(kind health.Kind, recordedAt int64) []byte {
	return []byte(string(kind) + "|" + strconv.FormatInt(recordedAt, 10))
}
