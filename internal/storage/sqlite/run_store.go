package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/bodymeasure/internal/measure"
	"github.com/banshee-data/bodymeasure/internal/pipeline"
	"github.com/banshee-data/bodymeasure/internal/version"
)

// Run status values.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Measurement is one stored measurement value.
type Measurement struct {
	Name  measure.Name `json:"name"`
	Value float64      `json:"value"`
	Unit  string       `json:"unit"`
}

// Run is a persisted pipeline invocation, successful or not.
type Run struct {
	RunID              string   `json:"run_id"`
	CreatedAt          int64    `json:"created_at"`
	Source             string   `json:"source"`
	Status             string   `json:"status"`
	FailedStage        string   `json:"failed_stage,omitempty"`
	FailureKind        string   `json:"failure_kind,omitempty"`
	Error              string   `json:"error,omitempty"`
	ReferenceHeightCm  *float64 `json:"reference_height_cm,omitempty"`
	CalibrationFactor  float64  `json:"calibration_factor"`
	CalibrationApplied bool     `json:"calibration_applied"`
	Unit               string   `json:"unit,omitempty"`
	MeshQuality        string   `json:"mesh_quality,omitempty"`
	Confidence         string   `json:"confidence,omitempty"`
	Vertices           int      `json:"vertices"`
	Faces              int      `json:"faces"`
	Watertight         bool     `json:"watertight"`
	FramesSampled      int      `json:"frames_sampled"`
	FramesAggregated   int      `json:"frames_aggregated"`
	AppVersion         string   `json:"app_version"`
	GitSHA             string   `json:"git_sha"`
	// ResultJSON is the full result bundle. It is empty for failed runs.
	ResultJSON json.RawMessage `json:"result_json,omitempty"`
	// Measurements is populated by Get, not by List.
	Measurements []Measurement `json:"measurements,omitempty"`
}

// CreatedTime returns CreatedAt as a time.
func (r *Run) CreatedTime() time.Time {
	return time.Unix(0, r.CreatedAt)
}

// NewRunFromResult builds the record for a successful run.
func NewRunFromResult(source string, res *pipeline.Result) (*Run, error) {
	if res == nil || res.Measurements == nil {
		return nil, fmt.Errorf("result has no measurements")
	}
	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	info := version.Current()
	run := &Run{
		Source:             source,
		Status:             StatusDone,
		ReferenceHeightCm:  res.Calibration.ReferenceHeightCm,
		CalibrationFactor:  res.Calibration.Value,
		CalibrationApplied: res.Calibration.Applied,
		Unit:               string(res.Calibration.Unit()),
		MeshQuality:        string(res.Quality.MeshQuality),
		Confidence:         string(res.Quality.Confidence),
		Vertices:           res.Mesh.Vertices,
		Faces:              res.Mesh.Faces,
		Watertight:         res.Mesh.Watertight,
		FramesSampled:      res.Processing.FramesSampled,
		FramesAggregated:   res.Processing.FramesAggregated,
		AppVersion:         info.Version,
		GitSHA:             info.GitSHA,
		ResultJSON:         body,
	}
	for _, n := range res.Measurements.Names() {
		run.Measurements = append(run.Measurements, Measurement{
			Name:  n,
			Value: res.Measurements.Value(n),
			Unit:  res.Measurements.UnitFor(n),
		})
	}
	return run, nil
}

// NewFailedRun builds the record for a run that stopped with err. The
// stage and kind are taken from a *pipeline.StageError when err has one.
func NewFailedRun(source string, referenceHeightCm *float64, err error) *Run {
	info := version.Current()
	run := &Run{
		Source:            source,
		Status:            StatusFailed,
		ReferenceHeightCm: referenceHeightCm,
		AppVersion:        info.Version,
		GitSHA:            info.GitSHA,
	}
	if err != nil {
		run.Error = err.Error()
	}
	var se *pipeline.StageError
	if errors.As(err, &se) {
		run.FailedStage = se.Stage.String()
		run.FailureKind = string(se.Kind)
	}
	return run
}

// RunStore persists runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Insert persists run and its measurements in one transaction. If RunID
// is empty, a UUID is generated.
func (s *RunStore) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var result interface{}
	if len(run.ResultJSON) > 0 {
		result = string(run.ResultJSON)
	}

	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO runs (
				run_id, created_at, source, status, failed_stage, failure_kind, error,
				reference_height_cm, calibration_factor, calibration_applied, unit,
				mesh_quality, confidence, vertices, faces, watertight,
				frames_sampled, frames_aggregated, app_version, git_sha, result_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt, run.Source, run.Status,
			nullString(run.FailedStage), nullString(run.FailureKind), nullString(run.Error),
			run.ReferenceHeightCm, run.CalibrationFactor, run.CalibrationApplied, nullString(run.Unit),
			nullString(run.MeshQuality), nullString(run.Confidence), run.Vertices, run.Faces, run.Watertight,
			run.FramesSampled, run.FramesAggregated, run.AppVersion, run.GitSHA, result,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for _, m := range run.Measurements {
			if _, err := tx.Exec(`INSERT INTO run_measurements (run_id, name, value, unit) VALUES (?, ?, ?, ?)`,
				run.RunID, string(m.Name), m.Value, m.Unit); err != nil {
				return fmt.Errorf("insert measurement %s: %w", m.Name, err)
			}
		}
		return tx.Commit()
	})
}

const runColumns = `
	run_id, created_at, source, status, failed_stage, failure_kind, error,
	reference_height_cm, calibration_factor, calibration_applied, unit,
	mesh_quality, confidence, vertices, faces, watertight,
	frames_sampled, frames_aggregated, app_version, git_sha`

// Get returns a run with its measurements and result bundle.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT`+runColumns+`, result_json FROM runs WHERE run_id = ?`, runID)

	var result sql.NullString
	run, err := scanRun(row, &result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	if result.Valid {
		run.ResultJSON = json.RawMessage(result.String)
	}

	rows, err := s.db.Query(`SELECT name, value, unit FROM run_measurements WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Measurement
		var name string
		if err := rows.Scan(&name, &m.Value, &m.Unit); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Name = measure.Name(name)
		run.Measurements = append(run.Measurements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(run.Measurements, func(i, j int) bool {
		return run.Measurements[i].Name < run.Measurements[j].Name
	})
	return run, nil
}

// List returns the most recent runs, newest first, without measurements
// or result bundles. A non-positive limit returns every run.
func (s *RunStore) List(limit int) ([]*Run, error) {
	q := `SELECT` + runColumns + ` FROM runs ORDER BY created_at DESC, run_id`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows, nil)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run and its measurements.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRun reads runColumns, plus result_json when result is non-nil.
func scanRun(sc scanner, result *sql.NullString) (*Run, error) {
	var (
		r                                               Run
		stage, kind, msg, unit, meshQuality, confidence sql.NullString
		ref, factor                                     sql.NullFloat64
	)
	dest := []interface{}{
		&r.RunID, &r.CreatedAt, &r.Source, &r.Status, &stage, &kind, &msg,
		&ref, &factor, &r.CalibrationApplied, &unit,
		&meshQuality, &confidence, &r.Vertices, &r.Faces, &r.Watertight,
		&r.FramesSampled, &r.FramesAggregated, &r.AppVersion, &r.GitSHA,
	}
	if result != nil {
		dest = append(dest, result)
	}
	if err := sc.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	r.FailedStage = stage.String
	r.FailureKind = kind.String
	r.Error = msg.String
	r.Unit = unit.String
	r.MeshQuality = meshQuality.String
	r.Confidence = confidence.String
	if ref.Valid {
		v := ref.Float64
		r.ReferenceHeightCm = &v
	}
	r.CalibrationFactor = factor.Float64
	return &r, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
