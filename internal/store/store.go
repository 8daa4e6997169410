// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package store keeps a history of calibration runs and the displacement
// results computed with them in a local sqlite file.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/fit"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
)

// ErrNoRuns is returned when the history is empty.
var ErrNoRuns = errors.New("no calibration runs recorded")

type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS calibration_runs (
			run_id            TEXT PRIMARY KEY,
			created_unix_ns   BIGINT,
			source            TEXT,
			weighted          BOOLEAN,
			positions_csv     TEXT,
			params_csv        TEXT
		);
		CREATE TABLE IF NOT EXISTS fit_params (
			run_id            TEXT,
			axis              TEXT,
			tier              TEXT,
			param_index       INTEGER,
			value             DOUBLE,
			uncertainty_pct   DOUBLE,
			cost              DOUBLE,
			iterations        INTEGER,
			FOREIGN KEY(run_id) REFERENCES calibration_runs(run_id)
		);
		CREATE TABLE IF NOT EXISTS displacement_runs (
			run_id              TEXT PRIMARY KEY,
			calibration_run_id  TEXT,
			created_unix_ns     BIGINT,
			recording           TEXT,
			tier                TEXT,
			final_x             DOUBLE,
			final_y             DOUBLE,
			final_z             DOUBLE,
			FOREIGN KEY(calibration_run_id) REFERENCES calibration_runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db}, nil
}

// Run is one calibration: its inputs and the fitted parameter sets.
type Run struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Source    string
	Weighted  bool
	Positions calibration.Positions
	Params    calibration.ParameterSet
}

// SaveRun stores run and its per-parameter fit summary. A zero ID or
// timestamp is filled in; the stored ID is returned.
func (db *DB) SaveRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	var positions, params bytes.Buffer
	if err := dataio.WriteSixPosition(&positions, run.Positions); err != nil {
		return uuid.Nil, fmt.Errorf("encode positions: %w", err)
	}
	if err := dataio.WriteParams(&params, "run "+run.ID.String(), run.Params); err != nil {
		return uuid.Nil, fmt.Errorf("encode params: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO calibration_runs (run_id, created_unix_ns, source, weighted, positions_csv, params_csv) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.CreatedAt.UnixNano(), run.Source, run.Weighted, positions.String(), params.String(),
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fit_params (run_id, axis, tier, param_index, value, uncertainty_pct, cost, iterations) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return uuid.Nil, err
	}
	defer stmt.Close()

	for _, a := range imu.Axes {
		af := run.Params.Fits[a]
		for _, tr := range []struct {
			tier model.Tier
			res  fit.Result
		}{
			{model.TierBias, af.Bias.Result},
			{model.TierScale, af.Scale.Result},
			{model.TierMisalignment, af.Misalignment.Result},
		} {
			unc := tr.res.Uncertainty()
			for i, v := range tr.res.Params {
				if _, err := stmt.ExecContext(ctx, run.ID.String(), a.String(), tr.tier.String(), i, v, nullable(unc[i]), tr.res.Cost, tr.res.Iterations); err != nil {
					return uuid.Nil, fmt.Errorf("insert fit params: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return run.ID, nil
}

// LatestRun returns the most recently created run.
func (db *DB) LatestRun(ctx context.Context) (Run, error) {
	return db.scanRun(db.QueryRowContext(ctx,
		`SELECT run_id, created_unix_ns, source, weighted, positions_csv, params_csv
		   FROM calibration_runs ORDER BY created_unix_ns DESC LIMIT 1`))
}

// GetRun returns one run by ID.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	return db.scanRun(db.QueryRowContext(ctx,
		`SELECT run_id, created_unix_ns, source, weighted, positions_csv, params_csv
		   FROM calibration_runs WHERE run_id = ?`, id.String()))
}

func (db *DB) scanRun(row *sql.Row) (Run, error) {
	var (
		id, source, positions, params string
		created                       int64
		weighted                      bool
	)
	if err := row.Scan(&id, &created, &source, &weighted, &positions, &params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrNoRuns
		}
		return Run{}, err
	}

	run := Run{CreatedAt: time.Unix(0, created), Source: source, Weighted: weighted}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("run id %q: %w", id, err)
	}
	if run.Positions, err = dataio.ReadSixPosition(strings.NewReader(positions)); err != nil {
		return Run{}, fmt.Errorf("run %s positions: %w", id, err)
	}
	if run.Params, err = dataio.ReadParams(strings.NewReader(params)); err != nil {
		return Run{}, fmt.Errorf("run %s params: %w", id, err)
	}
	return run, nil
}

// FitParam is one stored parameter with its percent uncertainty. Uncertainty
// is NaN when it was not finite.
type FitParam struct {
	Axis        string
	Tier        string
	Index       int
	Value       float64
	Uncertainty float64
}

// FitParams returns the stored fit summary of a run, ordered by axis, tier
// and parameter.
func (db *DB) FitParams(ctx context.Context, id uuid.UUID) ([]FitParam, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT axis, tier, param_index, value, uncertainty_pct FROM fit_params
		  WHERE run_id = ? ORDER BY axis, tier, param_index`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FitParam
	for rows.Next() {
		var (
			p   FitParam
			unc sql.NullFloat64
		)
		if err := rows.Scan(&p.Axis, &p.Tier, &p.Index, &p.Value, &unc); err != nil {
			return nil, err
		}
		p.Uncertainty = math.NaN()
		if unc.Valid {
			p.Uncertainty = unc.Float64
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Displacement is the final displacement of one recording corrected with a
// given calibration tier.
type Displacement struct {
	ID            uuid.UUID
	CalibrationID uuid.UUID
	CreatedAt     time.Time
	Recording     string
	Tier          string
	Final         imu.Vec3
}

// SaveDisplacement records one displacement result.
func (db *DB) SaveDisplacement(ctx context.Context, d Displacement) (uuid.UUID, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO displacement_runs (run_id, calibration_run_id, created_unix_ns, recording, tier, final_x, final_y, final_z)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.CalibrationID.String(), d.CreatedAt.UnixNano(), d.Recording, d.Tier, d.Final.X, d.Final.Y, d.Final.Z)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert displacement: %w", err)
	}
	return d.ID, nil
}

// Displacements lists results computed with a calibration run, oldest first.
func (db *DB) Displacements(ctx context.Context, calibrationID uuid.UUID) ([]Displacement, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, created_unix_ns, recording, tier, final_x, final_y, final_z
		   FROM displacement_runs WHERE calibration_run_id = ? ORDER BY created_unix_ns`, calibrationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Displacement
	for rows.Next() {
		var (
			id      string
			created int64
			d       = Displacement{CalibrationID: calibrationID}
		)
		if err := rows.Scan(&id, &created, &d.Recording, &d.Tier, &d.Final.X, &d.Final.Y, &d.Final.Z); err != nil {
			return nil, err
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(0, created)
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
