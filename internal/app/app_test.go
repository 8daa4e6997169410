// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/model"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
	"github.com/relabs-tech/accel_calibration/internal/store"
)

var (
	testBias     = imu.Vec3{X: 0.02, Y: -0.015, Z: 0.03}
	testCoupling = []float64{
		1.01, 0.004, -0.006,
		-0.003, 0.985, 0.002,
		0.005, -0.001, 1.02,
	}
)

func forward(truth imu.Vec3) imu.Vec3 {
	return model.MisalignmentForwardBatch(testBias, mat.NewDense(3, 3, testCoupling), []imu.Vec3{truth})[0]
}

// testPositions follows the test error model exactly.
func testPositions() calibration.Positions {
	ps := make(calibration.Positions, 0, 6)
	for _, pose := range calibration.CollectionOrder {
		ps = append(ps, calibration.StaticPosition{
			Truth:  pose.Truth(),
			Mean:   forward(pose.Truth()),
			StdDev: imu.Vec3{X: 0.002, Y: 0.002, Z: 0.002},
		})
	}
	return ps
}

// testConfig points every file at a fresh temp dir and writes a six-position
// table and a level recording generated from the test error model.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.SixPositionCSV = filepath.Join(dir, "six.csv")
	cfg.RecordingCSV = filepath.Join(dir, "rec.csv")
	cfg.ParamsCSV = filepath.Join(dir, "params.csv")
	cfg.PlotDir = filepath.Join(dir, "plots")
	cfg.DBPath = filepath.Join(dir, "runs.db")
	cfg.MQTTBroker = ""
	cfg.SampleIntervalMS = 1

	require.NoError(t, dataio.SaveSixPosition(cfg.SixPositionCSV, testPositions()))

	rec := imu.Recording{Title: TestRecordingTitle}
	level := forward(imu.Vec3{Z: 1})
	for i := range 500 {
		rec.Samples = append(rec.Samples, imu.Sample{T: float64(i) * 0.01, Accel: level})
	}
	require.NoError(t, dataio.SaveRecording(cfg.RecordingCSV, rec))
	return cfg
}

func TestToPhysical(t *testing.T) {
	t.Parallel()

	in := []imu.Vec3{{X: 0.1, Y: -0.2, Z: 1}}

	t.Run("removes gravity from the vertical axis", func(t *testing.T) {
		t.Parallel()
		out := ToPhysical(in, Physical{Gravity: 9.797, Vertical: imu.Z, RemoveGravity: true})
		assert.InDelta(t, 0.9797, out[0].X, 1e-12)
		assert.InDelta(t, -1.9594, out[0].Y, 1e-12)
		assert.InDelta(t, 0, out[0].Z, 1e-12)
	})

	t.Run("keeps gravity", func(t *testing.T) {
		t.Parallel()
		out := ToPhysical(in, Physical{Gravity: 10, Vertical: imu.Z})
		assert.Equal(t, imu.Vec3{X: 1, Y: -2, Z: 10}, out[0])
	})

	t.Run("other vertical axis", func(t *testing.T) {
		t.Parallel()
		out := ToPhysical([]imu.Vec3{{X: 1}}, Physical{Gravity: 10, Vertical: imu.X, RemoveGravity: true})
		assert.Equal(t, imu.Vec3{}, out[0])
	})
}

func TestPublisherDisabled(t *testing.T) {
	t.Parallel()

	pub, err := NewPublisher(config.Default(), "test")
	require.NoError(t, err)
	assert.False(t, pub.Enabled())
	assert.NoError(t, pub.PublishJSON("accel/x", map[string]int{"a": 1}))
	pub.Close()

	var nilPub *Publisher
	assert.NoError(t, nilPub.PublishJSON("accel/x", 1))
}

func TestRunCalibrateAndDisplacement(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	ctx := context.Background()

	cal, err := RunCalibrate(ctx, cfg)
	require.NoError(t, err)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", cal.RunID.String())

	rows := cal.Set.Misalignment.Rows()
	for i, want := range testCoupling {
		assert.InDelta(t, want, rows[i], 1e-6, "coupling[%d]", i)
	}
	assert.FileExists(t, cfg.ParamsCSV)
	assert.FileExists(t, filepath.Join(cfg.PlotDir, "six_position_fit.png"))

	res, err := RunDisplacement(ctx, cfg, DisplacementOptions{})
	require.NoError(t, err)

	require.Len(t, res.Tiers, 4)
	assert.Equal(t, "raw", res.Tiers[0].Name)
	assert.Equal(t, "misalignment", res.Tiers[3].Name)

	// Uncorrected bias integrates into a clearly visible displacement.
	assert.Greater(t, math.Abs(res.Tiers[0].Final.Z), 0.1)
	for _, a := range imu.Axes {
		assert.InDelta(t, 0, res.Tiers[3].Mean.Get(a), 1e-5)
		assert.InDelta(t, 0, res.Tiers[3].Final.Get(a), 1e-4)
		assert.InDelta(t, 0, res.Final.Get(a), 1e-6)
	}
	assert.Len(t, res.Times, 500)

	for _, name := range []string{
		"acceleration_corrected.png", "drift_fit.png", "displacement_corrected.png",
		"noise_hist_x.png", "noise_hist_y.png", "noise_hist_z.png",
	} {
		assert.FileExists(t, filepath.Join(cfg.PlotDir, name))
	}

	db, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()
	ds, err := db.Displacements(ctx, cal.RunID)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, res.RunID, ds[0].ID)
	assert.Equal(t, "misalignment", ds[0].Tier)
}

func TestRunDisplacementApply(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DBPath = ""
	cfg.PlotDir = ""
	ctx := context.Background()
	_, err := RunCalibrate(ctx, cfg)
	require.NoError(t, err)

	// A bias-only correction leaves a constant residual acceleration, which
	// integrates to an exact quadratic.
	res, err := RunDisplacement(ctx, cfg, DisplacementOptions{
		Apply: cfg.RecordingCSV,
		Limit: 2,
		Tier:  model.TierBias,
	})
	require.NoError(t, err)
	assert.Len(t, res.Times, 200)
	for _, a := range imu.Axes {
		assert.InDelta(t, 0, res.Final.Get(a), 1e-6)
	}
	assert.Greater(t, math.Abs(res.Raw[imu.Z][len(res.Raw[imu.Z])-1]), 1e-3)
}

func TestRunDisplacementMissingParams(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	_, err := RunDisplacement(context.Background(), cfg, DisplacementOptions{})
	require.Error(t, err)
}

func TestRunCollect(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Source = config.SourceMock
	cfg.PoseDurationSec = 0.05
	cfg.RecordDurationSec = 0.05

	var prompts []string
	err := RunCollect(context.Background(), cfg, func(msg string) error {
		prompts = append(prompts, msg)
		return nil
	}, CollectOptions{})
	require.NoError(t, err)
	require.Len(t, prompts, 7)
	assert.Contains(t, prompts[0], "+z")
	assert.Contains(t, prompts[5], "-x")

	ps, err := dataio.LoadSixPosition(cfg.SixPositionCSV)
	require.NoError(t, err)
	for i, p := range ps {
		assert.Equal(t, calibration.CollectionOrder[i].Truth(), p.Truth)
	}

	rec, err := dataio.LoadRecording(cfg.RecordingCSV)
	require.NoError(t, err)
	assert.Equal(t, TestRecordingTitle, rec.Title)
	assert.Greater(t, rec.Len(), 1)
	require.NoError(t, rec.Validate())
}

func TestLiveServer(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.SampleIntervalMS = 1
	mp, err := calibration.NewMisalignmentParams(testBias, testCoupling)
	require.NoError(t, err)
	set := calibration.ParameterSet{Misalignment: mp}
	src := sensors.NewMock(sensors.MockOptions{Bias: testBias, Coupling: testCoupling, Seed: 7})

	ls := NewLiveServer(cfg, set, src, nil, nil)
	srv := httptest.NewServer(ls.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ls.Run(ctx)

	t.Run("calibration api", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/calibration")
		require.NoError(t, err)
		defer resp.Body.Close()
		var v ParamsView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
		assert.Equal(t, testBias, v.MisalignmentBias)
		assert.Equal(t, testCoupling[3], v.Coupling[1][0])
	})

	t.Run("runs api without history", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/runs/latest")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.NoFileExists(t, cfg.DBPath)
	})

	t.Run("websocket", func(t *testing.T) {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		require.NoError(t, conn.WriteJSON(WSMessage{Action: "params"}))

		var gotSample, gotParams bool
		for !gotSample || !gotParams {
			var msg WSResponse
			require.NoError(t, conn.ReadJSON(&msg))
			switch msg.Type {
			case "sample":
				require.NotNil(t, msg.Sample)
				assert.InDelta(t, 0, msg.Sample.Corrected.X, 1e-9)
				assert.InDelta(t, 0, msg.Sample.Corrected.Y, 1e-9)
				assert.InDelta(t, 1, msg.Sample.Corrected.Z, 1e-9)
				assert.InDelta(t, 0, msg.Sample.Tilt.Roll, 1e-6)
				gotSample = true
			case "params":
				require.NotNil(t, msg.Params)
				assert.Equal(t, testBias, msg.Params.MisalignmentBias)
				gotParams = true
			}
		}
	})
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	mp, err := calibration.NewMisalignmentParams(testBias, testCoupling)
	require.NoError(t, err)
	payload, err := json.Marshal(NewCalibrationReport("abc", true, calibration.ParameterSet{Misalignment: mp}))
	require.NoError(t, err)

	line, err := formatMessage(cfg, cfg.TopicCalibration, payload)
	require.NoError(t, err)
	assert.Contains(t, line, "[CAL ] run=abc weighted=true")
	assert.Contains(t, line, " 1.01000")

	payload, err = json.Marshal(DisplacementReport{Recording: "rec.csv", Tier: "bias", Final: imu.Vec3{Z: 0.5}})
	require.NoError(t, err)
	line, err = formatMessage(cfg, cfg.TopicDisplacement, payload)
	require.NoError(t, err)
	assert.Equal(t, "[DISP] rec.csv tier=bias final=(0.0000, 0.0000, 0.5000) m", line)

	_, err = formatMessage(cfg, "other/topic", payload)
	assert.Error(t, err)
	_, err = formatMessage(cfg, cfg.TopicCorrected, []byte("{"))
	assert.Error(t, err)
}

func TestLiveServerRunHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := config.Default()
	ls := NewLiveServer(cfg, calibration.ParameterSet{}, sensors.NewMock(sensors.DefaultMock), nil, db)
	srv := httptest.NewServer(ls.Handler())
	defer srv.Close()

	get := func(t *testing.T) *http.Response {
		t.Helper()
		resp, err := http.Get(srv.URL + "/api/runs/latest")
		require.NoError(t, err)
		return resp
	}

	resp := get(t)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ps := testPositions()
	set, err := calibration.Calibrate(ps, calibration.DefaultOptions())
	require.NoError(t, err)
	id, err := db.SaveRun(ctx, store.Run{Source: "six.csv", Weighted: true, Positions: ps, Params: set})
	require.NoError(t, err)

	resp = get(t)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep CalibrationReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, id.String(), rep.RunID)
	assert.True(t, rep.Weighted)
	assert.InDelta(t, testCoupling[0], rep.Params.Coupling[0][0], 1e-6)
}

func TestOpenHistory(t *testing.T) {
	t.Parallel()

	db, err := openHistory("")
	require.NoError(t, err)
	assert.Nil(t, db)

	path := filepath.Join(t.TempDir(), "missing.db")
	db, err = openHistory(path)
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.NoFileExists(t, path)

	created, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, created.Close())
	db, err = openHistory(path)
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.NoError(t, db.Close())
}

func TestNoiseStd(t *testing.T) {
	t.Parallel()

	rec := imu.Recording{}
	for i := range 100 {
		d := 0.001
		if i%2 == 1 {
			d = -0.001
		}
		rec.Samples = append(rec.Samples, imu.Sample{T: float64(i) * 0.01, Accel: imu.Vec3{X: d, Y: 2 * d, Z: 1}})
	}
	std := NoiseStd(rec, 10)
	assert.InDelta(t, 0.01, std.X, 1e-12)
	assert.InDelta(t, 0.02, std.Y, 1e-12)
	assert.InDelta(t, 0, std.Z, 1e-12)
}
