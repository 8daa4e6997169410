// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/dataio"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
	"github.com/relabs-tech/accel_calibration/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network tool
	},
}

// clientQueue is the number of messages buffered per websocket client before
// samples are dropped for it.
const clientQueue = 64

// LiveSample is one reading corrected with the tier-3 model.
type LiveSample struct {
	T         float64      `json:"t"`
	Raw       imu.Vec3     `json:"raw"`       // g
	Corrected imu.Vec3     `json:"corrected"` // g
	Tilt      sensors.Tilt `json:"tilt"`
}

// WSMessage is sent by browser clients.
type WSMessage struct {
	Action string `json:"action"` // params
}

// WSResponse is sent to browser clients.
type WSResponse struct {
	Type    string      `json:"type"` // sample, params, error
	Sample  *LiveSample `json:"sample,omitempty"`
	Params  *ParamsView `json:"params,omitempty"`
	Message string      `json:"message,omitempty"`
}

// LiveServer streams corrected samples to websocket clients and MQTT.
type LiveServer struct {
	cfg *config.Config
	set calibration.ParameterSet
	src imu.Source
	pub *Publisher
	db  *store.DB

	mu      sync.Mutex
	clients map[chan WSResponse]struct{}
}

// NewLiveServer wires a server. pub may be nil; a nil db disables
// /api/runs/latest. The caller owns db.
func NewLiveServer(cfg *config.Config, set calibration.ParameterSet, src imu.Source, pub *Publisher, db *store.DB) *LiveServer {
	return &LiveServer{
		cfg:     cfg,
		set:     set,
		src:     src,
		pub:     pub,
		db:      db,
		clients: make(map[chan WSResponse]struct{}),
	}
}

// Handler returns the HTTP routes: /ws/live, /api/calibration,
// /api/runs/latest and static files from ./web.
func (s *LiveServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/live", s.handleWS)
	mux.HandleFunc("/api/calibration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, NewParamsView(s.set))
	})
	mux.HandleFunc("/api/runs/latest", s.handleLatestRun)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("json encode error: %v", err)
	}
}

func (s *LiveServer) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	run, err := s.db.LatestRun(r.Context())
	if errors.Is(err, store.ErrNoRuns) {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, NewCalibrationReport(run.ID.String(), run.Weighted, run.Params))
}

func (s *LiveServer) subscribe() chan WSResponse {
	ch := make(chan WSResponse, clientQueue)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *LiveServer) unsubscribe(ch chan WSResponse) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *LiveServer) broadcast(msg WSResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (s *LiveServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("live: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Debugf("live: websocket read: %v", err)
				return
			}
			switch msg.Action {
			case "params":
				v := NewParamsView(s.set)
				s.enqueue(ch, WSResponse{Type: "params", Params: &v})
			default:
				s.enqueue(ch, WSResponse{Type: "error", Message: fmt.Sprintf("unknown action %q", msg.Action)})
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			if err := conn.WriteJSON(msg); err != nil {
				log.Debugf("live: websocket write: %v", err)
				return
			}
		}
	}
}

func (s *LiveServer) enqueue(ch chan WSResponse, msg WSResponse) {
	select {
	case ch <- msg:
	default:
	}
}

// Correct applies the tier-3 model to one reading.
func (s *LiveServer) Correct(t float64, raw imu.Vec3) (LiveSample, error) {
	out, err := calibration.Correct(s.set.Misalignment, []imu.Vec3{raw})
	if err != nil {
		return LiveSample{}, err
	}
	return LiveSample{T: t, Raw: raw, Corrected: out[0], Tilt: sensors.TiltOf(out[0])}, nil
}

// Run polls the source until ctx is done, fanning corrected samples out to
// every websocket client and TOPIC_CORRECTED.
func (s *LiveServer) Run(ctx context.Context) error {
	for {
		err := sensors.Stream(ctx, s.src, time.Hour, s.cfg.SampleInterval(), func(smp imu.Sample) error {
			ls, err := s.Correct(smp.T, smp.Accel)
			if err != nil {
				return err
			}
			s.broadcast(WSResponse{Type: "sample", Sample: &ls})
			if err := s.pub.PublishJSON(s.cfg.TopicCorrected, ls); err != nil {
				log.Warnf("live: %v", err)
			}
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RunLive loads PARAMS_CSV, opens the configured source and serves the live
// view on WEB_SERVER_PORT until ctx is cancelled.
func RunLive(ctx context.Context, cfg *config.Config) error {
	set, err := dataio.LoadParams(cfg.ParamsCSV)
	if err != nil {
		return err
	}
	src, closeSrc, err := OpenSource(cfg)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer closeSrc()

	pub, err := NewPublisher(cfg, "live")
	if err != nil {
		log.Warnf("corrected samples will not be published: %v", err)
		pub = &Publisher{}
	}
	defer pub.Close()

	db, err := openHistory(cfg.DBPath)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ls := NewLiveServer(cfg, set, src, pub, db)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.WebServerPort), Handler: ls.Handler()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errc := make(chan error, 2)
	go func() { errc <- ls.Run(ctx) }()
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// openHistory opens an existing run history. A missing file is not created:
// the live view only reads history written by the calibrate tool.
func openHistory(path string) (*store.DB, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warnf("run history %s not found, /api/runs/latest disabled", path)
		return nil, nil
	}
	return store.Open(path)
}
