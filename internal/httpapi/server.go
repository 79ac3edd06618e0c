package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/keyboxlab/keyboxd/internal/keybox/journal"
	"github.com/keyboxlab/keyboxd/internal/keybox/service"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	AccessService    *service.AccessService
	HeartbeatService *service.HeartbeatService
	SyncService      *service.SyncService
	OfflineService   *service.OfflineLogService
	ManualService    *service.ManualService

	// Journal feeds the health endpoint; nil reports journal_ok=true.
	Journal *journal.Journal

	// RateLimitRPS of 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	httpServer *http.Server
	logger     *log.Logger
	mux        *http.ServeMux

	access    *service.AccessService
	heartbeat *service.HeartbeatService
	sync      *service.SyncService
	offline   *service.OfflineLogService
	manual    *service.ManualService
	journal   *journal.Journal
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:    d.Logger,
		mux:       mux,
		access:    d.AccessService,
		heartbeat: d.HeartbeatService,
		sync:      d.SyncService,
		offline:   d.OfflineService,
		manual:    d.ManualService,
		journal:   d.Journal,
	}

	mux.HandleFunc("POST /v1/scan", s.handleScan)
	mux.HandleFunc("POST /v1/heartbeat", s.handleHeartbeat)
	mux.HandleFunc("GET /v1/schedules", s.handleSchedules)
	mux.HandleFunc("GET /v1/schedules/updates", s.handleScheduleUpdates)
	mux.HandleFunc("POST /v1/offline_log", s.handleOfflineLog)
	mux.HandleFunc("GET /v1/manual/poll", s.handleManualPoll)
	mux.HandleFunc("POST /v1/manual/trigger", s.handleManualTrigger)
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)

	var limiter *ipLimiter
	if d.RateLimitRPS > 0 {
		burst := d.RateLimitBurst
		if burst <= 0 {
			burst = int(d.RateLimitRPS)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = newIPLimiter(d.RateLimitRPS, burst)
	}

	handler := loggingMiddleware(d.Logger, rateLimitMiddleware(limiter, mux))

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req types.ScanRequest
	binary := isBinary(r)

	if binary {
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_body", "cannot read request body")
			return
		}
		if req, err = unmarshalScanRequest(body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
	} else {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	resp, err := s.access.Decide(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDeviceID):
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
		case errors.Is(err, service.ErrInvalidTag):
			writeError(w, http.StatusBadRequest, "invalid_tag", err.Error())
		default:
			s.logger.Printf("scan error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	if binary {
		writeBinary(w, http.StatusOK, marshalScanResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req types.HeartbeatRequest
	binary := isBinary(r)

	if binary {
		body, err := readBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_body", "cannot read request body")
			return
		}
		if req, err = unmarshalHeartbeatRequest(body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
	} else {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
			return
		}
	}

	resp, err := s.heartbeat.Record(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDeviceID) {
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		}
		s.logger.Printf("heartbeat error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	if binary {
		writeBinary(w, http.StatusOK, marshalHeartbeatResponse(resp))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		writeError(w, http.StatusBadRequest, "invalid_room", "room query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Bundle(room))
}

func (s *Server) handleScheduleUpdates(w http.ResponseWriter, r *http.Request) {
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_since", "since must be the device's bundle version")
		return
	}
	writeJSON(w, http.StatusOK, s.sync.CheckUpdates(since))
}

func (s *Server) handleOfflineLog(w http.ResponseWriter, r *http.Request) {
	var req types.OfflineLogRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.offline.Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDeviceID) {
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		}
		s.logger.Printf("offline_log error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManualPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.manual.Poll(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidDeviceID) {
			writeError(w, http.StatusBadRequest, "invalid_device_id", err.Error())
			return
		}
		s.logger.Printf("manual poll error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManualTrigger(w http.ResponseWriter, r *http.Request) {
	var req types.ManualTriggerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.manual.Trigger(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRoom):
			writeError(w, http.StatusBadRequest, "invalid_room", err.Error())
		case errors.Is(err, service.ErrInvalidAction):
			writeError(w, http.StatusBadRequest, "invalid_action", err.Error())
		default:
			s.logger.Printf("manual trigger error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	journalOK := true
	if s.journal != nil {
		journalOK = s.journal.Healthy()
	}

	status := http.StatusOK
	if !journalOK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, types.HealthResponse{
		OK:         journalOK,
		JournalOK:  journalOK,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
