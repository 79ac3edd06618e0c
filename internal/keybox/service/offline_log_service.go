package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keyboxlab/keyboxd/internal/keybox/credential"
	"github.com/keyboxlab/keyboxd/internal/keybox/journal"
	"github.com/keyboxlab/keyboxd/internal/keybox/store"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

// OfflineLogService ingests decisions a device made locally while the
// backend was unreachable, folding them into the same audit trail as
// online scans with origin "offline".
type OfflineLogService struct {
	registry *DeviceRegistry
	attempts store.AttemptStore
	journal  *journal.Journal
	logger   *log.Logger
}

func NewOfflineLogService(reg *DeviceRegistry, as store.AttemptStore, j *journal.Journal, logger *log.Logger) *OfflineLogService {
	if logger == nil {
		logger = log.Default()
	}
	return &OfflineLogService{registry: reg, attempts: as, journal: j, logger: logger}
}

// offlineIDNamespace seeds record IDs that are a pure function of the
// entry. A device that never saw the response re-uploads the same batch,
// and each entry must land on the ID it got the first time so the store
// insert stays idempotent.
var offlineIDNamespace = uuid.MustParse("9c1f6a1e-5b0d-4c57-8f2a-2d9e7b3c4a10")

// Ingest accepts a batch upload. Entries with an unreadable timestamp are
// skipped rather than failing the batch; the device deletes its local log
// once the upload succeeds, so partial acceptance is reported back. IDs
// are derived from (device, tag, timestamp), making re-uploads safe when
// an earlier attempt failed mid-batch.
func (s *OfflineLogService) Ingest(ctx context.Context, req types.OfflineLogRequest) (types.OfflineLogResponse, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return types.OfflineLogResponse{}, ErrInvalidDeviceID
	}

	device, err := s.registry.Lookup(ctx, deviceID)
	if err != nil {
		return types.OfflineLogResponse{}, err
	}
	if err := s.registry.NoteSeen(ctx, deviceID); err != nil {
		s.logger.Printf("offline: note seen %s: %v", deviceID, err)
	}

	accepted := 0
	for _, a := range req.Attempts {
		ts := parseOptionalTimestamp(a.Timestamp)
		if ts == nil {
			s.logger.Printf("offline: %s: dropping entry with bad timestamp %q", deviceID, a.Timestamp)
			continue
		}

		room := strings.TrimSpace(a.Room)
		if room == "" {
			room = device.Room
		}

		tag := canonicalTag(a.Tag)
		rec := store.AttemptRecord{
			ID:          uuid.NewSHA1(offlineIDNamespace, []byte(deviceID+"\n"+tag+"\n"+a.Timestamp)).String(),
			DeviceID:    deviceID,
			Room:        room,
			Tag:         tag,
			Granted:     a.Granted,
			Reason:      a.Reason,
			Action:      a.Action,
			Origin:      "offline",
			RequestedAt: ts,
			DecidedAt:   *ts,
		}

		if err := s.attempts.RecordAttempt(ctx, rec); err != nil {
			return types.OfflineLogResponse{}, err
		}
		if s.journal != nil {
			if err := s.journal.Append(rec); err != nil {
				s.logger.Printf("offline: journal attempt %s: %v", rec.ID, err)
			}
		}
		accepted++
	}

	return types.OfflineLogResponse{
		OK:         true,
		Accepted:   accepted,
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// canonicalTag normalizes an uploaded tag to the canonical UID form. The
// device may log either the raw checksummed payload or the bare UID.
func canonicalTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	if c, err := credential.Parse(tag); err == nil {
		return c.String()
	}
	if c, err := credential.FromHex(tag); err == nil {
		return c.String()
	}
	return ""
}
