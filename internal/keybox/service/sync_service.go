package service

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/keyboxlab/keyboxd/internal/keybox/schedule"
	"github.com/keyboxlab/keyboxd/internal/keybox/types"
)

// SyncService renders schedule bundles for device download. Rendered
// bundles are cached per (room, version); a reload bumps the version and
// naturally misses the cache.
type SyncService struct {
	schedules *schedule.Store
	cache     *gocache.Cache
}

func NewSyncService(st *schedule.Store, ttl time.Duration) *SyncService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SyncService{
		schedules: st,
		cache:     gocache.New(ttl, 2*ttl),
	}
}

// Bundle returns the full schedule for one room, ready for the device to
// cache for offline operation.
func (s *SyncService) Bundle(room string) types.ScheduleBundle {
	version := s.schedules.Version()
	key := fmt.Sprintf("%s@%d", room, version)

	if v, ok := s.cache.Get(key); ok {
		resp := v.(types.ScheduleBundle)
		resp.ServerTime = time.Now().UTC().Format(time.RFC3339Nano)
		return resp
	}

	bundle := s.schedules.Bundle()
	slots := bundle.SlotsFor(room)

	resp := types.ScheduleBundle{
		OK:           true,
		Room:         room,
		AcademicYear: bundle.AcademicYear,
		Semester:     bundle.Semester,
		Version:      version,
		Slots:        make([]types.BundleSlot, 0, len(slots)),
	}
	for _, slot := range slots {
		tags := make([]string, 0, len(slot.Tags))
		for _, c := range slot.Tags {
			tags = append(tags, c.String())
		}
		resp.Slots = append(resp.Slots, types.BundleSlot{
			ID:         slot.ID,
			Days:       slot.Days.Names(),
			Start:      slot.Start.String(),
			End:        slot.End.String(),
			Subject:    slot.Subject,
			Instructor: slot.Instructor,
			Tags:       tags,
		})
	}

	s.cache.SetDefault(key, resp)

	resp.ServerTime = time.Now().UTC().Format(time.RFC3339Nano)
	return resp
}

// CheckUpdates answers the device's cheap change poll against its cached
// bundle version.
func (s *SyncService) CheckUpdates(sinceVersion int64) types.UpdateCheckResponse {
	version := s.schedules.Version()
	return types.UpdateCheckResponse{
		OK:          true,
		NeedsUpdate: version != sinceVersion,
		Version:     version,
		ServerTime:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}
