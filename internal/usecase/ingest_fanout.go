package usecase

import (
	"context"

	"LabPulse/internal/domain/models"
	domrepo "LabPulse/internal/domain/repository"
	domsvc "LabPulse/internal/domain/service"
	"LabPulse/internal/service/cache"
	applogger "LabPulse/pkg/logger"
)

// IngestFanout runs the side effects of a stored batch: live reading events,
// cache invalidation for the affected users and anomaly events for flags the
// new readings raised. Every dependency is optional.
type IngestFanout struct {
	sink     domrepo.EventSink
	cache    cache.BytesCache
	store    domrepo.ReadingStore
	detector domsvc.AnomalyDetector
	l        *applogger.Logger
}

func NewIngestFanout(sink domrepo.EventSink, c cache.BytesCache, store domrepo.ReadingStore, detector domsvc.AnomalyDetector, l *applogger.Logger) *IngestFanout {
	if l == nil {
		l = applogger.Nop()
	}
	return &IngestFanout{sink: sink, cache: c, store: store, detector: detector, l: l}
}

// After must be called once the readings are durable.
func (f *IngestFanout) After(ctx context.Context, readings []*models.Reading) {
	if f == nil || len(readings) == 0 {
		return
	}

	users := map[int64]struct{}{}
	for _, r := range readings {
		users[r.UserID] = struct{}{}
		if f.sink != nil {
			f.sink.Broadcast(models.NewReadingEvent(r))
		}
	}

	if f.cache != nil {
		for u := range users {
			if err := f.cache.DeletePrefix(ctx, cache.UserPrefix(u)); err != nil {
				f.l.Warn("cache invalidation failed", applogger.Int64("user_id", u), applogger.Error(err))
			}
		}
	}

	if f.sink != nil && f.store != nil && f.detector != nil {
		f.notifyAnomalies(ctx, readings)
	}
}

// notifyAnomalies re-runs detection on each touched (user, name) history and
// emits flags whose reading is part of this batch.
func (f *IngestFanout) notifyAnomalies(ctx context.Context, readings []*models.Reading) {
	type key struct {
		user int64
		name string
	}
	fresh := make(map[string]struct{}, len(readings))
	touched := make([]key, 0)
	seen := map[key]struct{}{}
	for _, r := range readings {
		fresh[r.ID] = struct{}{}
		k := key{r.UserID, r.Name}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			touched = append(touched, k)
		}
	}

	for _, k := range touched {
		rs, err := f.store.ListReadings(ctx, domrepo.ReadingQuery{UserID: k.user, NameContains: k.name, Order: domrepo.OrderAsc})
		if err != nil {
			f.l.Warn("anomaly check load failed", applogger.Int64("user_id", k.user), applogger.String("name", k.name), applogger.Error(err))
			continue
		}
		exact := rs[:0]
		for _, r := range rs {
			if r.Name == k.name {
				exact = append(exact, r)
			}
		}
		for _, flag := range f.detector.Detect(exact) {
			if _, ok := fresh[flag.BiomarkerID]; ok {
				f.sink.Broadcast(models.NewAnomalyEvent(k.user, flag))
			}
		}
	}
}
