// ABOUTME: Clock synchronization with drift compensation
// ABOUTME: Maps relay server timestamps onto the local wall clock
package sync

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	default:
		return "lost"
	}
}

// Sample rejection thresholds in microseconds
const (
	maxRTT      = 100000
	degradedRTT = 50000
	maxResidual = 50000
)

// ClockSync tracks offset and drift between this client and the relay.
// All timestamps are Unix microseconds.
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // server - client
	drift          float64 // μs of offset change per client μs
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // client time when offset/drift were last updated
	sampleCount    int
	smoothingRate  float64
	now            func() time.Time
	logger         *zap.Logger
}

// NewClockSync creates a new clock synchronizer
func NewClockSync(logger *zap.Logger) *ClockSync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClockSync{
		smoothingRate: 0.1,
		quality:       QualityLost,
		now:           time.Now,
		logger:        logger.Named("clock"),
	}
}

// ProcessSyncResponse folds one NTP-style exchange into the estimate:
// t1 client send, t2 server receive, t3 server send, t4 client receive
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	cs.lastSync = cs.now()

	if rtt > maxRTT || rtt < 0 {
		cs.logger.Debug("discarding sync sample", zap.Int64("rtt_us", rtt))
		return
	}

	switch cs.sampleCount {
	case 0:
		cs.offset = measured
		cs.logger.Info("initial sync", zap.Int64("offset_us", measured), zap.Int64("rtt_us", rtt))
	case 1:
		if dt := float64(t4 - cs.lastSyncMicros); dt > 0 {
			cs.drift = float64(measured-cs.offset) / dt
		}
		cs.offset = measured
	default:
		dt := float64(t4 - cs.lastSyncMicros)
		if dt <= 0 {
			cs.logger.Debug("discarding sync sample: non-monotonic time")
			return
		}
		predicted := cs.offset + int64(cs.drift*dt)
		residual := measured - predicted
		if residual > maxResidual || residual < -maxResidual {
			cs.logger.Debug("discarding sync sample: large residual", zap.Int64("residual_us", residual))
			return
		}
		cs.offset = predicted + int64(cs.smoothingRate*float64(residual))
		cs.drift += cs.smoothingRate * float64(residual) / dt
	}

	cs.lastSyncMicros = t4
	cs.sampleCount++
	if rtt < degradedRTT {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}
}

// calculateOffset computes RTT and clock offset (positive = server ahead)
func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// Stats returns offset, rtt and quality
func (cs *ClockSync) Stats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// Synced reports whether at least one sample was accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// CheckQuality marks the sync lost after 5s without a response
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.now().Sub(cs.lastSync) > 5*time.Second {
		cs.quality = QualityLost
	}
	return cs.quality
}

// ServerNow returns the current time in the server's frame, Unix μs
func (cs *ClockSync) ServerNow() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	client := cs.now().UnixMicro()
	if cs.sampleCount == 0 {
		return client
	}
	return client + cs.offset + int64(cs.drift*float64(client-cs.lastSyncMicros))
}

// ServerToLocalTime converts a server timestamp to local wall clock time
func (cs *ClockSync) ServerToLocalTime(serverTime int64) time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.sampleCount == 0 {
		return time.UnixMicro(serverTime)
	}
	// server = client + offset + drift*(client - last), solved for client
	num := float64(serverTime) - float64(cs.offset) + cs.drift*float64(cs.lastSyncMicros)
	return time.UnixMicro(int64(num / (1.0 + cs.drift)))
}

// DelayUntil returns how long from now until serverTime, never negative
func (cs *ClockSync) DelayUntil(serverTime int64) time.Duration {
	d := cs.ServerToLocalTime(serverTime).Sub(cs.now())
	if d < 0 {
		return 0
	}
	return d
}
