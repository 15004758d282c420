// Package sync estimates the offset and drift between the local clock and
// a relay server so that note timestamps from other players can be turned
// into local delays.
//
// Uses NTP-style four-timestamp exchanges. Samples with a round trip over
// 100ms, or that disagree with the current prediction by more than 50ms,
// are discarded.
//
// Example:
//
//	clock := sync.NewClockSync(logger)
//	clock.ProcessSyncResponse(t1, t2, t3, t4)
//	delay := clock.DelayUntil(note.ServerTime)
package sync
