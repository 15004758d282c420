// Package lookahead holds note events until shortly before they must
// sound and then hands them back to the caller.
//
// One goroutine owns a min-heap of pending events and a single timer that
// is always armed for the earliest due time, so a thousand waiting events
// cost one wakeup each and never hold each other up. Requests go in with
// Post and come out of Events in due order, FIFO among equal due times.
//
//	s := lookahead.New(lookahead.Config{})
//	go s.Run()
//	s.Post(80*time.Millisecond, lookahead.Event{Kind: lookahead.Play, NoteID: "a4"})
//	ev := <-s.Events()
package lookahead
