// ABOUTME: Relay wire protocol package
// ABOUTME: Defines relay messages and the WebSocket client
// Package protocol implements the pianoroom relay protocol.
//
// Every message is a JSON envelope {"type": ..., "payload": ...}. Players
// announce themselves with client/hello, keep their clocks aligned with
// client/time and server/time, and exchange note batches stamped with
// server time.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{ServerAddr: "localhost:8927", ClientID: id, Name: "me"})
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	for batch := range client.Notes {
//		// schedule batch.Notes
//	}
package protocol
