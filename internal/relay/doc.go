// Package relay connects pianos across the network.
//
// A Server is a room: it hands out participant colors, answers time sync
// requests and forwards each player's note batches to everyone else. A
// Client sits between a local front end and its piano. Local notes play
// immediately and are batched to the room; remote notes arrive stamped with
// relay time and are converted to local delays through the synced clock.
package relay
