// Package repl is a readline shell for playing and inspecting the piano.
//
//	play a3 0.8 250    press a3 at velocity 0.8 in 250ms
//	arp 120 c3 e3 g3   broken chord, one note every 120ms
//	threshold 30       route requests more than 30ms out through lookahead
package repl
