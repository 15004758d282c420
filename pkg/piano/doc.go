// Package piano is the entry point of the audio core.
//
// Engine wires a sample store, a voice manager, a lookahead scheduler and
// a mixer graph together behind play/stop calls that carry a delay from
// now. Calls whose delay is within the lookahead threshold are applied on
// the caller's goroutine; later ones wait on the scheduler and are applied
// by the engine's dispatch goroutine. Both paths land on the same graph
// time, computed when the call is made.
//
// Piano adds the 88-key keyboard, sound packs and participant colors on
// top of any AudioEngine.
//
// Example:
//
//	engine, err := piano.NewEngine(piano.Config{AutoResume: true, Output: out})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	<-engine.Load(ctx, "a3", "sounds/a3.mp3")
//	engine.Play("a3", 0.5, 80*time.Millisecond, "local")
package piano
