// ABOUTME: Line-oriented command shell for driving the piano
// ABOUTME: Commands schedule notes, change volume and threshold, and report stats
package repl

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/Resonate-Protocol/pianoroom/pkg/piano"
)

// Player sounds notes for the local participant
type Player interface {
	Play(note string, velocity float64, part piano.Participant, delay time.Duration)
	Stop(note string, part piano.Participant, delay time.Duration)
}

// Engine is the control surface of *piano.Engine
type Engine interface {
	SetVolume(v float64)
	Volume() float64
	Pause()
	Resume() error
	Paused() bool
	SetThreshold(d time.Duration)
	Threshold() time.Duration
	ReleaseAll(delay time.Duration) int
	Stats() piano.Stats
}

// Pedal is the sustain pedal; *keys.Sustain implements it
type Pedal interface {
	PressSustain()
	ReleaseSustain()
}

// Env is what commands operate on
type Env struct {
	Player Player
	Engine Engine
	Pedal  Pedal
	Local  func() piano.Participant
}

type command struct {
	name  string
	usage string
	run   func(*Env, []string) (string, error)
	arity int // -n means len(args) must be >= n
	max   int // 0 means no upper bound beyond arity
}

var commands []command

func init() {
	commands = []command{
		{"play", "play <note> [velocity] [delay-ms]", playCommand, -1, 3},
		{"stop", "stop <note> [delay-ms]", stopCommand, -1, 2},
		{"arp", "arp <step-ms> <note>...", arpCommand, -2, 0},
		{"vol", "vol [0-1]", volCommand, 0, 1},
		{"pause", "pause", pauseCommand, 0, 0},
		{"resume", "resume", resumeCommand, 0, 0},
		{"threshold", "threshold [ms]", thresholdCommand, 0, 1},
		{"pedal", "pedal down|up", pedalCommand, 1, 1},
		{"panic", "panic", panicCommand, 0, 0},
		{"stats", "stats", statsCommand, 0, 0},
		{"help", "help", helpCommand, 0, 0},
	}
}

// Eval runs one command line and returns its output
func (e *Env) Eval(input string) (string, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil
	}
	name, args := fields[0], fields[1:]
	for _, cmd := range commands {
		if name != cmd.name {
			continue
		}
		if cmd.arity < 0 {
			if len(args) < -cmd.arity {
				return "", fmt.Errorf("%s: wrong number of arguments: need at least %v, got %v", cmd.name, -cmd.arity, len(args))
			}
			if cmd.max > 0 && len(args) > cmd.max {
				return "", fmt.Errorf("usage: %s", cmd.usage)
			}
		} else if len(args) < cmd.arity || (len(args) > cmd.arity && len(args) > cmd.max) {
			return "", fmt.Errorf("usage: %s", cmd.usage)
		}
		out, err := cmd.run(e, args)
		if err != nil {
			return out, fmt.Errorf("%s error: %w", cmd.name, err)
		}
		return out, nil
	}
	return "", fmt.Errorf("unknown command: %s", name)
}

// Run reads commands until EOF or "quit"
func Run(env *Env, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "♪ ",
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "quit" || line == "exit" {
			return nil
		}
		result, err := env.Eval(line)
		if err != nil {
			fmt.Fprintln(out, err)
		} else if result != "" {
			fmt.Fprintln(out, result)
		}
	}
}

func completer() *readline.PrefixCompleter {
	notes := make([]readline.PrefixCompleterInterface, 0, len(piano.KeyNames))
	for _, n := range piano.KeyNames {
		notes = append(notes, readline.PcItem(n))
	}
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+1)
	for _, cmd := range commands {
		switch cmd.name {
		case "play", "stop":
			items = append(items, readline.PcItem(cmd.name, notes...))
		case "pedal":
			items = append(items, readline.PcItem(cmd.name, readline.PcItem("down"), readline.PcItem("up")))
		default:
			items = append(items, readline.PcItem(cmd.name))
		}
	}
	return readline.NewPrefixCompleter(append(items, readline.PcItem("quit"))...)
}

func (e *Env) local() piano.Participant {
	if e.Local == nil {
		return piano.Participant{ID: "local", Color: piano.DefaultColor}
	}
	return e.Local()
}

func playCommand(env *Env, args []string) (string, error) {
	note := args[0]
	if _, ok := piano.KeyIndex(note); !ok {
		return "", fmt.Errorf("unknown key %q", note)
	}
	velocity := piano.DefaultVelocity
	if len(args) > 1 {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", fmt.Errorf("bad velocity: %w", err)
		}
		velocity = v
	}
	var delay time.Duration
	if len(args) > 2 {
		d, err := parseMillis(args[2])
		if err != nil {
			return "", err
		}
		delay = d
	}
	env.Player.Play(note, velocity, env.local(), delay)
	return "", nil
}

func stopCommand(env *Env, args []string) (string, error) {
	note := args[0]
	if _, ok := piano.KeyIndex(note); !ok {
		return "", fmt.Errorf("unknown key %q", note)
	}
	var delay time.Duration
	if len(args) > 1 {
		d, err := parseMillis(args[1])
		if err != nil {
			return "", err
		}
		delay = d
	}
	env.Player.Stop(note, env.local(), delay)
	return "", nil
}

// arpCommand plays notes one step apart, each held for one step
func arpCommand(env *Env, args []string) (string, error) {
	step, err := parseMillis(args[0])
	if err != nil {
		return "", err
	}
	notes := args[1:]
	for _, n := range notes {
		if _, ok := piano.KeyIndex(n); !ok {
			return "", fmt.Errorf("unknown key %q", n)
		}
	}
	local := env.local()
	for i, n := range notes {
		at := time.Duration(i) * step
		env.Player.Play(n, piano.DefaultVelocity, local, at)
		env.Player.Stop(n, local, at+step)
	}
	return fmt.Sprintf("scheduled %d notes over %v", len(notes), time.Duration(len(notes))*step), nil
}

func volCommand(env *Env, args []string) (string, error) {
	if len(args) == 1 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return "", fmt.Errorf("bad volume: %w", err)
		}
		env.Engine.SetVolume(v)
	}
	return fmt.Sprintf("volume %.2f", env.Engine.Volume()), nil
}

func pauseCommand(env *Env, _ []string) (string, error) {
	env.Engine.Pause()
	return "paused", nil
}

func resumeCommand(env *Env, _ []string) (string, error) {
	if err := env.Engine.Resume(); err != nil {
		return "", err
	}
	return "running", nil
}

func thresholdCommand(env *Env, args []string) (string, error) {
	if len(args) == 1 {
		d, err := parseMillis(args[0])
		if err != nil {
			return "", err
		}
		env.Engine.SetThreshold(d)
	}
	return fmt.Sprintf("threshold %v", env.Engine.Threshold()), nil
}

func pedalCommand(env *Env, args []string) (string, error) {
	if env.Pedal == nil {
		return "", errors.New("no pedal")
	}
	switch args[0] {
	case "down":
		env.Pedal.PressSustain()
	case "up":
		env.Pedal.ReleaseSustain()
	default:
		return "", fmt.Errorf("expected down or up, got %q", args[0])
	}
	return "", nil
}

func panicCommand(env *Env, _ []string) (string, error) {
	n := env.Engine.ReleaseAll(0)
	return fmt.Sprintf("released %d voices", n), nil
}

func statsCommand(env *Env, _ []string) (string, error) {
	s := env.Engine.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "time %.3fs  paused %v  loaded %d\n", s.Time, s.Paused, s.Loaded)
	fmt.Fprintf(&b, "voices %d sounding, %d sources, %d scheduled\n", s.Sounding, s.Sources, s.Pending)
	fmt.Fprintf(&b, "played %d  stolen %d  released %d  ignored %d  lookahead %d",
		s.Voices.Played, s.Voices.Stolen, s.Voices.Released, s.Voices.Ignored, s.LookaheadSent)
	return b.String(), nil
}

func helpCommand(_ *Env, _ []string) (string, error) {
	usages := make([]string, 0, len(commands))
	for _, cmd := range commands {
		usages = append(usages, "  "+cmd.usage)
	}
	sort.Strings(usages)
	return strings.Join(usages, "\n"), nil
}

func parseMillis(s string) (time.Duration, error) {
	ms, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad milliseconds %q: %w", s, err)
	}
	if ms < 0 {
		return 0, fmt.Errorf("negative milliseconds %q", s)
	}
	return time.Duration(ms * float64(time.Millisecond)), nil
}
