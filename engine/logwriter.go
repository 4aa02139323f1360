package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Shufflewick/boardsmith/boardgame"
	"github.com/Shufflewick/boardsmith/element"
)

// logLine is one newline-delimited JSON record of the command log.
type logLine struct {
	Seq     int             `json:"seq"`
	Command element.Command `json:"command"`
}

// WriteCommandLog streams a game's command log as JSONL: one command per
// line, prefixed by its sequence number. The log plus the game's rule
// code is sufficient to reconstruct state.
func WriteCommandLog(w io.Writer, g *boardgame.Game) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, c := range g.Tree().Log() {
		if err := enc.Encode(logLine{Seq: i, Command: c}); err != nil {
			return fmt.Errorf("encoding command %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadCommandLog parses a JSONL command log back into command records.
func ReadCommandLog(r io.Reader) ([]element.Command, error) {
	var out []element.Command
	dec := json.NewDecoder(r)
	for {
		var line logLine
		if err := dec.Decode(&line); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("decoding command %d: %w", len(out), err)
		}
		if line.Seq != len(out) {
			return nil, fmt.Errorf("command log out of order: got seq %d, want %d", line.Seq, len(out))
		}
		out = append(out, line.Command)
	}
}
