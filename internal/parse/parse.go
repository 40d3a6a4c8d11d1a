// Package parse extracts per-participant results from captured simulator output.
package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalnine/tournament/internal/result"
)

// ErrStructure reports output with fewer lines or fields than the
// participant count requires. Positional attribution is impossible then, so
// it is never papered over.
var ErrStructure = errors.New("output structure mismatch")

// Format is one simulator output convention.
type Format interface {
	// Parse maps each participant, in order, to its record.
	Parse(output string, participants []string) (result.Run, error)
	// HasTimeRemaining reports whether the convention carries time-remaining values.
	HasTimeRemaining() bool
	Name() string
}

// SingleLine reads a delimiter-separated summary on the last output line.
// The final field of the line is a terminator and is dropped; the last two
// fields per participant before it are score then time remaining, in
// participant order.
type SingleLine struct {
	Delimiter string
}

// PerParticipantLine reads the last N lines, one per participant in order,
// taking each line's last whitespace-separated token as the final score.
type PerParticipantLine struct{}

// New returns the Format registered under name.
func New(name, delimiter string) (Format, error) {
	switch name {
	case "", "single-line":
		if delimiter == "" {
			delimiter = ", "
		}
		return SingleLine{Delimiter: delimiter}, nil
	case "per-participant":
		return PerParticipantLine{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", name)
	}
}

func (SingleLine) Name() string           { return "single-line" }
func (SingleLine) HasTimeRemaining() bool { return true }

func (f SingleLine) Parse(output string, participants []string) (result.Run, error) {
	lines := lines(output)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no output lines", ErrStructure)
	}
	fields := strings.Split(lines[len(lines)-1], f.Delimiter)
	fields = fields[:len(fields)-1]

	need := 2 * len(participants)
	if len(fields) < need {
		return nil, fmt.Errorf("%w: summary line has %d fields, need %d for %d participants",
			ErrStructure, len(fields), need, len(participants))
	}
	base := len(fields) - need
	run := make(result.Run, len(participants))
	for i, p := range participants {
		run[p] = result.RunRecord{
			FinalScore:    result.ParseSample(fields[base+2*i]),
			TimeRemaining: result.ParseSample(fields[base+2*i+1]),
		}
	}
	return run, nil
}

func (PerParticipantLine) Name() string           { return "per-participant" }
func (PerParticipantLine) HasTimeRemaining() bool { return false }

func (PerParticipantLine) Parse(output string, participants []string) (result.Run, error) {
	lines := lines(output)
	if len(lines) < len(participants) {
		return nil, fmt.Errorf("%w: %d output lines, need %d", ErrStructure, len(lines), len(participants))
	}
	tail := lines[len(lines)-len(participants):]
	run := make(result.Run, len(participants))
	for i, p := range participants {
		tokens := strings.Fields(tail[i])
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%w: empty result line for %s", ErrStructure, p)
		}
		run[p] = result.RunRecord{
			FinalScore:    result.ParseSample(tokens[len(tokens)-1]),
			TimeRemaining: result.Absent,
		}
	}
	return run, nil
}

// lines splits output on newlines after dropping the trailing terminators,
// so the last element is the last line the simulator printed.
func lines(output string) []string {
	output = strings.TrimRight(output, "\r\n")
	if output == "" {
		return nil
	}
	ls := strings.Split(output, "\n")
	for i, l := range ls {
		ls[i] = strings.TrimSuffix(l, "\r")
	}
	return ls
}
