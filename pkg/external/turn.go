package external

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/farklesolver/internal/dice"
	"github.com/yourusername/farklesolver/internal/scoring"
)

// Turn is a turn state in the line format "turn:<banked>:<d1>:...:<d6>",
// where d1..d6 are the faces rolled and 0 marks an empty slot. Trailing empty
// slots may be omitted.
type Turn struct {
	Banked scoring.Points // Points banked this turn before the roll
	Roll   dice.Sample    // Dice just rolled
}

const turnPrefix = "turn:"

// ParseTurn parses the turn line format.
func ParseTurn(s string) (Turn, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, turnPrefix) {
		return Turn{}, fmt.Errorf("turn must start with %q", turnPrefix)
	}
	fields := strings.Split(s[len(turnPrefix):], ":")
	if len(fields) < 2 {
		return Turn{}, fmt.Errorf("turn needs a score and at least one die, got %d fields", len(fields))
	}

	banked, err := strconv.Atoi(fields[0])
	if err != nil || banked < 0 {
		return Turn{}, fmt.Errorf("invalid banked score %q", fields[0])
	}
	faces := make([]int, len(fields)-1)
	for i, f := range fields[1:] {
		if faces[i], err = strconv.Atoi(f); err != nil {
			return Turn{}, fmt.Errorf("invalid face %q", f)
		}
	}
	roll, err := dice.SampleFromInts(faces)
	if err != nil {
		return Turn{}, err
	}
	if roll.Len() == 0 {
		return Turn{}, fmt.Errorf("turn has no dice rolled")
	}
	return Turn{Banked: scoring.Clamp(banked), Roll: roll}, nil
}

// String formats t in the turn line format with all six slots.
func (t Turn) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%d", turnPrefix, t.Banked)
	for _, side := range t.Roll {
		fmt.Fprintf(&b, ":%d", int(side))
	}
	return b.String()
}

// FormatDice formats the present dice of s as space separated faces, or "-"
// when s is empty.
func FormatDice(s dice.Sample) string {
	present := s.Present()
	if len(present) == 0 {
		return "-"
	}
	parts := make([]string, len(present))
	for i, side := range present {
		parts[i] = strconv.Itoa(int(side))
	}
	return strings.Join(parts, " ")
}
