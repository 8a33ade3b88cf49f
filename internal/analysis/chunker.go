package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dlyoglab/ipcheck/internal/bundle"
)

const (
	// DefaultMaxUnits bounds per-file mode.
	DefaultMaxUnits = 10
	// DefaultMaxUnitChars is the rune cap for a unit's text.
	DefaultMaxUnitChars = 3500
	// sliceSeparator joins entries before fixed-slice chunking.
	sliceSeparator = "\n\n"
)

// Mode selects the chunking policy.
type Mode string

const (
	// ModeAuto picks per-file for archives and fixed-slice for blobs.
	ModeAuto Mode = "auto"
	// ModePerFile emits one unit per bundle entry.
	ModePerFile Mode = "per-file"
	// ModeFixedSlice slices the concatenated content into equal windows.
	ModeFixedSlice Mode = "fixed-slice"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModePerFile, ModeFixedSlice:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown chunking mode: %s", s)
	}
}

// Chunk splits a bundle into an ordered sequence of units.
// An empty bundle yields an empty sequence.
func Chunk(b bundle.Bundle, maxUnits, maxUnitChars int, mode Mode) []Unit {
	if maxUnitChars <= 0 {
		maxUnitChars = DefaultMaxUnitChars
	}
	if mode == ModeAuto || mode == "" {
		mode = ModePerFile
		if b.Shape == bundle.ShapeBlob {
			mode = ModeFixedSlice
		}
	}

	switch mode {
	case ModeFixedSlice:
		return chunkFixedSlice(b, maxUnitChars)
	default:
		return chunkPerFile(b, maxUnits, maxUnitChars)
	}
}

func chunkPerFile(b bundle.Bundle, maxUnits, maxUnitChars int) []Unit {
	var units []Unit
	for _, e := range b.Entries {
		if maxUnits > 0 && len(units) >= maxUnits {
			break
		}
		text, truncated := truncateRunes(e.Content, maxUnitChars)
		units = append(units, Unit{
			Index:     len(units),
			Label:     e.Name,
			Text:      text,
			Truncated: truncated,
		})
	}
	return units
}

func chunkFixedSlice(b bundle.Bundle, maxUnitChars int) []Unit {
	parts := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		parts = append(parts, e.Content)
	}
	joined := strings.Join(parts, sliceSeparator)
	if strings.TrimSpace(joined) == "" {
		return nil
	}

	runes := []rune(joined)
	n := (len(runes) + maxUnitChars - 1) / maxUnitChars
	name := b.Name
	if name == "" {
		name = "bundle"
	}

	units := make([]Unit, 0, n)
	for start := 0; start < len(runes); start += maxUnitChars {
		end := min(start+maxUnitChars, len(runes))
		units = append(units, Unit{
			Index: len(units),
			Label: fmt.Sprintf("%s [%d/%d]", name, len(units)+1, n),
			Text:  string(runes[start:end]),
		})
	}
	return units
}

// truncateRunes cuts s to at most n runes and reports whether it did.
func truncateRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}
