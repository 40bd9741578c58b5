package rules

import (
	"fmt"
	"strings"

	"fplpilot/internal/season"
)

// ResolveChip turns a requested chip into the one that will actually be played.
// Only TC and BB execute. Anything else, or a chip already spent, resolves to
// NONE with a note for the week's reason.
func ResolveChip(requested string, available map[season.Chip]bool) (season.Chip, string) {
	want := season.Chip(strings.ToUpper(strings.TrimSpace(requested)))
	switch want {
	case "", season.ChipNone:
		return season.ChipNone, ""
	case season.ChipTC, season.ChipBB:
		if available[want] {
			return want, ""
		}
		return season.ChipNone, fmt.Sprintf("chip %s already used", want)
	case season.ChipFH, season.ChipWC1, season.ChipWC2, "WC":
		return season.ChipNone, fmt.Sprintf("chip %s not executed", want)
	default:
		return season.ChipNone, fmt.Sprintf("unknown chip %q ignored", requested)
	}
}
