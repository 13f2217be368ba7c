package updater

import (
	"fmt"
	"strings"
)

// State classifies a migration by the directory it was found in.
// The ordering Released < Custom < Module < Archived is used for reporting only.
type State int

const (
	// StateReleased marks migrations shipped with a release.
	StateReleased State = iota
	// StateCustom marks locally authored migrations.
	StateCustom
	// StateModule marks migrations contributed by an optional module.
	StateModule
	// StateArchived marks old migrations whose content is considered immutable.
	StateArchived
)

var stateNames = [...]string{
	StateReleased: "RELEASED",
	StateCustom:   "CUSTOM",
	StateModule:   "MODULE",
	StateArchived: "ARCHIVED",
}

// String returns the form stored in the updates and updates_include tables.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a stored state string. Matching is case-insensitive.
// Unknown values return an error wrapping ErrUnknownState; callers treat them
// as a recoverable skip so newer state values do not break older binaries.
func ParseState(s string) (State, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range stateNames {
		if name == v {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, s)
}

// isCustomGroup reports whether files in this state are reconciled in the
// second phase, after released and archived files.
func (s State) isCustomGroup() bool {
	return s == StateCustom || s == StateModule
}
