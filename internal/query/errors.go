package query

import "errors"

// Error kinds the HTTP layer maps to 400 responses.
var (
	ErrQueryTooShort = errors.New("query too short")
	ErrQueryInvalid  = errors.New("query invalid")
	ErrUnknownMode   = errors.New("unknown search mode")
)

// Mode selects the rescoring strategy applied to FTS5 candidates.
type Mode string

const (
	ModeFuzzy Mode = "fuzzy"
	ModeExact Mode = "exact"
	ModeRegex Mode = "regex"
)

// ParseMode validates a mode string, defaulting to ModeFuzzy for "".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeFuzzy, nil
	case ModeFuzzy, ModeExact, ModeRegex:
		return Mode(s), nil
	default:
		return "", ErrUnknownMode
	}
}
