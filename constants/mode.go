package constants

import "strings"

// Mode selects how a document is turned into an input stream.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeTable Mode = "table"
	ModeFlat  Mode = "flat"
)

var allModes = []Mode{ModeAuto, ModeTable, ModeFlat}

// ModeStrings returns the accepted mode names.
func ModeStrings() []string {
	result := make([]string, len(allModes))
	for i, m := range allModes {
		result[i] = string(m)
	}
	return result
}

// ParseMode accepts a few spellings used on the command line.
func ParseMode(input string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "auto":
		return ModeAuto, true
	case "table", "tables", "tabela", "word":
		return ModeTable, true
	case "flat", "text", "flat-text", "texto", "pdf":
		return ModeFlat, true
	default:
		return ModeAuto, false
	}
}

// Resolve picks the concrete mode for a document of the given format.
// Explicit modes are kept; auto maps DOCX to table and everything else to flat text.
func (m Mode) Resolve(format string) Mode {
	if m == ModeTable || m == ModeFlat {
		return m
	}
	if format == FormatDOCX {
		return ModeTable
	}
	return ModeFlat
}
