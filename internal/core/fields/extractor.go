package fields

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

// NoteKind classifies a diagnostic produced during extraction.
type NoteKind string

const (
	// NoteAntiMergeSuppressed: the fallback value for Key began with a label
	// of another key, so the key was left empty.
	NoteAntiMergeSuppressed NoteKind = "anti_merge_suppressed"
)

// Note is an extraction diagnostic. It never makes extraction fail.
type Note struct {
	Kind  NoteKind
	Key   string
	Label string
	Line  string
}

// Result is the outcome of extracting one span.
type Result struct {
	Fields *extract.FieldMap
	Notes  []Note
}

// Suppressed counts anti-merge notes.
func (r Result) Suppressed() int {
	n := 0
	for _, note := range r.Notes {
		if note.Kind == NoteAntiMergeSuppressed {
			n++
		}
	}
	return n
}

// Options tune the extractor.
type Options struct {
	// ResidentialRowThreshold is the first table row whose address-block
	// cells describe the employee. Zero accepts them from every row.
	ResidentialRowThreshold int
	// KeepUnmapped stores flat-text "label: value" pairs with unknown labels
	// under a key derived from the label.
	KeepUnmapped bool
}

// DefaultOptions returns the stock extractor options.
func DefaultOptions() Options {
	return Options{ResidentialRowThreshold: constants.DefaultResidentialRowThreshold}
}

// Extractor turns a record span into fields. It holds no mutable state and
// may be shared by concurrent workers.
type Extractor struct {
	dict       *Dictionary
	rules      []Rule
	positional [][]Rule
	opts       Options
	logger     *slog.Logger
}

// NewExtractor builds an extractor. A nil dict or rules uses the built-in ones.
func NewExtractor(dict *Dictionary, rules []Rule, opts Options, logger *slog.Logger) *Extractor {
	if dict == nil {
		dict = Default()
	}
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	plain, positional := groupPositional(rules)
	return &Extractor{dict: dict, rules: plain, positional: positional, opts: opts, logger: logger}
}

// Dictionary returns the label dictionary in use.
func (e *Extractor) Dictionary() *Dictionary { return e.dict }

// Extract runs the composite, direct-pairing and fallback tiers in order.
// Each tier only fills keys the previous tiers left empty.
func (e *Extractor) Extract(span extract.RecordSpan) Result {
	res := Result{Fields: extract.NewFieldMap()}
	text := spanText(span)

	e.applyComposite(span.Mode, text, res.Fields)
	if span.Mode == constants.ModeTable {
		e.pairCells(span.Cells, res.Fields)
	} else {
		e.pairLines(text, res.Fields)
	}
	e.fallback(span.Index, text, &res)
	return res
}

func spanText(span extract.RecordSpan) string {
	if span.Text != "" || len(span.Cells) == 0 {
		return span.Text
	}
	parts := make([]string, len(span.Cells))
	for i, c := range span.Cells {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

func (e *Extractor) applyComposite(mode constants.Mode, text string, fm *extract.FieldMap) {
	for _, r := range e.rules {
		caps, _ := r.match(text, false)
		for _, c := range caps {
			fm.SetIfEmpty(c.key, c.value)
		}
	}
	if mode == constants.ModeTable {
		return
	}
	for _, group := range e.positional {
		for _, c := range lastOf(group, text) {
			fm.Override(c.key, c.value)
		}
	}
}

// pairCells reads "label line + value lines" cells. Address-block keys are
// taken only from rows at or past the residential threshold.
func (e *Extractor) pairCells(cells []extract.RawCell, fm *extract.FieldMap) {
	for _, c := range cells {
		label, value, ok := SplitCell(c.Text)
		if !ok {
			continue
		}
		key, ok := e.dict.Lookup(label)
		if !ok {
			continue
		}
		if e.dict.IsDuplicated(key) && c.Row < e.opts.ResidentialRowThreshold {
			continue
		}
		fm.SetIfEmpty(key, value)
	}
}

// SplitCell splits a table cell into its label (first non-empty line) and
// value (remaining non-empty lines). A single "label: value" line is split at
// the colon. ok is false when the cell carries no value.
func SplitCell(text string) (label, value string, ok bool) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	switch len(lines) {
	case 0:
		return "", "", false
	case 1:
		before, after, found := strings.Cut(lines[0], ":")
		before, after = strings.TrimSpace(before), strings.TrimSpace(after)
		if !found || before == "" || after == "" {
			return lines[0], "", false
		}
		return before, after, true
	default:
		return strings.TrimSuffix(lines[0], ":"), strings.Join(lines[1:], "\n"), true
	}
}

var colonLine = regexp.MustCompile(`(?m)^[ \t]*([^:\n]{2,60}?)[ \t]*:[ \t]*(\S[^\n]*?)[ \t]*$`)

// pairLines reads flat-text "label: value" lines. Address-block keys keep
// the last occurrence and only fill what the composite tier left empty.
func (e *Extractor) pairLines(text string, fm *extract.FieldMap) {
	var positional []captured
	for _, m := range colonLine.FindAllStringSubmatch(text, -1) {
		label, value := m[1], m[2]
		key, ok := e.dict.Lookup(label)
		if !ok {
			if e.opts.KeepUnmapped {
				if k := SanitizeKey(label); k != "" && !constants.IsMetadataKey(k) {
					fm.SetIfEmpty(k, value)
				}
			}
			continue
		}
		if e.dict.IsDuplicated(key) {
			positional = append(positional, captured{key: key, value: value})
			continue
		}
		fm.SetIfEmpty(key, value)
	}
	last := make(map[string]string, len(positional))
	var order []string
	for _, c := range positional {
		if _, seen := last[c.key]; !seen {
			order = append(order, c.key)
		}
		last[c.key] = c.value
	}
	for _, k := range order {
		fm.SetIfEmpty(k, last[k])
	}
}

// fallback searches the folded span text for labels of still-empty keys.
// Address-block keys are never searched this way.
func (e *Extractor) fallback(index int, text string, res *Result) {
	if text == "" {
		return
	}
	folded := foldRunes(text)
	orig := []rune(text)
	for _, key := range e.dict.Keys() {
		if res.Fields.Has(key) || e.dict.IsDuplicated(key) {
			continue
		}
		for _, sp := range e.dict.spellingsFor(key) {
			_, end := indexLabel(folded, sp.folded)
			if end < 0 {
				continue
			}
			line, ok := valueAfter(orig, end)
			if !ok {
				break
			}
			if other, otherKey, hit := e.dict.LeadingLabel(line); hit && otherKey != key {
				res.Notes = append(res.Notes, Note{Kind: NoteAntiMergeSuppressed, Key: key, Label: other, Line: line})
				e.logger.Debug("fields.antimerge.suppressed",
					"record_index", index,
					"key", key,
					"next_label", other,
				)
				break
			}
			res.Fields.SetIfEmpty(key, line)
			break
		}
	}
}

// valueAfter returns the first non-empty line starting at pos, skipping a
// leading colon on the label's own line.
func valueAfter(text []rune, pos int) (string, bool) {
	i := pos
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	if i < len(text) && text[i] == ':' {
		i++
	}
	for i < len(text) {
		j := i
		for j < len(text) && text[j] != '\n' {
			j++
		}
		if line := strings.TrimSpace(string(text[i:j])); line != "" {
			return line, true
		}
		i = j + 1
	}
	return "", false
}
