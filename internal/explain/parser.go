package explain

import (
	"strings"
)

// Notification is one term/definition pair destined for display
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ParserConfig controls how raw explanation text becomes notifications
type ParserConfig struct {
	MaxTitleLen      int  // titles longer than this are truncated, never rejected
	PreserveNewlines bool // keep line breaks in multi-line bodies instead of joining with spaces
}

// Parser converts the loosely formatted explanation response into an ordered
// sequence of notifications. The remote service's output format is not
// contractually guaranteed, so the parser tolerates preamble lines, missing
// delimiters and empty responses; it never returns an error.
//
// Grammar: blocks are separated by blank lines; within a block, everything
// before the first ':' is the term and everything after is the definition.
// Blocks without a delimiter are noise and are skipped.
type Parser struct {
	config ParserConfig
}

// NewParser creates a parser with the given configuration
func NewParser(config ParserConfig) *Parser {
	if config.MaxTitleLen <= 0 {
		config.MaxTitleLen = 64
	}
	return &Parser{config: config}
}

// Parse splits raw explanation text into notifications in source order.
// Blank or whitespace-only input yields an empty sequence. Duplicate terms
// are passed through; each occurrence becomes its own notification.
func (p *Parser) Parse(raw string) []Notification {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var records []Notification
	for _, block := range splitBlocks(raw) {
		idx := strings.Index(block, ":")
		if idx < 0 {
			continue
		}

		title := strings.TrimSpace(block[:idx])
		if title == "" {
			continue
		}
		title = p.truncateTitle(title)

		body := p.joinBody(block[idx+1:])
		if body == "" {
			body = "No description provided."
		}

		records = append(records, Notification{Title: title, Body: body})
	}

	return records
}

// splitBlocks splits the raw text into non-empty blocks on blank-line
// boundaries
func splitBlocks(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

// joinBody normalizes the definition text following the delimiter
func (p *Parser) joinBody(rest string) string {
	lines := strings.Split(rest, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	sep := " "
	if p.config.PreserveNewlines {
		sep = "\n"
	}
	return strings.Join(parts, sep)
}

// truncateTitle caps the title at the configured maximum; overflow keeps the
// leading characters and an ellipsis so the result is exactly the maximum
func (p *Parser) truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= p.config.MaxTitleLen {
		return title
	}
	return string(runes[:p.config.MaxTitleLen-3]) + "..."
}
