package digest

import (
	"fmt"
	"strings"
	"time"

	"ai-digest-bot/pkg/store"
	"ai-digest-bot/pkg/utils"
)

// DefaultHardLimit is the transport ceiling used when none is configured.
const DefaultHardLimit = 1900

const timestampLayout = "Jan 2, 15:04 MST"

// Format renders header, a blank line and the body lines joined by
// newlines, cut at exactly hardLimit characters when longer.
func Format(header string, bodyLines []string, hardLimit int) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(bodyLines, "\n"))
	return utils.Truncate(b.String(), hardLimit)
}

// RenderItems turns ranked records into enumerable body lines: ordinal,
// title, optional parenthesized timestamp, link on the next line and a
// blank line between items. Timestamps are shown in loc (UTC when nil).
func RenderItems(records []store.NormalizedRecord, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	lines := make([]string, 0, len(records)*3)
	for i, r := range records {
		if i > 0 {
			lines = append(lines, "")
		}
		title := fmt.Sprintf("%d. %s", i+1, r.Title)
		if r.Timestamp != nil {
			title += fmt.Sprintf(" (%s)", r.Timestamp.In(loc).Format(timestampLayout))
		}
		lines = append(lines, title, r.Link)
	}
	return lines
}

// DatedHeader appends the current date in loc to label.
func DatedHeader(label string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s — %s", label, now.In(loc).Format("Mon, Jan 2 2006"))
}

// Serialize renders records as a compact numbered list for a model prompt.
func Serialize(records []store.NormalizedRecord) string {
	var b strings.Builder
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s <%s>", i+1, r.Title, r.Link)
		if r.Timestamp != nil {
			fmt.Fprintf(&b, " [%s]", r.Timestamp.UTC().Format(time.RFC3339))
		}
		b.WriteString("\n")
	}
	return b.String()
}
