// Package markup parses the inline directive mini-language the assistant
// embeds in its replies: page links, calculation cards and checklists.
//
//	[[세금계산서 발행하기|/invoices/new]]
//	{{calc|공급가액:5,000,000원|부가세(10%):500,000원|합계:5,500,000원}}
//	{{checklist|거래처 등록|품목 입력|발행}}
//
// Parsing is pure text work: no I/O, no validation of link targets, and no
// errors. Anything that is not a complete directive stays literal text, so a
// half-streamed directive renders as-is until its closing delimiter arrives.
package markup

import (
	"regexp"
	"sort"
	"strings"
)

// Kind tags a Segment variant.
type Kind string

// segment kinds
const (
	KindText      Kind = "text"
	KindLink      Kind = "link"
	KindCalc      Kind = "calc"
	KindChecklist Kind = "checklist"
)

// Row is one label/value line of a calculation card.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Segment is one parsed piece of an assistant message. Source always holds
// the exact input slice the segment came from, so joining the sources of all
// segments in order reconstructs the original buffer.
type Segment struct {
	Kind   Kind   `json:"kind"`
	Source string `json:"-"`

	Text string `json:"text,omitempty"` // KindText

	Label  string `json:"label,omitempty"`  // KindLink
	Target string `json:"target,omitempty"` // KindLink, kept verbatim

	Rows  []Row `json:"rows,omitempty"`  // KindCalc line items
	Total Row   `json:"total,omitempty"` // KindCalc grand total

	Items []string `json:"items,omitempty"` // KindChecklist
}

var (
	linkPattern      = regexp.MustCompile(`\[\[(.+?)\|(.+?)\]\]`)
	calcPattern      = regexp.MustCompile(`\{\{calc\|(.+?)\}\}`)
	checklistPattern = regexp.MustCompile(`\{\{checklist\|(.+?)\}\}`)
)

type match struct {
	start, end int
	seg        Segment
}

// Parse splits content into an ordered segment list. Each directive pattern
// is run over the whole buffer independently, the matches are stable-sorted
// by start offset and the gaps between them become text segments. A buffer
// without any directive (the empty string included) yields a single text
// segment equal to the input.
func Parse(content string) []Segment {
	var matches []match

	for _, loc := range calcPattern.FindAllStringSubmatchIndex(content, -1) {
		rows, total := splitCalcEntries(content[loc[2]:loc[3]])
		matches = append(matches, match{
			start: loc[0], end: loc[1],
			seg: Segment{
				Kind:   KindCalc,
				Source: content[loc[0]:loc[1]],
				Rows:   rows,
				Total:  total,
			},
		})
	}
	for _, loc := range checklistPattern.FindAllStringSubmatchIndex(content, -1) {
		matches = append(matches, match{
			start: loc[0], end: loc[1],
			seg: Segment{
				Kind:   KindChecklist,
				Source: content[loc[0]:loc[1]],
				Items:  splitChecklistItems(content[loc[2]:loc[3]]),
			},
		})
	}
	for _, loc := range linkPattern.FindAllStringSubmatchIndex(content, -1) {
		matches = append(matches, match{
			start: loc[0], end: loc[1],
			seg: Segment{
				Kind:   KindLink,
				Source: content[loc[0]:loc[1]],
				Label:  content[loc[2]:loc[3]],
				Target: content[loc[4]:loc[5]],
			},
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	var segs []Segment
	var cursor int
	for _, m := range matches {
		if m.start < cursor { // overlap, first match by scan order wins
			continue
		}
		if m.start > cursor {
			segs = append(segs, textSegment(content[cursor:m.start]))
		}
		segs = append(segs, m.seg)
		cursor = m.end
	}
	if cursor < len(content) {
		segs = append(segs, textSegment(content[cursor:]))
	}

	if len(segs) == 0 {
		segs = append(segs, textSegment(content))
	}
	return segs
}

func textSegment(s string) Segment {
	return Segment{Kind: KindText, Source: s, Text: s}
}

// splitCalcEntries breaks the calc body on pipes and each entry on its FIRST
// colon. A label or value that itself contains a colon is not supported; the
// grammar has no escaping.
func splitCalcEntries(body string) (rows []Row, total Row) {
	items := strings.Split(body, "|")
	all := make([]Row, 0, len(items))
	for _, item := range items {
		label, value, _ := strings.Cut(item, ":")
		all = append(all, Row{
			Label: strings.TrimSpace(label),
			Value: strings.TrimSpace(value),
		})
	}
	// the last entry is always the grand total
	total = all[len(all)-1]
	rows = all[:len(all)-1]
	return
}

func splitChecklistItems(body string) []string {
	items := strings.Split(body, "|")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}
