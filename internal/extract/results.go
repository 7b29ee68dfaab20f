// Package extract turns registry markup into labels. Every function here is
// pure: no network, no logging.
package extract

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"ColaMonitor/internal/domain"
)

const (
	// NoRecordsMarker is printed by the registry in place of an empty table.
	NoRecordsMarker = "No records found"

	// MinRowCells is the fewest cells a result row needs to be mapped.
	// Shorter rows are layout variance and are skipped, not reported.
	MinRowCells = 10
)

// TTB ids are fixed-length 14 character tokens carried in the ttbid query parameter.
var ttbIDParam = regexp.MustCompile(`(?i)[?&]ttbid=([0-9A-Za-z]{14})(?:[^0-9A-Za-z]|$)`)

// TTBIDFromHref returns the identifier referenced by a result link.
func TTBIDFromHref(href string) (string, bool) {
	m := ttbIDParam.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

type resultRow struct {
	depth int
	ids   []string
	cells []string
	cell  *strings.Builder

	// id of the open anchor and the text read inside it so far
	link     string
	linkText strings.Builder
}

// closeLink keeps the open anchor's id when the anchor text is that id.
// Other links to the same record, such as the printable form, are ignored.
func (r *resultRow) closeLink() {
	if r.link == "" {
		return
	}
	id := r.link
	r.link = ""
	if strings.TrimSpace(r.linkText.String()) != id || slices.Contains(r.ids, id) {
		return
	}
	r.ids = append(r.ids, id)
}

func (r *resultRow) closeCell() {
	if r.cell == nil {
		return
	}
	r.cells = append(r.cells, cleanCell(r.cell.String()))
	r.cell = nil
}

// SearchResults walks the search-results document and returns one label per
// identifier link found inside a table row with at least MinRowCells cells.
// An identifier link is an anchor whose text is the ttbid of its href.
// Cell 0 holds the link and is discarded; cells 1-9 map positionally.
func SearchResults(markup string) []domain.Label {
	if strings.Contains(markup, NoRecordsMarker) {
		return nil
	}

	var (
		labels []domain.Label
		rows   []*resultRow
		depth  int
	)

	top := func() *resultRow {
		if len(rows) == 0 {
			return nil
		}
		return rows[len(rows)-1]
	}
	finish := func() {
		row := top()
		rows = rows[:len(rows)-1]
		row.closeLink()
		row.closeCell()
		labels = append(labels, rowLabels(row)...)
	}

	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer failure; either way the document is done
			break
		}

		tok := z.Token()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.Table:
				depth++
			case atom.Tr:
				// an unterminated row is closed by its sibling
				if row := top(); row != nil && row.depth == depth {
					finish()
				}
				rows = append(rows, &resultRow{depth: depth})
			case atom.Td:
				if row := top(); row != nil {
					row.closeCell()
					row.cell = &strings.Builder{}
				}
			case atom.A:
				row := top()
				if row == nil {
					continue
				}
				row.closeLink()
				for _, attr := range tok.Attr {
					if attr.Key != "href" {
						continue
					}
					if id, ok := TTBIDFromHref(attr.Val); ok {
						row.link = id
						row.linkText.Reset()
					}
				}
			}
		case html.EndTagToken:
			switch tok.DataAtom {
			case atom.A:
				if row := top(); row != nil {
					row.closeLink()
				}
			case atom.Td:
				if row := top(); row != nil {
					row.closeCell()
				}
			case atom.Tr:
				if row := top(); row != nil && row.depth == depth {
					finish()
				}
			case atom.Table:
				for row := top(); row != nil && row.depth == depth; row = top() {
					finish()
				}
				if depth > 0 {
					depth--
				}
			}
		case html.TextToken:
			row := top()
			if row == nil {
				continue
			}
			if row.cell != nil {
				row.cell.WriteString(tok.Data)
			}
			if row.link != "" {
				row.linkText.WriteString(tok.Data)
			}
		}
	}

	// rows still open at end of input never saw a row end and are dropped
	return labels
}

func rowLabels(row *resultRow) []domain.Label {
	if len(row.ids) == 0 || len(row.cells) < MinRowCells {
		return nil
	}
	c := row.cells
	out := make([]domain.Label, 0, len(row.ids))
	for _, id := range row.ids {
		out = append(out, domain.Label{
			TTBID:         id,
			PermitNo:      c[1],
			SerialNumber:  c[2],
			CompletedDate: c[3],
			FancifulName:  c[4],
			BrandName:     c[5],
			Origin:        c[6],
			OriginDesc:    c[7],
			ClassType:     c[8],
			ClassTypeDesc: c[9],
		})
	}
	return out
}

// cleanCell normalizes decoded cell text. The tokenizer has already decoded
// entities, so &amp; arrives as & and &nbsp; as U+00A0.
func cleanCell(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
