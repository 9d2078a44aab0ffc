package dex

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fusiondex/internal/fusion"
)

// panel holds what one fusion display contributes before stats are attached.
type panel struct {
	name      string
	types     []string
	spriteURL string
}

// ParsePage extracts both directional records for pair from a detail page.
// pair is normalized before use; pageURL resolves relative sprite links and is
// recorded as the source URL.
func ParsePage(r io.Reader, pair fusion.Pair, pageURL string) (map[fusion.Key]fusion.Record, error) {
	pair = pair.Normalized()
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrStructure, err)
	}
	titler := cases.Title(language.English)

	displays := doc.Find("#details-stack .fusionDisplay")
	if displays.Length() < 2 {
		return nil, fmt.Errorf("%w: found %d fusion panels, need 2", ErrStructure, displays.Length())
	}
	panels := [2]panel{
		parsePanel(displays.Eq(0), pageURL, titler),
		parsePanel(displays.Eq(1), pageURL, titler),
	}

	stats, err := parseStats(doc)
	if err != nil {
		return nil, err
	}
	weaknesses := parseWeaknesses(doc, titler)

	directions := [2]fusion.Pair{pair, pair.Reverse()}
	out := make(map[fusion.Key]fusion.Record, 2)
	for i, p := range panels {
		if p.name == "" {
			return nil, fmt.Errorf("%w: %s: fusion panel has no name", ErrStructure, directions[i])
		}
		st, err := fusion.StatsFromMap(stats[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIncompleteStats, directions[i], err)
		}
		out[directions[i].Key()] = fusion.Record{
			Pair:       directions[i],
			Name:       p.name,
			Types:      p.types,
			Stats:      &st,
			Weaknesses: weaknesses[i],
			SpriteURL:  p.spriteURL,
			SourceURL:  pageURL,
		}
	}
	return out, nil
}

func parsePanel(sel *goquery.Selection, pageURL string, titler cases.Caser) panel {
	var p panel
	p.name = strings.ReplaceAll(strings.TrimSpace(sel.Find("span.px-0").First().Text()), "/wbr>", "/")
	var types []string
	sel.Find("img.elemental-type").Each(func(_ int, img *goquery.Selection) {
		if alt, ok := img.Attr("alt"); ok {
			types = append(types, alt)
		}
	})
	p.types = normalizeTypes(fusion.CleanTypes(types), titler)
	if src, ok := sel.Find("img.sprite").First().Attr("src"); ok {
		p.spriteURL = resolveURL(pageURL, strings.TrimSpace(src))
	}
	return p
}

// nextBody returns the first .accordion-body following the first element
// matched by header in document order.
func nextBody(doc *goquery.Document, header string, match func(*goquery.Selection) bool) *goquery.Selection {
	found := false
	var body *goquery.Selection
	doc.Find(header + ", div.accordion-body").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !found {
			if goquery.NodeName(sel) != "div" && match(sel) {
				found = true
			}
			return true
		}
		if sel.HasClass("accordion-body") {
			body = sel
			return false
		}
		return true
	})
	return body
}

// parseStats returns the stat values of both panels keyed by canonical name.
func parseStats(doc *goquery.Document) ([2]map[string]int, error) {
	out := [2]map[string]int{{}, {}}
	body := nextBody(doc, "h2.accordion-header", func(sel *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(sel.Text()), "Stats")
	})
	if body == nil {
		return out, fmt.Errorf("%w: stats section not found", ErrStructure)
	}

	body.Find(".g-1").Each(func(_ int, row *goquery.Selection) {
		label := row.Find(".subheader").First()
		if label.Length() == 0 {
			return
		}
		name := statLabel(label.Text())
		var values []int
		row.ChildrenFiltered("div").Each(func(_ int, col *goquery.Selection) {
			section := col.Find(".section").First()
			if section.Length() == 0 {
				return
			}
			text, _, _ := strings.Cut(strings.TrimSpace(section.Text()), "(")
			text = strings.TrimSpace(text)
			if text == "X" {
				return
			}
			if v, err := strconv.Atoi(text); err == nil {
				values = append(values, v)
			}
		})
		if len(values) >= 2 {
			out[0][name] = values[0]
			out[1][name] = values[1]
		}
	})
	return out, nil
}

// statLabel maps a grid label to its canonical stat name. The substring
// checks run in a fixed order because "SPEED" must win over "SPD".
func statLabel(raw string) string {
	label := strings.ToUpper(strings.Join(strings.Fields(raw), ""))
	switch {
	case strings.Contains(label, "SPEED"):
		return fusion.StatSpeed
	case strings.Contains(label, "SP.ATK"), strings.Contains(label, "SPA"):
		return fusion.StatSpAtk
	case strings.Contains(label, "SP.DEF"), strings.Contains(label, "SPD"):
		return fusion.StatSpDef
	case strings.Contains(label, "TOTAL"), strings.Contains(label, "TOT"):
		return fusion.StatTotal
	}
	if name, ok := fusion.CanonicalStatName(label); ok {
		return name
	}
	return label
}

// parseWeaknesses walks the weakness chart as [label, panel 1, panel 2]
// column groups. A missing chart yields empty weaknesses, not an error.
func parseWeaknesses(doc *goquery.Document, titler cases.Caser) [2]fusion.Weaknesses {
	out := [2]fusion.Weaknesses{{}, {}}
	body := nextBody(doc, "button.accordion-button", func(sel *goquery.Selection) bool {
		return strings.Contains(sel.Text(), "Weaknesses")
	})
	if body == nil {
		return out
	}
	row := body.Find(".row").First()
	if row.Length() == 0 {
		return out
	}

	cols := row.ChildrenFiltered("div")
	n := cols.Length()
	for i := 0; i < n; {
		label, ok := bucketLabel(cols.Eq(i))
		i++
		if !ok {
			continue
		}
		for side := 0; side < 2 && i < n; side++ {
			if types := sectionTypes(cols.Eq(i), titler); len(types) > 0 {
				out[side][label] = append(out[side][label], types...)
			}
			i++
		}
		if i < n {
			if next, ok := bucketLabel(cols.Eq(i)); ok && next == label {
				i++
			}
		}
	}
	return out
}

func bucketLabel(col *goquery.Selection) (string, bool) {
	sub := col.Find(".subheader").First()
	if sub.Length() == 0 {
		return "", false
	}
	label := strings.Join(strings.Fields(sub.Text()), "")
	label = strings.ToLower(strings.ReplaceAll(label, "×", "x"))
	return label, true
}

func sectionTypes(col *goquery.Selection, titler cases.Caser) []string {
	var types []string
	col.Find(".section").First().Find("img.elemental-type").Each(func(_ int, img *goquery.Selection) {
		if alt, ok := img.Attr("alt"); ok && alt != "-" {
			types = append(types, alt)
		}
	})
	return normalizeTypes(types, titler)
}

func normalizeTypes(types []string, titler cases.Caser) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, titler.String(strings.ToLower(t)))
	}
	return out
}

func resolveURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil || baseURL.Scheme == "" {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
