package importing

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// toyHeaderPattern identifies the versions table: the one whose header row
// carries a toy number column
var toyHeaderPattern = regexp.MustCompile(`(?i)toy\s*#|toy\s*no\.?|model\s*#|sku`)

// parseVersionsTable extracts variant rows from a casting page's versions
// table. Column meanings are resolved from the header row, since the wiki's
// table layouts drift between pages.
func parseVersionsTable(html string) ([]Version, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if toyHeaderPattern.MatchString(t.Find("tr").Text()) {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, nil
	}

	rows := table.Find("tr")
	headerIdx := -1
	columns := map[string]int{}
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if !toyHeaderPattern.MatchString(row.Text()) {
			return true
		}
		headerIdx = i
		row.Find("th, td").Each(func(j int, cell *goquery.Selection) {
			assignColumn(columns, cellText(cell), j)
		})
		return false
	})
	if headerIdx < 0 {
		return nil, nil
	}

	var versions []Version
	rows.Each(func(i int, row *goquery.Selection) {
		if i <= headerIdx {
			return
		}
		cells := row.Find("th, td")
		get := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= cells.Length() {
				return ""
			}
			return cellText(cells.Eq(idx))
		}

		version := Version{
			ToyNumber: get("toy"),
			Year:      get("year"),
			Series:    get("series"),
			Color:     get("color"),
			Collector: get("col"),
			Tampo:     get("tampo"),
			Notes:     get("notes"),
		}
		if version.ToyNumber == "" {
			return
		}
		versions = append(versions, version)
	})

	return versions, nil
}

// assignColumn maps a header cell to a column role. More specific headers
// are checked first so "base color" does not land on the color column.
func assignColumn(columns map[string]int, header string, idx int) {
	h := strings.ToLower(header)
	h = strings.Join(strings.Fields(h), " ")

	set := func(name string) {
		if _, exists := columns[name]; !exists {
			columns[name] = idx
		}
	}

	switch {
	case strings.Contains(h, "interior"), strings.Contains(h, "window"):
		// no role; tracked only so they never shadow the color column
	case strings.Contains(h, "base"):
	case strings.Contains(h, "collector"), strings.Contains(h, "col") && strings.Contains(h, "#"):
		set("col")
	case strings.Contains(h, "notes"):
		set("notes")
	case strings.Contains(h, "toy"), strings.Contains(h, "sku"), strings.Contains(h, "#"):
		set("toy")
	case strings.Contains(h, "year"):
		set("year")
	case strings.Contains(h, "series"):
		set("series")
	case strings.Contains(h, "color"):
		set("color")
	case strings.Contains(h, "tampo"):
		set("tampo")
	}
}

// cellText flattens a table cell to text, treating line breaks as spaces
func cellText(cell *goquery.Selection) string {
	cell.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml(" ")
	})
	text := strings.ReplaceAll(cell.Text(), " ", " ")
	return strings.Join(strings.Fields(text), " ")
}
