package scraper

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/danpilch/tripdesk/internal/catalog"
)

// Keywords matched against class, id and test attributes, per listing kind.
var Keywords = map[catalog.Kind][]string{
	catalog.KindTrain:    {"train", "result", "service", "journey", "trip"},
	catalog.KindBus:      {"bus", "result", "service", "journey", "trip", "operator"},
	catalog.KindActivity: {"activity", "result", "tour", "experience", "card"},
}

// Strategy finds candidate containers in a parsed listing page.
type Strategy struct {
	Name string
	Find func(doc *goquery.Document, keywords []string, scanLimit int) []*html.Node
}

// Strategies are tried in order until one yields a candidate. Table rows are
// added to whatever the winning strategy returns.
var Strategies = []Strategy{
	{Name: "structural", Find: Structural},
	{Name: "attribute", Find: Attribute},
	{Name: "content", Find: Content},
}

var testAttributes = []string{"data-test", "data-testid", "data-qa", "data-automation", "data-cy"}

func containsKeyword(value string, keywords []string) bool {
	value = strings.ToLower(value)
	for _, kw := range keywords {
		if strings.Contains(value, kw) {
			return true
		}
	}
	return false
}

// Structural matches containers whose class or id contains a keyword.
func Structural(doc *goquery.Document, keywords []string, _ int) []*html.Node {
	return doc.Find("div, li, article, section, tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return containsKeyword(class, keywords) || containsKeyword(id, keywords)
	}).Nodes
}

// Attribute matches elements whose test or automation attributes contain a keyword.
func Attribute(doc *goquery.Document, keywords []string, _ int) []*html.Node {
	return doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		for _, attr := range s.Nodes[0].Attr {
			for _, name := range testAttributes {
				if attr.Key == name && containsKeyword(attr.Val, keywords) {
					return true
				}
			}
		}
		return false
	}).Nodes
}

// Content scans at most scanLimit generic containers and keeps those whose
// text holds both a time of day and a currency amount.
func Content(doc *goquery.Document, _ []string, scanLimit int) []*html.Node {
	var out []*html.Node
	doc.Find("div, li, article, section").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= scanLimit {
			return false
		}
		text := VisibleText(s.Nodes[0])
		if timePattern.MatchString(text) && pricePattern.MatchString(text) {
			out = append(out, s.Nodes[0])
		}
		return true
	})
	return out
}

// Rows returns every table row.
func Rows(doc *goquery.Document) []*html.Node {
	return doc.Find("tr").Nodes
}

// Candidates runs the strategy chain and merges in table rows. The result is
// deduplicated and sorted in document order.
func Candidates(doc *goquery.Document, keywords []string, scanLimit int) (string, []*html.Node) {
	var (
		used  string
		nodes []*html.Node
	)
	for _, st := range Strategies {
		if found := st.Find(doc, keywords, scanLimit); len(found) > 0 {
			used = st.Name
			nodes = found
			break
		}
	}
	rows := Rows(doc)
	if used == "" && len(rows) > 0 {
		used = "rows"
	}
	nodes = append(nodes, rows...)

	order := documentOrder(doc)
	seen := make(map[*html.Node]bool, len(nodes))
	unique := nodes[:0]
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			unique = append(unique, n)
		}
	}
	sort.SliceStable(unique, func(i, j int) bool { return order[unique[i]] < order[unique[j]] })
	return used, unique
}

func documentOrder(doc *goquery.Document) map[*html.Node]int {
	order := make(map[*html.Node]int)
	i := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		order[n] = i
		i++
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range doc.Nodes {
		walk(root)
	}
	return order
}

// VisibleText flattens the text under n, skipping script and style content,
// with text nodes joined by " | ".
func VisibleText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " | ")
}

func isAncestor(a, b *html.Node) bool {
	for p := b.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}
