package taggs

import (
	"context"
	"fedgrants-backend/lib/htmlutil"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	awardLinkSelector = `a.dxeHyperlink_newTAGGSTheme[href^="/Detail/AwardDetail"]`
	abstractSelector  = "div#AbstractRoundPanel_CRC"
	abstractPrefix    = "DESCRIPTION (provided by applicant):"
	distinctLabel     = "Distinct Award Count:"
)

// detail links look like /Detail/AwardDetail?arg_AwardNum=B01DP009001&arg_ProgOfficeCode=120
var awardNumRegex = regexp.MustCompile(`arg_AwardNum=([A-Z0-9]+)&arg`)

// ParseAwardLinks maps award numbers to the detail page links of a search result
// page. Renewals share a detail page with their original award, so duplicates
// collapse into one entry.
func ParseAwardLinks(ctx context.Context, doc *goquery.Document, base *url.URL) (links map[string]string, unparsed []string) {
	links = map[string]string{}
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find(awardLinkSelector), base) {
		groups := awardNumRegex.FindStringSubmatch(anchor.Href)
		if len(groups) < 2 {
			unparsed = append(unparsed, anchor.Href)
			continue
		}
		links[groups[1]] = anchor.Href
	}
	return links, unparsed
}

// ParseAbstract returns the abstract of an award detail page, ok is false when
// the page has no abstract panel.
func ParseAbstract(doc *goquery.Document) (abstract string, ok bool) {
	panel := doc.Find(abstractSelector).First()
	if panel.Length() == 0 {
		return "", false
	}
	text := htmlutil.CleanText(panel.Text())
	text = strings.TrimSpace(strings.Replace(text, abstractPrefix, "", 1))
	return text, true
}

// ParseDistinctCount reads the distinct award count from the summary of a search
// result page.
func ParseDistinctCount(doc *goquery.Document) (int, bool) {
	label := doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0 && htmlutil.CleanText(s.Text()) == distinctLabel
	}).First()
	if label.Length() == 0 {
		return 0, false
	}
	value := strings.ReplaceAll(htmlutil.CleanText(label.Next().Text()), ",", "")
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return count, true
}
