package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div>
			<a href="/Detail/AwardDetail?arg_AwardNum=R01AI1&arg_ProgOfficeCode=1">  Award
				R01AI1 </a>
			<a href="https://example.org/other">Other</a>
		</div>
	`))
	require.NoError(t, err)

	base, err := url.Parse("https://taggs.example.gov/SearchAdv")
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), doc.Find("a"), base)
	require.Equal(t, []Anchor{
		{Name: "Award R01AI1", Href: "https://taggs.example.gov/Detail/AwardDetail?arg_AwardNum=R01AI1&arg_ProgOfficeCode=1"},
		{Name: "Other", Href: "https://example.org/other"},
	}, anchors)
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b c", CleanText("\n  a \t b\u0007\n\nc  "))
}

func TestGetText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div id="abstract">Flood <b>models</b><script>var x = 1;</script><style>p {}</style> for coasts</div>
		<a>no href</a>
	`))
	require.NoError(t, err)
	require.Equal(t, "Flood models for coasts", CleanText(GetText(doc.Find("#abstract").Get(0))))
	require.Empty(t, GetText(nil))
	require.Empty(t, GetAnchors(context.Background(), doc.Find("a"), nil))
}
