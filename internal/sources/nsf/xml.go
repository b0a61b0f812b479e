package nsf

import (
	"encoding/xml"
	"errors"
	"fedgrants-backend/internal/awardstore"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type node struct {
	XMLName xml.Name
	Content string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

func (n node) name() string {
	return strings.ToLower(n.XMLName.Local)
}

// flatten collects the leaf values below n, nested leaves get dotted keys.
func (n node) flatten(prefix string, out map[string]string) {
	for _, c := range n.Nodes {
		key := prefix + c.name()
		if len(c.Nodes) == 0 {
			if _, exists := out[key]; !exists {
				out[key] = strings.TrimSpace(c.Content)
			}
			continue
		}
		c.flatten(key+".", out)
	}
}

func (n node) record() awardstore.RawRecord {
	raw := awardstore.RawRecord{
		Fields:   map[string]string{},
		Children: map[string][]map[string]string{},
	}
	for _, c := range n.Nodes {
		name := c.name()
		if len(c.Nodes) == 0 {
			if _, exists := raw.Fields[name]; !exists {
				raw.Fields[name] = strings.TrimSpace(c.Content)
			}
			continue
		}
		sub := map[string]string{}
		c.flatten("", sub)
		raw.Children[name] = append(raw.Children[name], sub)
	}
	return raw
}

// DecodeAwards reads every <Award> element of an NSF XML document, either a search
// export holding many awards or a bulk file holding one.
func DecodeAwards(r io.Reader) ([]awardstore.RawRecord, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var records []awardstore.RawRecord
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decode awards: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "award") {
			continue
		}
		var award node
		err = decoder.DecodeElement(&award, &start)
		if err != nil {
			return records, fmt.Errorf("decode award %d: %w", len(records), err)
		}
		records = append(records, award.record())
	}
}
