package ana

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// row is one flat record of an ANA DataTable (a Table or SerieHistorica
// element). ANA emits every column as a child element.
type row map[string]string

type rawRow struct {
	Fields []rawField `xml:",any"`
}

type rawField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// decodeRows collects every element named rowName, wherever it is nested.
// An Error element inside the document is returned as a *ServiceError unless
// it only reports that no data was found.
func decodeRows(body []byte, operation, rowName string) ([]row, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var rows []row
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s response: %w", operation, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case rowName:
			var raw rawRow
			if err := dec.DecodeElement(&raw, &start); err != nil {
				return nil, fmt.Errorf("decode %s row: %w", operation, err)
			}
			r := make(row, len(raw.Fields))
			for _, f := range raw.Fields {
				r[f.XMLName.Local] = strings.TrimSpace(f.Value)
			}
			rows = append(rows, r)
		case "Error":
			var msg string
			if err := dec.DecodeElement(&msg, &start); err != nil {
				return nil, fmt.Errorf("decode %s error: %w", operation, err)
			}
			msg = strings.TrimSpace(msg)
			if msg == "" || isNoDataMessage(msg) {
				continue
			}
			return nil, &ServiceError{Operation: operation, Message: msg}
		}
	}
}

func isNoDataMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "encontrad") || strings.Contains(lower, "nenhum")
}

var anaTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseTime reads the timestamp formats ANA uses. Times are taken as UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range anaTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised ana timestamp %q", s)
}
