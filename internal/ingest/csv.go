package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	apperrors "pricinglab/internal/errors"
)

// candidate delimiters, in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

const sniffLines = 10

// decodeText honours a UTF-8 or UTF-16 byte order mark and falls back to
// Windows-1252 (a Latin-1 superset) when the bytes are not valid UTF-8.
func decodeText(data []byte) ([]byte, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(decoded) {
		return decoded, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(decoded)
}

// sniffDelimiter picks the candidate that splits the leading lines into the
// most consistent, widest rows.
func sniffDelimiter(text string) rune {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sniffLines {
			break
		}
	}

	head := ""
	if len(lines) > 0 {
		head = lines[0]
	}

	best, bestScore := ',', 0
	for _, d := range delimiters {
		first := strings.Count(head, string(d))
		if first == 0 {
			continue
		}
		consistent := 0
		for _, line := range lines {
			if strings.Count(line, string(d)) == first {
				consistent++
			}
		}
		score := consistent*100 + first
		if score > bestScore {
			best, bestScore = d, score
		}
	}
	return best
}

func readCSV(data []byte) ([][]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to decode CSV text", err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(string(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("malformed CSV", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
