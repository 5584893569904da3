package stocksplit

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// ParseLocationRows reads the raw stock-location feed (tab-separated,
// matnr/location_id/stock, header row first) into LocationRow values for
// IngestLocations. Rows with an unparsable stock quantity are skipped.
func ParseLocationRows(raw []byte) []LocationRow {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var rows []LocationRow
	first := true
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if first {
			first = false
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		stock, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			continue
		}
		rows = append(rows, LocationRow{Matnr: fields[0], LocationID: fields[1], Stock: stock})
	}
	return rows
}
