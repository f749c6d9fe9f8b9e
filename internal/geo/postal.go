// Package geo resolves a US city/state pair to a representative postal
// code from a local embedded table. No network calls.
package geo

import (
	_ "embed"
	"encoding/csv"
	"strings"
	"sync"
)

//go:embed postal_codes.csv
var postalCSV string

var (
	loadOnce sync.Once
	table    map[string]string
)

// key builds the lookup key: lower-cased city + "|" + upper-cased state.
func key(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city)) + "|" + strings.ToUpper(strings.TrimSpace(state))
}

func load() {
	table = make(map[string]string)
	r := csv.NewReader(strings.NewReader(postalCSV))
	r.FieldsPerRecord = 3
	records, err := r.ReadAll()
	if err != nil {
		// Embedded data is validated by tests; an unreadable table just
		// disables local postal resolution.
		return
	}
	for _, rec := range records {
		table[key(rec[0], rec[1])] = rec[2]
	}
}

// Lookup returns the postal code for a city/state pair, if known.
func Lookup(city, state string) (string, bool) {
	loadOnce.Do(load)
	if city == "" || state == "" {
		return "", false
	}
	zip, ok := table[key(city, state)]
	return zip, ok
}
