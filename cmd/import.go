package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/model"
)

// loadLeadsCSV reads leads from a CSV file. The first row is a header;
// recognized columns (case-insensitive): id, first_name, last_name, name,
// city, state, phone, email. Missing id columns get a positional id.
func loadLeadsCSV(path string) ([]model.LeadRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open leads file %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var leads []model.LeadRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "read csv line %d", line)
		}

		lead := model.LeadRecord{
			ID:        field(row, "id"),
			FirstName: field(row, "first_name"),
			LastName:  field(row, "last_name"),
			RawName:   field(row, "name"),
			City:      field(row, "city"),
			State:     field(row, "state"),
			Phone:     field(row, "phone"),
			Email:     field(row, "email"),
		}
		if lead.ID == "" {
			lead.ID = "lead-" + strconv.Itoa(line-1)
		}
		if lead.FullName() == "" && lead.Phone == "" && lead.Email == "" {
			continue // nothing to enrich on
		}
		leads = append(leads, lead)
	}

	return leads, nil
}
