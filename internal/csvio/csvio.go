// Package csvio converts clients to and from the CSV layout used for export and import.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/celerix-dev/celerix-crm/pkg/schema"
)

// SkippedRow identifies an import row left out for lacking a required field.
type SkippedRow struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
}

// Result is the outcome of an import: the usable rows and the skipped ones.
type Result struct {
	Clients []schema.ClientFields
	Skipped []SkippedRow
}

// Header is the column layout of an export.
var Header = []string{"Name", "Company", "Email", "Phone", "Address", "Notes", "Tags", "Created At"}

const (
	tagSeparator = ", "
	dateLayout   = "2006-01-02"
)

// Export writes clients with a header row.
func Export(w io.Writer, clients []schema.Client) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, c := range clients {
		row := []string{
			c.Name,
			c.Company,
			c.Email,
			c.Phone,
			c.Address,
			c.Notes,
			strings.Join(c.Tags, tagSeparator),
			c.CreatedAt.Format(dateLayout),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Import reads rows keyed by the header names of an export.
// Unknown columns are ignored, blank rows dropped, and "Created At" is not
// imported: the store stamps new records itself. Rows missing a name or an
// email are skipped and reported; the remaining rows are still returned.
// Only malformed CSV is an error.
func Import(r io.Reader) (Result, error) {
	res := Result{Clients: []schema.ClientFields{}, Skipped: []SkippedRow{}}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(row) {
			continue
		}

		f := schema.ClientFields{
			Name:    get(row, "Name"),
			Company: get(row, "Company"),
			Email:   get(row, "Email"),
			Phone:   get(row, "Phone"),
			Address: get(row, "Address"),
			Notes:   get(row, "Notes"),
			Tags:    splitTags(get(row, "Tags")),
		}
		switch {
		case f.Name == "":
			res.Skipped = append(res.Skipped, SkippedRow{Line: line, Field: "Name"})
		case f.Email == "":
			res.Skipped = append(res.Skipped, SkippedRow{Line: line, Field: "Email"})
		default:
			res.Clients = append(res.Clients, f)
		}
	}
	return res, nil
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, tagSeparator) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
