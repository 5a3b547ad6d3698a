// Package catalog loads the model catalog and decides which entries are
// eligible for the current host. The catalog is a comma-delimited file with
// columns category, model_name, min_memory, min_disk, description; comment
// lines starting with '#', blank lines, and a literal header row are ignored.
package catalog

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Entry is a single catalog record. Model is the unique key; MinMemory and
// MinDisk are size strings such as "8gb" or "1tb".
type Entry struct {
	Category    string
	Model       string
	MinMemory   string
	MinDisk     string
	Description string
}

// Load reads catalog entries from a file. Duplicate model names after the
// first occurrence are dropped.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open catalog %s", path)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse catalog %s", path)
	}
	return entries, nil
}

// Parse reads catalog entries from a reader, deduplicating by model name
// (first-seen wins).
func Parse(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []Entry
	seen := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "malformed catalog record")
		}

		// Hand-edited catalogs drop the trailing description now and then.
		if len(record) < 4 {
			continue
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}

		if strings.EqualFold(record[0], "category") {
			continue // header row
		}

		entry := Entry{
			Category:  record[0],
			Model:     record[1],
			MinMemory: record[2],
			MinDisk:   record[3],
		}
		if len(record) >= 5 {
			// Unquoted descriptions may themselves contain commas.
			entry.Description = strings.Join(record[4:], ", ")
		}

		if entry.Model == "" || seen[entry.Model] {
			continue
		}
		seen[entry.Model] = true
		entries = append(entries, entry)
	}

	return entries, nil
}
