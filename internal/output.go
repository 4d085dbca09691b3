package internal

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aquasecurity/table"
	"github.com/spf13/afero"
)

// Used for file system mocking with the Afero library. Set:
// OutputFS = afero.NewOsFs() if not unit testing (code will use real file system) OR
// OutputFS = afero.NewMemMapFs() for a mocked file system (when unit testing)
var OutputFS = afero.NewOsFs()

// TableFile is one renderable table: a name, a header, and rows.
type TableFile struct {
	Name   string
	Header []string
	Body   [][]string
}

// TableClient renders tables to the terminal and to files.
type TableClient struct {
	Wrap     bool
	RowLimit int // 0 means unlimited
}

var ansiColorCodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripColorCodes(row []string) []string {
	clean := make([]string, len(row))
	for i, cell := range row {
		clean[i] = ansiColorCodes.ReplaceAllString(cell, "")
	}
	return clean
}

// PrintTablesToScreen renders each table on stdout with unicode dividers.
// When RowLimit is set, only the first RowLimit rows are shown and a
// truncation notice follows the table.
func (c *TableClient) PrintTablesToScreen(tableFiles []TableFile) {
	for _, tf := range tableFiles {
		body := tf.Body
		truncated := 0
		if c.RowLimit > 0 && len(body) > c.RowLimit {
			truncated = len(body) - c.RowLimit
			body = body[:c.RowLimit]
		}

		t := table.New(os.Stdout)
		if !c.Wrap {
			t.SetColumnMaxWidth(1000)
		}
		t.SetHeaders(tf.Header...)
		t.AddRows(body...)
		t.SetHeaderStyle(table.StyleBold)
		t.SetRowLines(false)
		t.SetLineStyle(table.StyleCyan)
		t.SetDividers(table.UnicodeRoundedDividers)
		t.SetAlignment(table.AlignLeft)
		t.Render()

		if truncated > 0 {
			fmt.Printf("... %d more row(s) hidden, use --limit 0 to show all\n", truncated)
		}
	}
}

// WriteCSVFile writes a table as CSV, creating parent directories as needed.
func WriteCSVFile(path string, tf TableFile) error {
	if err := OutputFS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := OutputFS.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tf.Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range tf.Body {
		if err := w.Write(stripColorCodes(row)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteJSONFile marshals data with indentation and writes it to path.
func WriteJSONFile(path string, data interface{}) error {
	if err := OutputFS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return afero.WriteFile(OutputFS, path, append(encoded, '\n'), 0o644)
}

// PrintJSON writes data to stdout as indented JSON.
func PrintJSON(data interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// SanitizeFileName replaces path-hostile characters so a table name can be
// used as a file name.
func SanitizeFileName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "-")
	return replacer.Replace(name)
}
