// package formatter renders grocery lists as CSV, Markdown, plain text or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/listsync/internal/models"
	"github.com/desertthunder/listsync/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias ("text", "md").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "txt", "text":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// Render converts export to the given format.
func Render(export *models.ListExport, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatJSON:
		return shared.MarshalJSON(export, true)
	default:
		return ExportToText(export)
	}
}

func quantity(it models.ListItem) string {
	q := strconv.FormatFloat(it.Quantity, 'f', -1, 64)
	if it.Unit != "" {
		return q + " " + it.Unit
	}
	return q
}

// ExportToCSV converts a ListExport to CSV format with columns: ID, Name, Quantity, Unit, Status, Notes
func ExportToCSV(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Quantity", "Unit", "Status", "Notes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range export.Items {
		record := []string{
			item.Key(),
			item.Name,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			item.Unit,
			string(item.Status),
			item.Notes,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a ListExport to a Markdown checklist.
// Handled items (done, unavailable, substituted) are checked.
func ExportToMarkdown(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer
	p := models.ProgressOf(export.Items)

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.List.Name))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", export.List.Status))
	buf.WriteString(fmt.Sprintf("**Items**: %d\n", p.Total))
	buf.WriteString(fmt.Sprintf("**Progress**: %s\n", FormatProgress(p)))
	if export.Share != nil && export.Share.ShopkeeperName != "" {
		buf.WriteString(fmt.Sprintf("**Shopkeeper**: %s (%s)\n", export.Share.ShopkeeperName, export.Share.Status))
	}

	buf.WriteString("\n## Items\n\n")
	for _, item := range export.Items {
		box := " "
		if handled(item.Status) {
			box = "x"
		}
		line := fmt.Sprintf("- [%s] %s × %s _%s_", box, quantity(item), item.Name, item.Status.Label())
		if item.Notes != "" {
			line += ": " + item.Notes
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a ListExport to plain text format
func ExportToText(export *models.ListExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("List: %s (%s)\n", export.List.Name, export.List.Status))
	if export.Share != nil && export.Share.ShopkeeperName != "" {
		buf.WriteString(fmt.Sprintf("Shopkeeper: %s\n", export.Share.ShopkeeperName))
	}
	buf.WriteString(fmt.Sprintf("Progress: %s\n\n", FormatProgress(models.ProgressOf(export.Items))))

	for i, item := range export.Items {
		buf.WriteString(fmt.Sprintf("%d. [%s] %s × %s", i+1, item.Status.Label(), quantity(item), item.Name))
		if item.Notes != "" {
			buf.WriteString(" (" + item.Notes + ")")
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of list metadata (without items)
func ToMetadataJSON(list models.GroceryList) ([]byte, error) {
	list.Items = nil
	return shared.MarshalJSON(list, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ItemsFile    string
	MetadataFile string
}

// WriteCSVExport exports a list to CSV format with accompanying metadata JSON file.
//
// Defaults to the list key as the base filename & creates {base}_items.csv and {base}_metadata.json
func WriteCSVExport(export *models.ListExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.List.Key()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	itemsFile := baseFilepath + "_items.csv"
	if err := os.WriteFile(itemsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export.List)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{ItemsFile: itemsFile, MetadataFile: metadataFile}, nil
}

// WriteMarkdownExport writes {outputDir}/README.md. Directory name defaults to the list key.
func WriteMarkdownExport(export *models.ListExport, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = export.List.Key()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return mdFile, nil
}

// WriteTextExport exports a list to plain text format.
//
// Defaults to {list key}_items.txt as the filename.
func WriteTextExport(export *models.ListExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_items.txt", export.List.Key())
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteJSONExport writes the whole export as indented JSON.
func WriteJSONExport(export *models.ListExport, path string) (string, error) {
	if path == "" {
		path = export.List.Key() + ".json"
	}
	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return path, nil
}

// WriteExport writes export into dir using f and returns the created files.
func WriteExport(export *models.ListExport, f Format, dir string) ([]string, error) {
	base := filepath.Join(dir, export.List.Key())
	switch f {
	case FormatCSV:
		res, err := WriteCSVExport(export, base)
		if err != nil {
			return nil, err
		}
		return []string{res.ItemsFile, res.MetadataFile}, nil
	case FormatMarkdown:
		file, err := WriteMarkdownExport(export, base)
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	case FormatText:
		file, err := WriteTextExport(export, base+"_items.txt")
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	default:
		file, err := WriteJSONExport(export, base+".json")
		if err != nil {
			return nil, err
		}
		return []string{file}, nil
	}
}
