package formatter

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/listsync/internal/shared"
)

// ManifestEntry records the outcome of exporting one list.
type ManifestEntry struct {
	ListID   string   `json:"list_id"`
	ListName string   `json:"list_name"`
	Items    int      `json:"items"`
	Success  bool     `json:"success"`
	Error    string   `json:"error,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	ExportedAt time.Time       `json:"exported_at"`
	Format     Format          `json:"format"`
	Directory  string          `json:"directory"`
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Lists      []ManifestEntry `json:"lists"`
}

// WriteManifest writes m as JSON to path, or as a Markdown table when the
// export format is Markdown.
func WriteManifest(m *Manifest, path string) error {
	var (
		data []byte
		err  error
	)
	if m.Format == FormatMarkdown {
		data = manifestMarkdown(m)
	} else if data, err = shared.MarshalJSON(m, true); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func manifestMarkdown(m *Manifest) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Export Manifest\n\n")
	buf.WriteString(fmt.Sprintf("**Exported**: %s\n", m.ExportedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("**Lists**: %d (%d ok, %d failed)\n\n", m.Total, m.Successful, m.Failed))
	buf.WriteString("| List | Items | Result |\n|---|---|---|\n")
	for _, e := range m.Lists {
		result := "ok"
		if !e.Success {
			result = "failed: " + e.Error
		}
		buf.WriteString(fmt.Sprintf("| %s | %d | %s |\n", e.ListName, e.Items, result))
	}
	return buf.Bytes()
}
