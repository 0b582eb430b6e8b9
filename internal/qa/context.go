package qa

import (
	"strings"

	"github.com/repobrief/repobrief/pkg/models"
)

// emptyContext is handed to the model when no files were selected, so the
// prompt's context section is never blank.
const emptyContext = "No specific code context available for this project."

// BuildContext renders the selected files, highest score first, into the
// text block handed to the generation backend. Individual files are not
// truncated here; the backend's own input limit is the ceiling.
func BuildContext(files []models.FileRecord) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString("File: ")
		b.WriteString(f.FileName)
		b.WriteString("\nSummary: ")
		b.WriteString(f.Summary)
		b.WriteString("\nSource Code:\n")
		b.WriteString(f.SourceCode)
		b.WriteString("\n---\n")
	}
	if b.Len() == 0 {
		return emptyContext
	}
	return b.String()
}
