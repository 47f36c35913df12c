package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ternarybob/docket/internal/models"
)

const placeholder = "—"

// renderTable writes the collection in backend order (most-recent-first).
// Optional fields absent on non-terminal documents render as placeholders.
func renderTable(w io.Writer, docs []models.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tFILE\tTYPE\tUPLOADED\tPROCESSED")
	for _, doc := range docs {
		display := doc.Display()
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\t%s\t%s\n",
			doc.ID,
			display.Glyph,
			doc.Status,
			doc.Filename,
			orPlaceholder(doc.DocumentType),
			humanize.Time(doc.CreatedAt),
			formatProcessedAt(doc.ProcessedAt),
		)
	}
	tw.Flush()
}

// renderDocument writes one document with whatever detail is present
func renderDocument(w io.Writer, doc models.Document) {
	display := doc.Display()
	fmt.Fprintf(w, "%s %s (id %d) %s\n", display.Glyph, doc.Filename, doc.ID, doc.Status)
	if doc.DocumentType != "" {
		fmt.Fprintf(w, "  type: %s\n", doc.DocumentType)
	}
	if doc.ExtractedText != "" {
		fmt.Fprintf(w, "  text: %s\n", excerpt(doc.ExtractedText, 120))
	}
	if doc.ProcessedAt != nil {
		fmt.Fprintf(w, "  processed: %s\n", doc.ProcessedAt.Format(time.RFC3339))
	}
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func formatProcessedAt(t *time.Time) string {
	if t == nil {
		return placeholder
	}
	return humanize.Time(*t)
}

// excerpt collapses whitespace and truncates to max runes
func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
