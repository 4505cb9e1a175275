package parse

import (
	"errors"
	"fmt"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// ErrNoPages is returned when a source yields no extractable pages.
var ErrNoPages = errors.New("no pages extracted")

// LoadPDF extracts each page of a PDF as a list of lines. Pages that fail to
// extract are kept as empty pages so page indices stay aligned with the file.
func LoadPDF(path string) ([][]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, ErrNoPages
	}

	pages := make([][]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, SplitLines(text))
	}
	return pages, nil
}

// LoadText reads a plain-text export where pages are separated by form feeds.
func LoadText(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text source: %w", err)
	}
	return SplitPages(string(data))
}

// SplitPages breaks form-feed separated text into pages of lines.
func SplitPages(text string) ([][]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoPages
	}
	raw := strings.Split(text, "\f")
	pages := make([][]string, 0, len(raw))
	for _, p := range raw {
		pages = append(pages, SplitLines(p))
	}
	return pages, nil
}

// SplitLines splits page text on newlines, tolerating CRLF.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// Load picks a loader by file extension.
func Load(path string) ([][]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return LoadPDF(path)
	}
	return LoadText(path)
}
