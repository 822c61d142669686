package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".pptx":     true,
	".odt":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return forFile(filename, false)
}

func forFile(filename string, pdfFallback bool) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: pdfFallback}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".pptx":
		return &PPTXParser{}, nil
	case ".odt":
		return &ODTParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extractor turns uploaded files into plain text.
type Extractor struct {
	PDFFallback bool
	Log         *slog.Logger
}

// Parse parses data with the parser registered for filename.
func (e *Extractor) Parse(filename string, data []byte) (*doctree.DocTree, error) {
	p, err := forFile(filename, e.PDFFallback)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}
	tree.Source = filename
	return tree, nil
}

// ExtractText returns the plain text of an uploaded file. Unsupported or
// unreadable files yield "" so one bad file never aborts a batch.
func (e *Extractor) ExtractText(filename string, data []byte) string {
	tree, err := e.Parse(filename, data)
	if err != nil {
		if e.Log != nil {
			e.Log.Warn("text extraction failed", "filename", filename, "error", err)
		}
		return ""
	}
	return tree.Text()
}

func baseTitle(filename string, exts ...string) string {
	title := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(title), ext) {
			return title[:len(title)-len(ext)]
		}
	}
	return title
}
