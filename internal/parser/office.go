package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

const (
	nsDrawingML = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsODFText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
)

// maxPartSize bounds a single decompressed archive member.
const maxPartSize = 64 << 20

func openArchive(r io.Reader) (*zip.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return zr, nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("archive member %s too large", f.Name)
	}
	return data, nil
}

// PPTXParser handles PowerPoint decks. Each slide becomes a node.
type PPTXParser struct{}

func (p *PPTXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	zr, err := openArchive(r)
	if err != nil {
		return nil, fmt.Errorf("parse pptx: %w", err)
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(name, "slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	tree := &doctree.DocTree{Title: baseTitle(filename, ".pptx")}
	for _, s := range slides {
		data, err := readPart(s.file)
		if err != nil {
			return nil, fmt.Errorf("read slide %d: %w", s.num, err)
		}
		text, err := slideText(data)
		if err != nil {
			return nil, fmt.Errorf("parse slide %d: %w", s.num, err)
		}
		if text == "" {
			continue
		}
		tree.Children = append(tree.Children, &doctree.DocNode{Text: text, Page: s.num})
	}
	return tree, nil
}

// slideText collects <a:t> runs, one line per <a:p> paragraph.
func slideText(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var lines []string
	var para strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsDrawingML && t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Space != nsDrawingML {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(para.String()); s != "" {
					lines = append(lines, s)
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ODTParser handles OpenDocument text files.
type ODTParser struct{}

func (p *ODTParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	zr, err := openArchive(r)
	if err != nil {
		return nil, fmt.Errorf("parse odt: %w", err)
	}

	var content *zip.File
	for _, f := range zr.File {
		if f.Name == "content.xml" {
			content = f
			break
		}
	}
	if content == nil {
		return nil, fmt.Errorf("parse odt: content.xml not found")
	}
	data, err := readPart(content)
	if err != nil {
		return nil, fmt.Errorf("read content.xml: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename, ".odt")}
	b := newSectionBuilder(tree.Title)

	dec := xml.NewDecoder(bytes.NewReader(data))
	var block strings.Builder
	depth := 0 // nesting of open text:p / text:h elements
	headingLevel := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse content.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsODFText {
				continue
			}
			switch t.Name.Local {
			case "p", "h":
				if depth == 0 {
					block.Reset()
					headingLevel = 0
					if t.Name.Local == "h" {
						headingLevel = odtOutlineLevel(t)
					}
				}
				depth++
			case "s":
				block.WriteByte(' ')
			case "tab":
				block.WriteByte('\t')
			case "line-break":
				block.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Space != nsODFText || (t.Name.Local != "p" && t.Name.Local != "h") {
				continue
			}
			depth--
			if depth > 0 {
				continue
			}
			text := strings.TrimSpace(block.String())
			if text == "" {
				continue
			}
			if headingLevel > 0 {
				b.heading(headingLevel, text)
			} else {
				b.paragraph(text)
			}
		case xml.CharData:
			if depth > 0 {
				block.Write(t)
			}
		}
	}
	b.finish(tree)

	return tree, nil
}

func odtOutlineLevel(el xml.StartElement) int {
	for _, a := range el.Attr {
		if a.Name.Space == nsODFText && a.Name.Local == "outline-level" {
			if n, err := strconv.Atoi(a.Value); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}
