package chunker

import "strings"

// Config controls chunking behavior. Sizes are measured in characters (runes).
type Config struct {
	MaxChars int // Maximum chunk length.
	Overlap  int // Characters shared by consecutive chunks.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChars: 800,
		Overlap:  100,
	}
}

// Step is the cursor advance between chunk starts. It never drops below 1,
// so an overlap >= MaxChars degrades to a one-character advance instead of
// looping forever.
func (c Config) Step() int {
	return max(1, c.MaxChars-c.Overlap)
}

// Chunk is one retrievable span of normalized document text.
type Chunk struct {
	Text   string // Chunk text content
	Index  int    // Position in the session's chunk sequence
	Source string // Filename of the document the text came from
}

// Document is the extracted text of one uploaded file.
type Document struct {
	Name string
	Text string
}

// Normalize collapses every whitespace run to a single space and trims both
// ends.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split normalizes text and cuts it into spans of at most maxChars runes,
// each starting Step() runes after the previous one. Splitting stops once a
// span reaches the end of the text. Empty or whitespace-only input, or a
// non-positive maxChars, yields no spans.
func Split(text string, maxChars, overlap int) []string {
	if maxChars <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	norm := Normalize(text)
	if norm == "" {
		return nil
	}

	runes := []rune(norm)
	if len(runes) <= maxChars {
		return []string{norm}
	}

	step := Config{MaxChars: maxChars, Overlap: overlap}.Step()
	var spans []string
	for start := 0; start < len(runes); start += step {
		end := min(start+maxChars, len(runes))
		spans = append(spans, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return spans
}

// ChunkDocuments splits each document on its own so no chunk straddles two
// files. Indexes run across the whole batch in input order; documents with
// no text contribute nothing.
func ChunkDocuments(docs []Document, cfg Config) []Chunk {
	if cfg.MaxChars <= 0 {
		cfg = DefaultConfig()
	}

	var chunks []Chunk
	for _, doc := range docs {
		for _, span := range Split(doc.Text, cfg.MaxChars, cfg.Overlap) {
			chunks = append(chunks, Chunk{
				Text:   span,
				Index:  len(chunks),
				Source: doc.Name,
			})
		}
	}
	return chunks
}

// Texts returns the chunk texts in index order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
