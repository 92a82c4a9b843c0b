package ingest

import (
	"strings"
)

// Default chunking parameters. Small chunks keep retrieved context
// concise enough for spoken replies.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Splitter breaks text into overlapping chunks, preferring to cut at
// paragraph, line, and sentence boundaries before falling back to word
// and character cuts.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int

	separators []string
}

// NewSplitter creates a splitter with the given chunk size and overlap.
// Non-positive values fall back to the defaults.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	return &Splitter{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		separators:   []string{"\n\n", "\n", ". ", " ", ""},
	}
}

// Split breaks text into chunks. Whitespace-only input yields nothing.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// split recursively divides text at the coarsest separator present,
// re-splitting any piece still larger than the chunk size with the
// finer separators that remain.
func (s *Splitter) split(text string, seps []string) []string {
	sep := ""
	var rest []string
	for i, cand := range seps {
		if cand == "" {
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	pieces := strings.SplitAfter(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if len(piece) <= s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		chunks = append(chunks, s.merge(pending)...)
		pending = nil
		chunks = append(chunks, s.split(piece, rest)...)
	}
	return append(chunks, s.merge(pending)...)
}

// merge packs adjacent pieces into chunks up to the chunk size,
// carrying a tail of up to ChunkOverlap bytes into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	flush := func() {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		if total+len(piece) > s.ChunkSize && total > 0 {
			flush()
			for total > s.ChunkOverlap && len(current) > 0 {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}
	flush()
	return chunks
}

// hardCut slices text at character boundaries when no separator fits.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
