// Package splitter cuts document text into overlapping fixed-size chunks.
package splitter

// Splitter produces overlapping rune windows over a document's text. The
// final chunk may be shorter than the nominal size; the overlap carries the
// tail of each chunk into the next so boundaries are not silently lost.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a splitter. Invalid values fall back to the service defaults
// (500-rune chunks with a 100-rune overlap).
func New(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split returns the ordered chunk texts for a document. Deterministic for the
// same input and configuration. An empty document yields no chunks.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := s.chunkSize - s.overlap
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
