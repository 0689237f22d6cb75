package docindex

import "strings"

const (
	// ChunkSize is the sliding window width in characters.
	ChunkSize = 500

	// ChunkOverlap carries the tail of each chunk into the next so that
	// sentences spanning a boundary stay searchable.
	ChunkOverlap = 50

	// minChunkLength drops trailing fragments too short to embed usefully.
	minChunkLength = 100
)

// ChunkText splits text into overlapping fixed-width chunks.
func ChunkText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = ChunkOverlap
	}

	var chunks []string
	for start := 0; start < len(text); start += chunkSize - overlap {
		end := start + chunkSize
		if end > len(text) {
			end = len(text)
		}

		chunk := strings.TrimSpace(text[start:end])
		if len(chunk) > minChunkLength {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}
