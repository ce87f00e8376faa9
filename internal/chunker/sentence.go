package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"paperindex/internal/domain"
)

var (
	sentenceRe   = regexp.MustCompile(`(?s)[^.!?]+(?:[.!?]+|$)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// SentenceChunker groups sentences into overlapping windows. PDF line breaks
// inside a sentence are folded into single spaces.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}
}

// Sentences splits text at terminal punctuation, dropping empty pieces.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Chunk returns passages with ids "{documentID}_text_{index}", index from 0.
func (c *SentenceChunker) Chunk(documentID, text string) ([]domain.Chunk, error) {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	for i, idx := 0, 0; i < len(sentences); idx++ {
		end := min(i+c.sentencesPerChunk, len(sentences))
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			ChunkID:    fmt.Sprintf("%s_text_%d", documentID, idx),
			Text:       strings.Join(sentences[i:end], " "),
			Index:      idx,
		})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks, nil
}
