package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	got := Sentences("We study X.\nIt works\nwell! Does it?  Trailing words")
	assert.Equal(t, []string{"We study X.", "It works well!", "Does it?", "Trailing words"}, got)
	assert.Empty(t, Sentences(" \n "))
}

func TestSentenceChunker_Windows(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk("/p/a.pdf", "One. Two. Three. Four.")
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "One. Two.", chunks[0].Text)
	assert.Equal(t, "Two. Three.", chunks[1].Text)
	assert.Equal(t, "Three. Four.", chunks[2].Text)
	assert.Equal(t, "/p/a.pdf_text_2", chunks[2].ChunkID)
	assert.Equal(t, 2, chunks[2].Index)
	assert.Equal(t, "/p/a.pdf", chunks[0].DocumentID)
}

func TestSentenceChunker_Edges(t *testing.T) {
	chunks, err := NewSentenceChunker(0, 0).Chunk("d", "")
	require.NoError(t, err)
	assert.Nil(t, chunks)

	// overlap is clamped below the window so the loop always advances
	chunks, err = NewSentenceChunker(2, 5).Chunk("d", "A. B. C.")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
