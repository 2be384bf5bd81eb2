package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkJoinsParagraphsUnderBudget(t *testing.T) {
	chunks := Chunk("Para one.\n\nPara two.", 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Para one.\n\nPara two.", chunks[0])
}

func TestChunkSplitsAtParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("a", 6000)
	para2 := strings.Repeat("b", 6000)

	chunks := Chunk(para1+"\n\n"+para2, 10000)

	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0])
	assert.Equal(t, para2, chunks[1])
}

func TestChunkDeterministic(t *testing.T) {
	script := "First paragraph with some text.\n\nSecond one. It has two sentences!\n\nThird."

	first := Chunk(script, 50)
	second := Chunk(script, 50)

	assert.Equal(t, first, second)
}

func TestChunkPreservesAllParagraphs(t *testing.T) {
	paras := []string{
		"Welcome to the channel.",
		"Today we look at task orchestration.",
		"Every stage matters.",
		"Thanks for watching!",
	}
	script := strings.Join(paras, "\n\n")

	chunks := Chunk(script, 45)

	require.NotEmpty(t, chunks)
	// Restoring the paragraph boundaries between chunks must reconstruct the
	// original script: nothing dropped, nothing reordered.
	assert.Equal(t, script, strings.Join(chunks, "\n\n"))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 45)
	}
}

func TestChunkOversizedParagraphFallsBackToSentences(t *testing.T) {
	para := "This is the first sentence. Here comes the second one! And a third? Finally the fourth."

	chunks := Chunk(para, 40)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 40)
		assert.NotEmpty(t, c)
	}
	// All sentence text survives, in order.
	joined := strings.Join(chunks, " ")
	assert.Equal(t, para, joined)
}

func TestChunkNoSentenceBoundaryEmitsOversizedUnit(t *testing.T) {
	// No terminator anywhere. Truncation would lose narration, so the unit
	// comes through whole even though it exceeds the limit.
	blob := strings.Repeat("x", 500)

	chunks := Chunk(blob, 100)

	require.Len(t, chunks, 1)
	assert.Equal(t, blob, chunks[0])
}

func TestChunkOversizedSentenceEmittedAlone(t *testing.T) {
	long := strings.Repeat("y", 120) + "."
	para := "Short one. " + long + " Short two."

	chunks := Chunk(para, 60)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Short one.", chunks[0])
	assert.Equal(t, long, chunks[1])
	assert.Equal(t, "Short two.", chunks[2])
}

func TestChunkIgnoresBlankParagraphsAndCRLF(t *testing.T) {
	script := "First.\r\n\r\n   \n\nSecond."

	chunks := Chunk(script, 1000)

	require.Len(t, chunks, 1)
	assert.Equal(t, "First.\n\nSecond.", chunks[0])
	for _, c := range chunks {
		assert.NotEmpty(t, c)
	}
}

func TestChunkEmptyScript(t *testing.T) {
	assert.Empty(t, Chunk("", 100))
	assert.Empty(t, Chunk("   \n\n \n ", 100))
}
