// Package script splits narration scripts into bounded-size chunks for
// speech synthesis. The split is pure and deterministic: the chunk sequence
// dictates synthesis order and therefore the final audio, so identical input
// must always produce identical output.
package script

import "strings"

// paragraphJoiner restores the blank-line boundary between paragraphs packed
// into the same chunk.
const paragraphJoiner = "\n\n"

// Chunk splits script into ordered segments, each at most maxChars long
// unless a single sentence offers no valid split point. Paragraphs (blank-
// line delimited) are greedily packed; a paragraph that alone exceeds the
// budget falls back to sentence-boundary packing. Text is never dropped or
// truncated, and no chunk is ever the empty string.
func Chunk(script string, maxChars int) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}

	for _, para := range splitParagraphs(script) {
		if len(para) > maxChars {
			// Oversized paragraph: flush what we have, then pack by sentence.
			flush()
			chunks = append(chunks, packSentences(para, maxChars)...)
			continue
		}

		joined := len(para)
		if buf.Len() > 0 {
			joined += buf.Len() + len(paragraphJoiner)
		}
		if joined > maxChars {
			flush()
		}

		if buf.Len() > 0 {
			buf.WriteString(paragraphJoiner)
		}
		buf.WriteString(para)
	}
	flush()

	return chunks
}

// splitParagraphs breaks the script on blank-line boundaries, trimming
// surrounding whitespace and discarding empty paragraphs.
func splitParagraphs(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")

	var paras []string
	for _, raw := range strings.Split(script, "\n\n") {
		if p := strings.TrimSpace(raw); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// packSentences greedily packs the sentences of an oversized paragraph. A
// sentence that itself exceeds the budget (no boundary to split on) is
// emitted whole rather than silently truncated.
func packSentences(para string, maxChars int) []string {
	sentences := splitSentences(para)

	var chunks []string
	var buf strings.Builder

	for _, s := range sentences {
		joined := len(s)
		if buf.Len() > 0 {
			joined += buf.Len() + 1 // single space between sentences
		}
		if joined > maxChars && buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}

	return chunks
}

// splitSentences splits on `.`, `!`, `?` boundaries, keeping the terminator
// with its sentence. Consecutive terminators ("...", "?!") stay together.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		if text[i] != '.' && text[i] != '!' && text[i] != '?' {
			continue
		}
		// Swallow a run of terminators as one boundary.
		end := i + 1
		for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
			end++
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
		i = end - 1
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}
