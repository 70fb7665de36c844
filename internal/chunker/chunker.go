package chunker

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sandevgo/readr/internal/core"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

type Config struct {
	MaxTokens     int
	OverlapTokens int
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:     400,
		OverlapTokens: 50,
	}
}

// span is a half-open byte range over the source text. Spans produced by
// splitSentences are contiguous: each span ends where the next begins.
type span struct {
	start int
	end   int
}

// Chunk splits a document into ordered, offset-stable chunks. Every byte
// of the input falls into at least one chunk; neighbouring chunks overlap
// by roughly cfg.OverlapTokens. Same document + same config always yields
// the same boundaries.
func Chunk(doc core.Document, cfg Config) ([]core.Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, core.InputErrorf("document %q is empty", doc.ID)
	}
	if cfg.MaxTokens <= 0 {
		return nil, core.InputErrorf("chunk window must be positive, got %d", cfg.MaxTokens)
	}

	sentences := splitSentences(doc.Text)

	var chunks []core.Chunk
	emit := func(start, end int) {
		text := doc.Text[start:end]
		chunks = append(chunks, core.Chunk{
			ID:            fmt.Sprintf("%s:%d", doc.ID, len(chunks)),
			DocumentID:    doc.ID,
			Text:          text,
			StartOffset:   start,
			EndOffset:     end,
			TokenSize:     countTokens(text),
			SequenceIndex: len(chunks),
		})
	}

	i := 0
	for i < len(sentences) {
		s := sentences[i]
		tokens := countTokens(doc.Text[s.start:s.end])

		// A single sentence wider than the window is sliced on token
		// boundaries; the decoded slices partition the sentence bytes
		// exactly, so offsets stay faithful.
		if tokens > cfg.MaxTokens {
			for _, sub := range sliceLongSpan(doc.Text, s, cfg.MaxTokens) {
				emit(sub.start, sub.end)
			}
			i++
			continue
		}

		// Grow the chunk sentence by sentence until the window is full.
		end := i
		total := tokens
		for end+1 < len(sentences) {
			next := countTokens(doc.Text[sentences[end+1].start:sentences[end+1].end])
			if total+next > cfg.MaxTokens {
				break
			}
			total += next
			end++
		}
		emit(sentences[i].start, sentences[end].end)

		if end+1 >= len(sentences) {
			break
		}

		// Overlap: restart from earlier sentences worth ~OverlapTokens,
		// never re-covering the whole chunk.
		next := end + 1
		if cfg.OverlapTokens > 0 {
			back := end
			overlap := 0
			for back > i {
				t := countTokens(doc.Text[sentences[back].start:sentences[back].end])
				if overlap+t > cfg.OverlapTokens {
					break
				}
				overlap += t
				back--
			}
			if back+1 <= end {
				next = back + 1
			}
		}
		if next <= i {
			next = i + 1
		}
		i = next
	}

	return chunks, nil
}

// sentenceEnders covers Latin and CJK terminators, as in the original
// multilingual splitter.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true, '．': true, '…': true,
}

// splitSentences scans the text once and returns contiguous sentence
// spans. Trailing whitespace is attached to the sentence it follows, so
// the spans partition the text with no gaps.
func splitSentences(text string) []span {
	var spans []span
	start := 0
	pos := 0
	ended := false

	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])

		if ended && !unicode.IsSpace(r) {
			spans = append(spans, span{start: start, end: pos})
			start = pos
			ended = false
		}

		if sentenceEnders[r] {
			next, _ := utf8.DecodeRuneInString(text[pos+size:])
			if pos+size >= len(text) || unicode.IsSpace(next) || isCJK(next) {
				ended = true
			}
		}

		pos += size
	}

	if start < len(text) {
		spans = append(spans, span{start: start, end: len(text)})
	}
	return spans
}

// sliceLongSpan splits an over-long sentence into token-window slices.
func sliceLongSpan(text string, s span, maxTokens int) []span {
	enc := getTokenizer()
	tokens := enc.Encode(text[s.start:s.end], nil, nil)

	var spans []span
	offset := s.start
	for i := 0; i < len(tokens); i += maxTokens {
		end := i + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		decoded := enc.Decode(tokens[i:end])
		spans = append(spans, span{start: offset, end: offset + len(decoded)})
		offset += len(decoded)
	}
	// Decode round-trips the exact input, so the last span must land on
	// the sentence end.
	if len(spans) > 0 && spans[len(spans)-1].end != s.end {
		spans[len(spans)-1].end = s.end
	}
	return spans
}

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

// CountTokens reports the cl100k_base token length of text.
func CountTokens(text string) int {
	return countTokens(text)
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
