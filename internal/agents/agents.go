package agents

import (
	"fmt"
	"strings"

	"github.com/sandevgo/readr/internal/core"
)

// Spec is one reasoning role: its instructions and the evidence slice it
// sees from the bundle.
type Spec struct {
	Name         core.AgentName
	Instructions string
	buildContext func(b core.ContextBundle) (block string, refs []string)
}

const readerInstructions = `You are the close-reading specialist for a book companion.
Answer strictly from the passage excerpts you are given. Quote short
phrases when they carry the answer, reference excerpts by their id in
square brackets, and say plainly when the excerpts do not contain the
answer. Never use outside knowledge.`

const contextInstructions = `You are the background-context specialist for a book companion.
Use the reference material you are given to explain historical,
biographical and cultural context relevant to the question. Cite the
reference titles you draw on. If no reference material is provided, say
that external context is unavailable right now.`

const analysisInstructions = `You are the literary-analysis specialist for a book companion.
Interpret themes, symbols, character motivation and narrative technique
using both the passage excerpts and the reference material. Ground every
claim in the evidence you were given and keep speculation clearly
marked as such.`

// Registry returns the agent roster in execution and synthesis order.
func Registry() []Spec {
	return []Spec{
		{Name: core.AgentReader, Instructions: readerInstructions, buildContext: chunksBlock},
		{Name: core.AgentContext, Instructions: contextInstructions, buildContext: snippetsBlock},
		{Name: core.AgentAnalysis, Instructions: analysisInstructions, buildContext: fullBlock},
	}
}

func chunksBlock(b core.ContextBundle) (string, []string) {
	if len(b.Chunks) == 0 {
		return "No passage excerpts are available.", nil
	}
	var sb strings.Builder
	refs := make([]string, 0, len(b.Chunks))
	sb.WriteString("Passage excerpts:\n")
	for _, c := range b.Chunks {
		fmt.Fprintf(&sb, "\n[%s]\n%s\n", c.ID, c.Text)
		refs = append(refs, c.ID)
	}
	return sb.String(), refs
}

func snippetsBlock(b core.ContextBundle) (string, []string) {
	if len(b.Snippets) == 0 {
		return "No reference material is available.", nil
	}
	var sb strings.Builder
	refs := make([]string, 0, len(b.Snippets))
	sb.WriteString("Reference material:\n")
	for _, s := range b.Snippets {
		fmt.Fprintf(&sb, "\n[%s: %s]\n%s\n", s.SourceID, s.Title, s.Text)
		refs = append(refs, s.SourceID+":"+s.Title)
	}
	return sb.String(), refs
}

func fullBlock(b core.ContextBundle) (string, []string) {
	chunks, chunkRefs := chunksBlock(b)
	snippets, snippetRefs := snippetsBlock(b)
	return chunks + "\n" + snippets, append(chunkRefs, snippetRefs...)
}
