// Package prompt assembles generation prompts from context and a question.
package prompt

import (
	"strings"
)

const (
	// DefaultMaxContextChars bounds the context placed in any prompt.
	DefaultMaxContextChars = 12000
	// TopicExcerptChars is how much of a document the topic prompt sees.
	TopicExcerptChars = 6000
	// ChunkSeparator joins retrieved chunks inside the context block.
	ChunkSeparator = "\n---\n"
)

// Categories understood by the category mode.
const (
	CategoryMedical       = "medical"
	CategoryProfile       = "profile"
	CategoryTimeline      = "timeline"
	CategoryRelationships = "relationships"
	CategoryFamilyTree    = "family-tree"
)

// CategoryInstruction maps a category to what should be extracted. Unknown
// categories get a generic instruction.
func CategoryInstruction(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryMedical:
		return "Extract medical information: conditions, allergies, medications, and any hospitalizations."
	case CategoryProfile:
		return "Summarize the person's profile including full name, DOB, location, occupation, and education."
	case CategoryTimeline:
		return "List important life events in chronological order with approximate dates."
	case CategoryRelationships:
		return "Describe the person's family and social relationships including parents, spouse, children, siblings."
	case CategoryFamilyTree, "family_tree":
		return "Generate a family tree in the form A -[relationship]-> B."
	default:
		return "Answer the question concisely based on the document text."
	}
}

// IsKnownCategory reports whether category has a dedicated instruction.
func IsKnownCategory(category string) bool {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryMedical, CategoryProfile, CategoryTimeline, CategoryRelationships, CategoryFamilyTree, "family_tree":
		return true
	}
	return false
}

// Builder builds prompts with a bounded context block.
type Builder struct {
	maxContextChars int
}

func NewBuilder(maxContextChars int) *Builder {
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Builder{maxContextChars: maxContextChars}
}

// Category builds the category prompt over the full document context.
func (b *Builder) Category(category, context string) string {
	var prompt strings.Builder

	prompt.WriteString("Use the following document text to answer. Do not repeat words, avoid stuttering.\n\n")
	prompt.WriteString(Clip(context, b.maxContextChars))
	prompt.WriteString("\n\n")
	b.writeCategoryInstruction(&prompt, category)
	prompt.WriteString("Answer:\n")

	return prompt.String()
}

func (b *Builder) writeCategoryInstruction(prompt *strings.Builder, category string) {
	prompt.WriteString("Instruction:\n")
	prompt.WriteString("Your task is to: ")
	prompt.WriteString(CategoryInstruction(category))
	prompt.WriteString("\n")
	prompt.WriteString("If multiple files are present (marked like [[filename]]), reconcile conflicts sensibly.\n")
	prompt.WriteString("Provide only the answer itself. Do not say \"based on the document\". Avoid repetition, be concise.\n")
}

// Freeform builds a question prompt over the retrieved chunks.
func (b *Builder) Freeform(question string, chunks []string) string {
	var prompt strings.Builder

	prompt.WriteString("Answer the question using ONLY this context. Be concise. Do not repeat words or syllables.\n\n")
	prompt.WriteString("CONTEXT:\n")
	prompt.WriteString(Clip(strings.Join(chunks, ChunkSeparator), b.maxContextChars))
	prompt.WriteString("\n\nQUESTION: ")
	prompt.WriteString(strings.TrimSpace(question))
	prompt.WriteString("\n\nAnswer:")

	return prompt.String()
}

// Topic builds the prompt that asks for a short label for one document.
func (b *Builder) Topic(text string) string {
	var prompt strings.Builder

	prompt.WriteString("From the document excerpt below, produce a short, human-friendly topic (max ~7 words). Respond with just the topic.\n\n")
	prompt.WriteString("=== DOCUMENT EXCERPT ===\n")
	prompt.WriteString(Clip(strings.TrimSpace(text), TopicExcerptChars))
	prompt.WriteString("\n\n=== END ===\n\nTopic:")

	return prompt.String()
}

// Clip keeps the first max runes of s.
func Clip(s string, max int) string {
	if max <= 0 {
		return s
	}
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
