package narrative

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingQuestion  = errors.New("question required for answer prompt")
	ErrMissingSceneText = errors.New("scene text required for explanation prompt")
)

// SystemPrompt grounds every answer in the retrieved passages.
const SystemPrompt = `You are a literary analysis assistant.
Use only the information found in the retrieved context.
Do not add external knowledge or guess beyond the text.
Cite Act and Scene for every supported claim.
Maintain scholarly, analytical tone suitable for literature study.
If the context is weak, rely strictly on whatever clues are present without inventing details.`

const (
	contextHeader  = "Context:\n"
	questionHeader = "Question: "
	answerTask     = "Answer concisely with Act and Scene references."
)

// AssembleAnswerPrompt lays out the system rules, the context block and the
// question. The context block is inserted unmodified.
func AssembleAnswerPrompt(question, contextBlock string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrMissingQuestion
	}

	var b strings.Builder
	b.WriteString(SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(contextHeader)
	b.WriteString(contextBlock)
	b.WriteString("\n\n")
	b.WriteString(questionHeader)
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(answerTask)
	return b.String(), nil
}

// SplitSystemPrompt separates the leading SystemPrompt rules from the rest of
// an answer prompt so chat providers can send them as a system turn. Prompts
// without the rules come back unchanged with an empty system part.
func SplitSystemPrompt(prompt string) (system, user string) {
	rest, ok := strings.CutPrefix(prompt, SystemPrompt)
	if !ok {
		return "", prompt
	}
	return SystemPrompt, strings.TrimLeft(rest, "\n")
}

// AssembleExplanationPrompt asks for a short analytical reading of one scene.
func AssembleExplanationPrompt(title, act, scene, sceneText string) (string, error) {
	sceneText = strings.TrimSpace(sceneText)
	if sceneText == "" {
		return "", ErrMissingSceneText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write an analytical explanation of Act %s, Scene %s from *%s*.\n\n", act, scene, title)
	b.WriteString("Rules:\n")
	b.WriteString("- DO NOT retell the whole scene.\n")
	b.WriteString("- Focus ONLY on meaning: character motivation, emotional conflict, themes, political tension, and cause and effect.\n")
	b.WriteString("- Write 3-5 sentences MAX.\n")
	b.WriteString("- No external knowledge; use ONLY the text below.\n")
	b.WriteString("- Tone should be scholarly and analytical.\n\n")
	b.WriteString("Scene text:\n\"\"\"\n")
	b.WriteString(sceneText)
	b.WriteString("\n\"\"\"\n")
	return b.String(), nil
}
