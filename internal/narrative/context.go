package narrative

import "strings"

// contextEntries recovers the context block entries from a prompt built by
// AssembleAnswerPrompt. Entries are separated by a blank line.
func contextEntries(prompt string) []string {
	start := strings.Index(prompt, contextHeader)
	if start < 0 {
		return nil
	}
	block := prompt[start+len(contextHeader):]
	if end := strings.LastIndex(block, "\n\n"+questionHeader); end >= 0 {
		block = block[:end]
	}

	var entries []string
	for _, e := range strings.Split(block, "\n\n") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}
