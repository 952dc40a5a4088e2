package drug

import "strings"

// InfoHeading separates record summaries from appended drug knowledge.
const InfoHeading = "--- Drug Information ---"

// Block renders one knowledge block as "<name>:\n<knowledge>".
func Block(name, knowledge string) string {
	return name + ":\n" + knowledge
}

// Section renders blocks under InfoHeading, or "" when there are none.
func Section(blocks []string) string {
	if len(blocks) == 0 {
		return ""
	}
	return InfoHeading + "\n" + strings.Join(blocks, "\n\n")
}
