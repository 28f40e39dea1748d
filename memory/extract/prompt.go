package extract

import (
	"strings"

	"github.com/becomeliminal/nim-memory/core"
)

// DefaultSystemPrompt instructs the model to answer with the extraction schema.
const DefaultSystemPrompt = `You decide which parts of a conversation are worth remembering long term.

Score how important the message is for future conversations with this user, then list the key facts it contains.

Important: personal details, preferences, plans, relationships, commitments, recurring topics and explicit requests to remember something.
Not important: greetings, small talk, filler, acknowledgements and questions with no lasting information.

Respond with a single JSON object and nothing else:
{
  "importance": <number between 0.0 and 1.0>,
  "memories": [
    {
      "summary": "<one short sentence stating the fact>",
      "tags": ["<topic>", "..."],
      "source": "<user or assistant>"
    }
  ]
}

If nothing is worth remembering, respond with {"importance": 0.0, "memories": []}.`

const userPromptPrefix = "Analyze the following message and extract important information:\n\n"

// buildUserPrompt renders the single user message sent to the model.
func buildUserPrompt(role core.Role, content, convContext string) string {
	var b strings.Builder
	b.WriteString(userPromptPrefix)
	if convContext != "" {
		b.WriteString("Context: ")
		b.WriteString(convContext)
		b.WriteString("\n\n")
	}
	b.WriteString(role.Label())
	b.WriteString(": ")
	b.WriteString(content)
	return b.String()
}
