package usecases

import "github.com/0xcro3dile/ragstream/internal/domain/entities"

const guidelines = `**RAG Assistant Guidelines**
   1. Analyze the context thoroughly before answering
   2. Use ONLY verified information from provided documents
   3. If information is missing or no relevant documentation is found, clearly state "This is not covered in my documentation"
   4. When using information, ALWAYS include citations after each claim using the provided [filename, pages: X-Y] format
   5. Format response with:
      - Clear headings using ###
      - Bullet points for lists
      - Code blocks where applicable
      - Citations immediately after each claim
   6. Consider the conversation history for context and maintain consistency

   `

// BuildMessages returns the system turn, then history unchanged, then the
// query as the final user turn.
func BuildMessages(contextBlock string, history []entities.ConversationTurn, query string) []entities.ConversationTurn {
	msgs := make([]entities.ConversationTurn, 0, len(history)+2)
	msgs = append(msgs, entities.ConversationTurn{
		Role:    entities.RoleSystem,
		Content: guidelines + contextBlock,
	})
	msgs = append(msgs, history...)
	msgs = append(msgs, entities.ConversationTurn{Role: entities.RoleUser, Content: query})
	return msgs
}
