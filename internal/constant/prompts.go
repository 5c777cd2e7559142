package constant

const (
	DefaultResetCommand = "reset"

	ChatSystemPromptV1 = "You are a helpful chat assistant. Be concise, accurate, and safe. " +
		"Do not request or store personal data, passwords, or API keys."

	ResetAcknowledgement = "Memory cleared for this channel."
	NoTextReply          = "The model returned no text."
	ErrorReplyPrefix     = "Error: "

	// InputPlaceholder marks where a digest instruction receives its input.
	InputPlaceholder = "{{input}}"

	ResearchSystemPromptV1 = "You produce neutral market research digests."

	ResearchInstructionV1 = `You are a neutral research synthesis agent.

Rules:
- Do NOT give financial advice
- Do NOT say buy or sell
- Focus on themes, disagreement, and uncertainty
- Be concise and analytical

Discussion input:
{{input}}

Output format:
- 4 bullet summary
- 3 "threads to watch"
- 2 risks or open questions`

	ResearchStubInputV1 = `Agents are discussing current market themes:

- Debate over AI infrastructure spending sustainability
- Mixed views on NVDA valuation versus earnings growth
- Concerns about rate sensitivity impacting growth equities
- Divergence between mega-cap tech and small-cap recovery
- Caution around speculative AI-adjacent companies

Use this as raw discussion input.`

	ResearchHeader = "🧠 **Research Digest**"
	NewsHeader     = "📰 **News Digest**"

	NoStoriesNotice = "No stories found."
)
