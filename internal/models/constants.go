package models

const (
	// PolicyNameRegex matches runs of 1-6 title-case words ending in "Policy",
	// e.g. "Bajaj Allianz Health Policy".
	PolicyNameRegex = `\b(?:[A-Z][a-z]+\s?){1,6}Policy\b`

	// RetryHintRegex extracts the wait hint embedded in rate-limit error bodies.
	RetryHintRegex = `try again in ([0-9.]+)s`

	// RateLimitSignature marks a transient backend rejection worth retrying.
	RateLimitSignature = "rate_limit_exceeded"

	UserPromptTemplate = "Context:\n%s\n\nQuestion: %s"
)

// PolicyNameBlacklist holds near-miss phrases that must never be taken for a
// policy title.
var PolicyNameBlacklist = []string{
	"Policyholder",
	"Policy Terms",
	"Policy Document",
	"Policy Year",
	"Policy Period",
}

// SystemPrompt is the fixed answering contract sent with every synthesis call:
// context-only, single sentence, formal register.
const SystemPrompt = `You are an AI assistant that helps users understand the coverage, benefits, exclusions, and conditions of their health insurance policy, using only the provided policy document context.

Users will ask natural language questions about specific treatments, benefits, waiting periods, or policy terms.

Respond with the shortest accurate answer possible, strictly based on the document. Do not rely on external knowledge or make assumptions.

If coverage depends on conditions such as time limits or eligibility, state them briefly. If a term is defined, summarize the definition clearly.

Your response must:
- Be in fluent, formal English
- Fit within a single sentence on one line
- Be concise, direct, and policy-specific
- Avoid lists, bullet points, or extra formatting
- Never repeat the user's question or include disclaimers
- Only say 'not mentioned' if there is truly no relevant info in the context`
