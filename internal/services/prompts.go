package services

// House identity shared across every desk prompt. The magazine voice is what
// the style review pass and the copy desk both enforce.
const (
	magazineName = "Horizon Magazine"

	houseVoice = `Horizon Magazine is a popular-science publication in the tradition of the great newsstand science monthlies. The voice is curious, precise and warm: it explains without condescending, favors concrete imagery over jargon, and always tells the reader why a story matters. Articles open with a hook, build through clear narrative sections, and close with a forward-looking kicker. Claims of fact are attributed to their sources.`

	guardrailCriteria = `Publication guardrails, all of which must hold for approval:
1. No unattributed claims presented as established fact.
2. No content that identifies or depicts private individuals without editorial cause.
3. No medical, legal or financial advice framed as instruction.
4. No sensationalism that the underlying research does not support.
5. Headline and body must agree: the headline may not promise what the article does not deliver.`
)

const categoryList = "Science, History, Planet Earth, Mystery"
