package chat

import "strings"

// CannedReply is returned for identity questions without invoking a model.
const CannedReply = "I am SofAI, an AI assistant built by the SofAI team to answer your questions. How can I help you today?"

// identityPhrases are matched as substrings of the normalized input.
var identityPhrases = []string{
	"who are you",
	"what are you",
	"what is your name",
	"whats your name",
	"whoami",
	"who made you",
	"who created you",
	"who made sofai",
	"who created sofai",
	"what is your purpose",
	"whats your purpose",
}

// identityWords trigger the compound rule when they appear alongside the
// product name.
var identityWords = []string{"who", "what", "creator", "made"}

// normalize lowercases the input, strips everything that is not a letter,
// digit or whitespace, and collapses runs of whitespace to single spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// IsIdentityQuestion reports whether the message asks about the assistant
// itself. It runs before any tokenization so identity questions never cost
// an inference call.
func IsIdentityQuestion(message string) bool {
	norm := normalize(message)
	if norm == "" {
		return false
	}
	for _, phrase := range identityPhrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	if strings.Contains(norm, "sofai") {
		words := strings.Fields(norm)
		for _, w := range words {
			for _, q := range identityWords {
				if w == q {
					return true
				}
			}
		}
	}
	return false
}
