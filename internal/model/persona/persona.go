package persona

import "unicode/utf16"

// Persona describes the scripted bot behind a popup: its header copy, the
// greeting seeded on mount and the fixed set of canned replies.
type Persona struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Subtitle string   `json:"subtitle"`
	Greeting string   `json:"greeting"`
	Replies  []string `json:"replies"`
}

// ReplyFor picks the canned reply for the latest user text. The index is the
// text length modulo the number of replies; length is counted in UTF-16 code
// units so browser and server agree on non-ASCII input.
func (p Persona) ReplyFor(text string) string {
	if len(p.Replies) == 0 {
		return ""
	}
	return p.Replies[TextLength(text)%len(p.Replies)]
}

// TextLength returns the number of UTF-16 code units in s.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// DefaultID names the persona mounted when a page does not ask for one.
const DefaultID = "product-coach"

// Seed provides the built-in personas.
func Seed() []Persona {
	return []Persona{
		{
			ID:       DefaultID,
			Name:     "Product Coach",
			Subtitle: "Typically replies in seconds",
			Greeting: "Hi there! Ready to build something today?",
			Replies: []string{
				"That sounds interesting! How else can I help?",
				"I am on it — give me another question.",
				"Great! Let us keep the ideas flowing.",
				"Nice thought. Want to iterate a bit more?",
				"Understood. I will remember that for later.",
			},
		},
	}
}
