package chat

// State is a point-in-time copy of a widget's conversation state.
type State struct {
	Messages []Message `json:"messages"`
	IsOpen   bool      `json:"isOpen"`
	Draft    string    `json:"draft"`
	IsTyping bool      `json:"isTyping"`
	Version  uint64    `json:"version"`
}

// LastUserText returns the text of the most recent user message, or "".
func (s State) LastUserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Author == AuthorUser {
			return s.Messages[i].Text
		}
	}
	return ""
}

