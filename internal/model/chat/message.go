package chat

// Author identifies who wrote a chat line.
type Author string

const (
	AuthorUser Author = "user"
	AuthorBot  Author = "bot"
)

// Message is one line in the popup transcript. Text is immutable once created.
type Message struct {
	ID        string `json:"id"`
	Author    Author `json:"author"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}
