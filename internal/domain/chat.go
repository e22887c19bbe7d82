package domain

import "time"

// ChatMessage is one message of the shared group chat.
type ChatMessage struct {
	ID          int64
	SenderEmail string
	SenderName  string
	Text        string
	CreatedAt   time.Time
}
