package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no document matches.
var ErrNotFound = errors.New("not found")

type Message struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	Text           string    `bson:"text,omitempty" json:"text,omitempty"`
	Attachment     string    `bson:"attachment,omitempty" json:"attachment,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}
