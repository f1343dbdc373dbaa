package models

import "time"

type ConversationType string

const (
	ConversationPrivate   ConversationType = "PRIVATE"
	ConversationGroup     ConversationType = "GROUP"
	ConversationBroadcast ConversationType = "BROADCAST"
)

type Conversation struct {
	ID        string           `bson:"_id,omitempty" json:"id"`
	Name      string           `bson:"name,omitempty" json:"name"`
	Type      ConversationType `bson:"type" json:"type"`
	Members   []string         `bson:"members" json:"members"` // user IDs only
	CreatedAt time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time        `bson:"updated_at" json:"updated_at"`
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}
