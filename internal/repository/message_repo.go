package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/maulanarifai114/research-chat-backend/internal/models"
)

type MessageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(coll *mongo.Collection) *MessageRepository {
	return &MessageRepository{coll: coll}
}

// InsertMessage appends m and returns it with the generated ID and
// timestamps. Once this returns nil the message counts as sent, whatever
// happens to the live pushes afterwards.
func (r *MessageRepository) InsertMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListByConversation returns the newest messages of a conversation in
// chronological order.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int64) ([]*models.Message, error) {
	opts := optionsFindSorted("created_at", limit)
	cur, err := r.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
