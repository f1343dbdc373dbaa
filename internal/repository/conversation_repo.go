package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maulanarifai114/research-chat-backend/internal/models"
)

type ConversationRepository struct {
	coll *mongo.Collection
}

func NewConversationRepository(coll *mongo.Collection) *ConversationRepository {
	// index on members array for per-user listing
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "members", Value: 1}},
		Options: options.Index().SetName("members_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), idx)
	return &ConversationRepository{coll: coll}
}

// FindConversationWithMembers loads the conversation and its durable
// member set. Membership is never cached by callers; every send reads it
// fresh through here.
func (r *ConversationRepository) FindConversationWithMembers(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepository) ListConversations(ctx context.Context, limit int64) ([]*models.Conversation, error) {
	opts := optionsFindSorted("updated_at", limit)
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

// UpsertConversation creates the conversation when its ID is empty and
// updates name/type otherwise.
func (r *ConversationRepository) UpsertConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt = now
		c.UpdatedAt = now
		if c.Members == nil {
			c.Members = []string{}
		}
		if _, err := r.coll.InsertOne(ctx, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	update := bson.M{"$set": bson.M{"name": c.Name, "type": c.Type, "updated_at": now}}
	res, err := r.coll.UpdateByID(ctx, c.ID, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, models.ErrNotFound
	}
	return r.FindConversationWithMembers(ctx, c.ID)
}

func (r *ConversationRepository) AddMember(ctx context.Context, conversationID, userID string) error {
	update := bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.coll.UpdateByID(ctx, conversationID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) RemoveMember(ctx context.Context, conversationID, userID string) error {
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.coll.UpdateByID(ctx, conversationID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func optionsFindSorted(field string, limit int64) *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: field, Value: -1}}).SetLimit(limit)
}
