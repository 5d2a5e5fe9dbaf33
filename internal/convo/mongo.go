package convo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dperrin/vidrag/internal/core"
	"github.com/dperrin/vidrag/internal/logger"
)

const collectionName = "conversations"

// MongoStore persists conversations in MongoDB, one document per session,
// with turns appended in order. The pipeline never reads it back; it exists
// so sessions survive the process.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// conversationDoc is the stored shape of a session.
type conversationDoc struct {
	SessionID   string                  `bson:"session_id"`
	VideoID     string                  `bson:"video_id"`
	Messages    []core.ConversationTurn `bson:"messages"`
	Metadata    map[string]string       `bson:"metadata,omitempty"`
	CreatedAt   time.Time               `bson:"created_at"`
	LastUpdated time.Time               `bson:"last_updated"`
}

// NewMongoStore connects to MongoDB and ensures the unique session index.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("mongo URI and database name are required")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collectionName)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure session_id index: %w", err)
	}
	logger.Info("Connected to MongoDB, conversations stored in %s.%s", database, collectionName)
	return &MongoStore{client: client, collection: coll}, nil
}

// Create starts a new session document for the video.
func (s *MongoStore) Create(ctx context.Context, sessionID, videoID string, metadata map[string]string) error {
	now := time.Now().UTC()
	doc := conversationDoc{
		SessionID:   sessionID,
		VideoID:     videoID,
		Messages:    []core.ConversationTurn{},
		Metadata:    metadata,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create conversation %s: %w", sessionID, err)
	}
	logger.Debug("Created conversation %s for video %s", sessionID, videoID)
	return nil
}

// Append adds turns to an existing session.
func (s *MongoStore) Append(ctx context.Context, sessionID string, turns []core.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": turns}},
			"$set":  bson.M{"last_updated": time.Now().UTC()},
		})
	if err != nil {
		return fmt.Errorf("failed to append to conversation %s: %w", sessionID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("conversation %s does not exist", sessionID)
	}
	return nil
}

// Close releases the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Disabled is a no-op ConversationStore for runs without a configured
// MongoDB. Turns are simply not persisted.
type Disabled struct{}

func (Disabled) Create(ctx context.Context, sessionID, videoID string, metadata map[string]string) error {
	return nil
}

func (Disabled) Append(ctx context.Context, sessionID string, turns []core.ConversationTurn) error {
	return nil
}

func (Disabled) Close(ctx context.Context) error { return nil }
