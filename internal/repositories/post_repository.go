package repositories

import (
	"context"
	"fmt"

	"github.com/solvect/activityfeed/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// PostRepository defines the interface for post data operations. Posts live
// in MongoDB alongside the host application; the feed only needs lookup and
// the share counter.
type PostRepository interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	IncrementSharesCount(ctx context.Context, postID string) error
	DecrementSharesCount(ctx context.Context, postID string) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("post not found")
		}
		return nil, err
	}
	return &post, nil
}

// IncrementSharesCount increments the denormalized share counter on a post
func (r *MongoPostRepository) IncrementSharesCount(ctx context.Context, postID string) error {
	return r.updateSharesCount(ctx, postID, 1)
}

// DecrementSharesCount decrements the denormalized share counter on a post.
// The counter never goes below zero.
func (r *MongoPostRepository) DecrementSharesCount(ctx context.Context, postID string) error {
	return r.updateSharesCount(ctx, postID, -1)
}

func (r *MongoPostRepository) updateSharesCount(ctx context.Context, postID string, delta int) error {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	filter := bson.M{"_id": objID}
	if delta < 0 {
		filter["shares_count"] = bson.M{"$gt": 0}
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"shares_count": delta}})
	return err
}
