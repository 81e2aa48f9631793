package persistence

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"page-token-service/domain/repository"
	"page-token-service/infrastructure/logger"
)

// DebugArchiveRepository stores raw introspection payloads in MongoDB for
// offline diagnosis. Optional; the engine works without it.
type DebugArchiveRepository struct {
	mongoDb *mongo.Client
}

func NewDebugArchiveRepository(db *mongo.Client) repository.IDebugArchive {
	return &DebugArchiveRepository{mongoDb: db}
}

func (r *DebugArchiveRepository) ArchiveDebugPayload(ctx context.Context, tokenType, subjectID string, payload []byte) error {
	if r.mongoDb == nil {
		logger.GetLogger().Info("MongoDB client is nil - skipping debug archive")
		return nil
	}
	collection := r.mongoDb.Database("page_token_service").Collection("token_debug_payloads")
	_, err := collection.InsertOne(ctx, bson.D{
		{Key: "token_type", Value: tokenType},
		{Key: "subject_id", Value: subjectID},
		{Key: "payload", Value: string(payload)},
		{Key: "archived_at", Value: time.Now().UTC()},
	})
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while archiving debug payload")
	}
	return err
}
