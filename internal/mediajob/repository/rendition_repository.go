package repository

import (
	"context"

	"meeting_media_service/internal/mediajob/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RenditionRepo definition rendition record operations
type RenditionRepo interface {
	// Upsert 以 (jobId, variantName) 為 key 寫入，重跑同 key 覆寫
	Upsert(ctx context.Context, rendition *domain.Rendition) error
	ListByJob(ctx context.Context, jobID string) ([]domain.Rendition, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

type renditionRepo struct {
	coll *mongo.Collection
}

// NewRenditionRepo create a RenditionRepo
func NewRenditionRepo(db *mongo.Database) RenditionRepo {
	return &renditionRepo{
		coll: db.Collection("meeting_renditions"),
	}
}

// Upsert 同 key 覆寫，重試投遞不會產生重複紀錄
func (r *renditionRepo) Upsert(ctx context.Context, rendition *domain.Rendition) error {
	rendition.Key = domain.RenditionKey(rendition.JobID, rendition.VariantName)

	filter := bson.M{"_id": rendition.Key}
	update := bson.M{"$set": rendition}
	opts := options.Update().SetUpsert(true)

	_, err := r.coll.UpdateOne(ctx, filter, update, opts)
	return err
}

// ListByJob 取出該 job 的全部輸出變體
func (r *renditionRepo) ListByJob(ctx context.Context, jobID string) ([]domain.Rendition, error) {
	cur, err := r.coll.Find(ctx, bson.M{"job_id": jobID})
	if err != nil {
		return nil, err
	}
	var renditions []domain.Rendition
	if err := cur.All(ctx, &renditions); err != nil {
		return nil, err
	}
	return renditions, nil
}

// DeleteByJob 刪除該 job 的輸出紀錄（外部清理用）
func (r *renditionRepo) DeleteByJob(ctx context.Context, jobID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"job_id": jobID})
	return err
}
