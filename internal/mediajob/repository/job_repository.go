package repository

import (
	"context"
	"errors"
	"time"

	"meeting_media_service/internal/mediajob/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// JobRepo definition meeting job metadata operations
//
// metadata store 是跨 worker 唯一的同步點，每次 MergeUpdate
// 以欄位為單位原子生效，不假設多欄位交易。
type JobRepo interface {
	Create(ctx context.Context, record *domain.JobRecord) error
	GetByID(ctx context.Context, jobID string) (*domain.JobRecord, error)
	// MergeUpdate 只改動給定欄位並更新 last_updated_at；
	// status 不為 failed 時順帶清掉 error 欄位
	MergeUpdate(ctx context.Context, jobID string, fields bson.M) error
	FindByOwner(ctx context.Context, ownerID string) ([]domain.JobRecord, error)
	Delete(ctx context.Context, jobID string) error
}

type jobRepo struct {
	coll *mongo.Collection
}

// NewJobRepo create a JobRepo
func NewJobRepo(db *mongo.Database) JobRepo {
	return &jobRepo{
		coll: db.Collection("meeting_jobs"),
	}
}

// Create 建立 job 紀錄（上傳路徑用，status = uploaded）
func (r *jobRepo) Create(ctx context.Context, record *domain.JobRecord) error {
	record.LastUpdatedAt = time.Now().UTC()
	_, err := r.coll.InsertOne(ctx, record)
	return err
}

// GetByID get JobRecord by id
func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	filter := bson.M{"_id": jobID}
	var record domain.JobRecord
	err := r.coll.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MergeUpdate 合併更新指定欄位，每次寫入都刷新 last_updated_at
func (r *jobRepo) MergeUpdate(ctx context.Context, jobID string, fields bson.M) error {
	set := bson.M{"last_updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	update := bson.M{"$set": set}
	// error 欄位只在 failed 狀態存在
	if status, ok := set["status"]; ok && status != domain.JobFailed {
		if _, hasErr := set["error"]; !hasErr {
			update["$unset"] = bson.M{"error": ""}
		}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": jobID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// FindByOwner 依 owner 查詢（列表頁用）
func (r *jobRepo) FindByOwner(ctx context.Context, ownerID string) ([]domain.JobRecord, error) {
	cur, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, err
	}
	var records []domain.JobRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Delete 刪除 job 紀錄（核心流程不呼叫，保留給外部清理）
func (r *jobRepo) Delete(ctx context.Context, jobID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": jobID})
	return err
}
