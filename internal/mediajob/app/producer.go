package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/internal/mediajob/queue"
	"meeting_media_service/internal/mediajob/repository"
	errprocess "meeting_media_service/pkg/err"

	"go.mongodb.org/mongo-driver/bson"
)

// Producer definition submit meeting transcode job
type Producer interface {
	// Submit 驗證目前狀態後把工作排入佇列，立即返回不等處理，
	// 呼叫端之後從 metadata 觀察進度
	Submit(ctx context.Context, jobID string) (string, error)
}

type producer struct {
	jobRepo  repository.JobRepo
	jobQueue queue.JobQueue
}

// NewProducer create a Producer
func NewProducer(jobRepo repository.JobRepo, jobQueue queue.JobQueue) Producer {
	return &producer{
		jobRepo:  jobRepo,
		jobQueue: jobQueue,
	}
}

// Submit 送出轉碼工作
//
// 寫入順序是刻意的：先 enqueue、再標記 queued。兩步之間
// 當機只會留下 metadata 還是 uploaded 但佇列已有訊息的短暫
// 視窗，processor 接手時會不管先前狀態直接覆寫成 processing，
// 所以 job 仍會完成；反過來先標記再 enqueue，當機會留下永遠
// 不會被處理的 queued 紀錄。
func (p *producer) Submit(ctx context.Context, jobID string) (string, error) {
	record, err := p.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return "", errprocess.Wrap(domain.ErrJobNotFound, fmt.Sprintf("jobId[%s] 查無工作紀錄", jobID))
		}
		return "", errprocess.Set(fmt.Sprintf("jobId[%s] 讀取工作紀錄失敗 : %v", jobID, err))
	}

	// 政策性拒絕：處理中或已完成的 job 不重複排程，
	// 呼叫端要重做可以用新的 jobId 重新上傳
	if record.Status == domain.JobProcessing {
		return "", errprocess.Wrap(domain.ErrAlreadyInProgress, fmt.Sprintf("jobId[%s] 已在處理中", jobID))
	}
	if record.Status == domain.JobDone && record.DurationSeconds > 0 {
		return "", errprocess.Wrap(domain.ErrAlreadyCompleted, fmt.Sprintf("jobId[%s] 已完成轉碼", jobID))
	}

	msg := domain.JobMessage{
		JobID:       jobID,
		OwnerID:     record.OwnerID,
		RequestedAt: time.Now().UTC(),
	}
	messageID, err := p.jobQueue.Enqueue(ctx, msg)
	if err != nil {
		return "", errprocess.Set(fmt.Sprintf("jobId[%s] 排入佇列失敗 : %v", jobID, err))
	}

	if err := p.jobRepo.MergeUpdate(ctx, jobID, bson.M{"status": domain.JobQueued}); err != nil {
		// 訊息已在佇列上，狀態更新失敗只記錄；processor 會直接覆寫狀態
		return messageID, errprocess.Set(fmt.Sprintf("jobId[%s] 更新狀態為 queued 失敗 : %v", jobID, err))
	}

	return messageID, nil
}
