package app

import (
	"context"
	"time"

	"meeting_media_service/internal/mediajob/queue"
	"meeting_media_service/pkg/logger"

	"go.uber.org/zap"
)

// Worker 轉碼 worker 的輪詢迴圈。
//
// 單一行程只跑一條循序迴圈：Receive → 逐一同步 dispatch → 回到
// Receive。跨 job 的並行靠多開 worker 行程（水平擴張），不在行程
// 內開多執行緒，轉碼階段本來就會吃滿 CPU。
type Worker struct {
	jobQueue  queue.JobQueue
	processor Processor

	batchSize int
	wait      time.Duration
}

// NewWorker create a Worker
func NewWorker(jobQueue queue.JobQueue, processor Processor, batchSize int, wait time.Duration) *Worker {
	if batchSize <= 0 {
		batchSize = queue.DefaultBatchSize
	}
	if wait <= 0 {
		wait = queue.DefaultWait
	}
	return &Worker{
		jobQueue:  jobQueue,
		processor: processor,
		batchSize: batchSize,
		wait:      wait,
	}
}

// Start 開始輪詢，ctx 取消後停止收新工作，讓進行中的 job 跑完才返回。
// 不強制中斷進行中的轉碼，資料完整性優先於快速關機。
func (w *Worker) Start(ctx context.Context) {
	logger.Log.Info("worker 已啟動，等待轉碼工作訊息")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("worker 收到停止訊號")
			return
		default:
		}

		deliveries, err := w.jobQueue.Receive(ctx, w.batchSize, w.wait)
		if err != nil {
			// 傳輸層錯誤不在這裡重試，記錄後回到輪詢，
			// 退避交給 broker client library
			logger.Log.Error("佇列取訊息失敗", zap.Error(err))
			continue
		}

		for _, d := range deliveries {
			// 停止訊號只擋新工作，進行中的 job 用不可取消的 ctx
			// 跑完：取消會連帶殺掉 ffmpeg 子行程，並讓收尾的
			// metadata 寫入與確認帶著已取消的 ctx 失敗
			w.dispatch(context.WithoutCancel(ctx), d)
		}
	}
}

// dispatch 同步處理單一訊息：成功才確認，失敗不確認，
// 等 lease 過期由 broker 重新投遞（重試政策屬佇列設定，
// 毒訊息上限與死信轉送也在 broker 端處理）
func (w *Worker) dispatch(ctx context.Context, d queue.Delivery) {
	logger.Log.Info("收到轉碼工作訊息",
		zap.String("jobId", d.Message.JobID),
		zap.String("lease", d.Lease.ID()),
	)

	if _, err := w.processor.Process(ctx, d.Message); err != nil {
		logger.Log.Error("處理轉碼工作失敗，不確認訊息等待重新投遞",
			zap.String("jobId", d.Message.JobID),
			zap.Error(err),
		)
		return
	}

	if err := w.jobQueue.Acknowledge(ctx, d.Lease); err != nil {
		// lease 已過期表示別的 worker 可能重做了這份工作，
		// 冪等帳冊與固定發佈 key 保證結果一致
		logger.Log.Warn("確認訊息失敗",
			zap.String("jobId", d.Message.JobID),
			zap.Error(err),
		)
		return
	}

	logger.Log.Info("成功處理並確認訊息", zap.String("jobId", d.Message.JobID))
}
