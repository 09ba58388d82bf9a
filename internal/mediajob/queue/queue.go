package queue

import (
	"context"
	"time"

	"meeting_media_service/internal/mediajob/domain"
)

// Lease 是 broker 發出的短暫憑證，確認訊息時必須出示。
// 超過 lease 時效未確認，訊息會重新對其他 worker 可見。
type Lease interface {
	// ID 供日誌使用
	ID() string
}

// Delivery 一次收到的訊息與其 lease
type Delivery struct {
	Message domain.JobMessage
	Lease   Lease
}

// JobQueue definition job queue operations
//
// at-least-once 契約：Enqueue 發佈一次，消費端可能收到多次；
// Receive 為 long poll，逾時回傳空 slice 而不是錯誤；
// Acknowledge 出示 lease 刪除訊息，lease 已失效時回傳 domain.ErrLeaseExpired。
// 佇列客戶端不做自己的重試，傳輸層重試交給 broker client library。
type JobQueue interface {
	Enqueue(ctx context.Context, msg domain.JobMessage) (string, error)
	Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error)
	Acknowledge(ctx context.Context, lease Lease) error
}

const (
	// DefaultBatchSize 單次 Receive 預設取回數，設 1 以限制單 worker 的記憶體與 CPU
	DefaultBatchSize = 1
	// DefaultWait long poll 預設等待時間
	DefaultWait = 20 * time.Second
	// DefaultLeaseTimeout 預設 lease 時效，須大於最長 pipeline 處理時間
	DefaultLeaseTimeout = 300 * time.Second
)
