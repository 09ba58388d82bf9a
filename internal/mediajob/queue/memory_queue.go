package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meeting_media_service/internal/mediajob/domain"

	"github.com/google/uuid"
)

// memoryMessage 佇列內部狀態：visibleAt 之前對消費者不可見
type memoryMessage struct {
	id        string
	payload   domain.JobMessage
	visibleAt time.Time
	leaseSeq  int
	acked     bool
}

type memoryLease struct {
	msg      *memoryMessage
	seq      int
	expireAt time.Time
}

func (l *memoryLease) ID() string {
	return fmt.Sprintf("%s#%d", l.msg.id, l.seq)
}

// MemoryQueue 行程內的 at-least-once 佇列，實作與 broker 相同的
// visibility timeout 語意，供測試與本地開發替換 RabbitMQ / Kafka。
type MemoryQueue struct {
	mu           sync.Mutex
	messages     []*memoryMessage
	leaseTimeout time.Duration
	pollInterval time.Duration
}

// NewMemoryQueue create a MemoryQueue
func NewMemoryQueue(leaseTimeout time.Duration) *MemoryQueue {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}
	return &MemoryQueue{
		leaseTimeout: leaseTimeout,
		pollInterval: 5 * time.Millisecond,
	}
}

// Enqueue 立即可見地加入訊息
func (q *MemoryQueue) Enqueue(ctx context.Context, msg domain.JobMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m := &memoryMessage{
		id:        uuid.NewString(),
		payload:   msg,
		visibleAt: time.Now(),
	}
	q.messages = append(q.messages, m)
	return m.id, nil
}

// Receive long poll：到 wait 截止前每隔 pollInterval 掃一次可見訊息，
// 取走的訊息在 leaseTimeout 內不再可見
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error) {
	if maxMessages <= 0 {
		maxMessages = DefaultBatchSize
	}
	deadline := time.Now().Add(wait)

	for {
		if ds := q.takeVisible(maxMessages); len(ds) > 0 {
			return ds, nil
		}

		if time.Now().After(deadline) {
			// 沒有訊息不是錯誤
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *MemoryQueue) takeVisible(maxMessages int) []Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var out []Delivery
	for _, m := range q.messages {
		if m.acked || m.visibleAt.After(now) {
			continue
		}
		// 取走：在 lease 時效內隱藏，並遞增 lease 序號讓舊 lease 失效
		m.leaseSeq++
		m.visibleAt = now.Add(q.leaseTimeout)
		out = append(out, Delivery{
			Message: m.payload,
			Lease:   &memoryLease{msg: m, seq: m.leaseSeq, expireAt: m.visibleAt},
		})
		if len(out) >= maxMessages {
			break
		}
	}
	return out
}

// Acknowledge 刪除訊息；lease 已過期或已被重新取走時回傳 domain.ErrLeaseExpired
func (q *MemoryQueue) Acknowledge(ctx context.Context, lease Lease) error {
	ml, ok := lease.(*memoryLease)
	if !ok {
		return fmt.Errorf("memory queue: unknown lease type %T: %w", lease, domain.ErrLeaseExpired)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if ml.msg.acked {
		return fmt.Errorf("message[%s] already deleted: %w", ml.msg.id, domain.ErrLeaseExpired)
	}
	// 序號不符表示訊息已被其他 worker 重新取走；時效過了同樣視為失效
	if ml.seq != ml.msg.leaseSeq || time.Now().After(ml.expireAt) {
		return fmt.Errorf("message[%s] lease lapsed: %w", ml.msg.id, domain.ErrLeaseExpired)
	}

	ml.msg.acked = true
	return nil
}

// Len 目前尚未刪除的訊息數（含暫時不可見者），測試用
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, m := range q.messages {
		if !m.acked {
			n++
		}
	}
	return n
}
