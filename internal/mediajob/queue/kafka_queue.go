package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meeting_media_service/internal/mediajob/domain"

	"github.com/segmentio/kafka-go"
)

type kafkaLease struct {
	msg kafka.Message
}

func (l *kafkaLease) ID() string {
	return fmt.Sprintf("%s/%d@%d", l.msg.Topic, l.msg.Partition, l.msg.Offset)
}

// KafkaQueue 以 Kafka consumer group 實作 JobQueue 的替代後端。
// Enqueue 走 Writer，Receive 用 FetchMessage（不自動 commit），
// Acknowledge 用 CommitMessages。未 commit 的 offset 在 rebalance
// 後會重新投遞，等同 lease 語意，但時效由 session timeout 決定。
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafkaQueue create a KafkaQueue
func NewKafkaQueue(writer *kafka.Writer, reader *kafka.Reader) *KafkaQueue {
	return &KafkaQueue{writer: writer, reader: reader}
}

// Enqueue 發佈 JSON payload，key 用 jobId
func (q *KafkaQueue) Enqueue(ctx context.Context, msg domain.JobMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("jobId[%s] 工作訊息序列化失敗: %v: %w", msg.JobID, err, domain.ErrQueueUnavailable)
	}

	if err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.JobID),
		Value: data,
	}); err != nil {
		return "", fmt.Errorf("jobId[%s] 發送 Kafka 訊息失敗: %v: %w", msg.JobID, err, domain.ErrQueueUnavailable)
	}
	return msg.JobID, nil
}

// Receive 以 wait 為界 fetch 訊息，逾時回傳空 slice
func (q *KafkaQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error) {
	if maxMessages <= 0 {
		maxMessages = DefaultBatchSize
	}

	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var out []Delivery
	for len(out) < maxMessages {
		m, err := q.reader.FetchMessage(fetchCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				// long poll 逾時，沒有訊息不是錯誤
				return out, nil
			}
			if len(out) > 0 {
				return out, nil
			}
			return nil, fmt.Errorf("topic[%s] 取訊息失敗: %v: %w", q.reader.Config().Topic, err, domain.ErrQueueUnavailable)
		}

		var msg domain.JobMessage
		if jsonErr := json.Unmarshal(m.Value, &msg); jsonErr != nil {
			// 無法解析就 commit 丟棄，避免卡住 partition
			_ = q.reader.CommitMessages(ctx, m)
			continue
		}
		out = append(out, Delivery{Message: msg, Lease: &kafkaLease{msg: m}})
	}
	return out, nil
}

// Acknowledge commit offset；group 已 rebalance 時視為 lease 過期
func (q *KafkaQueue) Acknowledge(ctx context.Context, lease Lease) error {
	kl, ok := lease.(*kafkaLease)
	if !ok {
		return fmt.Errorf("kafka queue: unknown lease type %T: %w", lease, domain.ErrLeaseExpired)
	}

	if err := q.reader.CommitMessages(ctx, kl.msg); err != nil {
		return fmt.Errorf("message[%s] 確認失敗: %v: %w", kl.ID(), err, domain.ErrLeaseExpired)
	}
	return nil
}
