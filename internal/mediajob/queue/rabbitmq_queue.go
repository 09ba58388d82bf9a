package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/pkg/database"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type rabbitLease struct {
	deliveryTag uint64
	messageID   string
}

func (l *rabbitLease) ID() string {
	return fmt.Sprintf("%s@%d", l.messageID, l.deliveryTag)
}

// RabbitMQQueue 以 RabbitMQ 實作 JobQueue。
// 以 basic.get 拉取、delivery tag 手動確認；未確認的訊息在
// channel/連線中斷後由 broker 重新投遞。lease 的實際時效即
// channel 存活時間，死信與重試上限交給 broker 端設定（DLX）。
type RabbitMQQueue struct {
	rabbit       database.RabbitRepo
	queueName    string
	pollInterval time.Duration
}

// NewRabbitMQQueue create a RabbitMQQueue
func NewRabbitMQQueue(rabbit database.RabbitRepo, queueName string) *RabbitMQQueue {
	return &RabbitMQQueue{
		rabbit:       rabbit,
		queueName:    queueName,
		pollInterval: 500 * time.Millisecond,
	}
}

// Enqueue 發佈 JSON payload 到 durable queue
func (q *RabbitMQQueue) Enqueue(ctx context.Context, msg domain.JobMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("jobId[%s] 工作訊息序列化失敗: %v: %w", msg.JobID, err, domain.ErrQueueUnavailable)
	}

	messageID := uuid.NewString()
	err = q.rabbit.Publish(
		"",          // 預設 exchange
		q.queueName, // queue 名稱
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    messageID,
			DeliveryMode: amqp.Persistent,
			Body:         data,
		},
	)
	if err != nil {
		return "", fmt.Errorf("jobId[%s] 發送 RabbitMQ 訊息失敗: %v: %w", msg.JobID, err, domain.ErrQueueUnavailable)
	}
	return messageID, nil
}

// Receive 到 wait 截止前以 basic.get 輪詢，逾時回傳空 slice
func (q *RabbitMQQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]Delivery, error) {
	if maxMessages <= 0 {
		maxMessages = DefaultBatchSize
	}
	deadline := time.Now().Add(wait)

	var out []Delivery
	for {
		d, ok, err := q.rabbit.Get(q.queueName, false)
		if err != nil {
			if len(out) > 0 {
				// 已取到的訊息先交出去，傳輸錯誤下一輪再浮現
				return out, nil
			}
			return nil, fmt.Errorf("queue[%s] 取訊息失敗: %v: %w", q.queueName, err, domain.ErrQueueUnavailable)
		}

		if ok {
			var msg domain.JobMessage
			if jsonErr := json.Unmarshal(d.Body, &msg); jsonErr != nil {
				// 無法解析的訊息直接確認丟棄，避免毒訊息無限循環
				_ = q.rabbit.Ack(d.DeliveryTag, false)
				continue
			}
			out = append(out, Delivery{
				Message: msg,
				Lease:   &rabbitLease{deliveryTag: d.DeliveryTag, messageID: d.MessageId},
			})
			if len(out) >= maxMessages {
				return out, nil
			}
			continue
		}

		if len(out) > 0 || time.Now().After(deadline) {
			return out, nil
		}

		select {
		case <-ctx.Done():
			return out, nil
		case <-time.After(q.pollInterval):
		}
	}
}

// Acknowledge 以 delivery tag 確認；channel 已重建時 tag 失效，視為 lease 過期
func (q *RabbitMQQueue) Acknowledge(ctx context.Context, lease Lease) error {
	rl, ok := lease.(*rabbitLease)
	if !ok {
		return fmt.Errorf("rabbitmq queue: unknown lease type %T: %w", lease, domain.ErrLeaseExpired)
	}

	if err := q.rabbit.Ack(rl.deliveryTag, false); err != nil {
		return fmt.Errorf("message[%s] 確認失敗: %v: %w", rl.ID(), err, domain.ErrLeaseExpired)
	}
	return nil
}
