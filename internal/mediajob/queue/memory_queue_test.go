package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueLease(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	// **情境 1: 取走後在 lease 時效內不會重複投遞**
	t.Run("lease 時效內不重複投遞", func(t *testing.T) {
		q := NewMemoryQueue(100 * time.Millisecond)

		_, err := q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		require.NoError(t, err)

		first, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, "J1", first[0].Message.JobID)

		// lease 還沒過期，再收一次應該是空的
		second, err := q.Receive(ctx, 1, 20*time.Millisecond)
		assert.NoError(t, err)
		assert.Empty(t, second)
	})

	// **情境 2: 未確認的訊息在 lease 過期後重新投遞**
	t.Run("lease 過期後重新投遞", func(t *testing.T) {
		q := NewMemoryQueue(50 * time.Millisecond)

		_, err := q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		require.NoError(t, err)

		first, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, first, 1)

		// 不確認，等 lease 過期
		time.Sleep(80 * time.Millisecond)

		second, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, "J1", second[0].Message.JobID)
		assert.NotEqual(t, first[0].Lease.ID(), second[0].Lease.ID())
	})

	// **情境 3: 確認成功後訊息刪除，不再投遞**
	t.Run("確認後不再投遞", func(t *testing.T) {
		q := NewMemoryQueue(50 * time.Millisecond)

		_, err := q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		require.NoError(t, err)

		deliveries, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)

		assert.NoError(t, q.Acknowledge(ctx, deliveries[0].Lease))
		assert.Equal(t, 0, q.Len())

		time.Sleep(80 * time.Millisecond)
		again, err := q.Receive(ctx, 1, 20*time.Millisecond)
		assert.NoError(t, err)
		assert.Empty(t, again)
	})

	// **情境 4: 重複投遞競態，只有一個確認成功**
	t.Run("兩份 lease 只有一個確認成功", func(t *testing.T) {
		q := NewMemoryQueue(30 * time.Millisecond)

		_, err := q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		require.NoError(t, err)

		first, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, first, 1)

		// 等 lease 過期，讓第二個 worker 取走同一則訊息
		time.Sleep(50 * time.Millisecond)
		second, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, second, 1)

		// 新 lease 確認成功，舊 lease 必須失效
		assert.NoError(t, q.Acknowledge(ctx, second[0].Lease))

		err = q.Acknowledge(ctx, first[0].Lease)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLeaseExpired))

		assert.Equal(t, 0, q.Len())
	})

	// **情境 5: 過期的 lease 確認失敗**
	t.Run("過期 lease 確認失敗", func(t *testing.T) {
		q := NewMemoryQueue(30 * time.Millisecond)

		_, err := q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		require.NoError(t, err)

		deliveries, err := q.Receive(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)

		time.Sleep(50 * time.Millisecond)

		err = q.Acknowledge(ctx, deliveries[0].Lease)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLeaseExpired))

		// 訊息還在，之後仍會重新投遞
		assert.Equal(t, 1, q.Len())
	})
}

func TestMemoryQueueReceive(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	// **情境 1: 空佇列 long poll 到期回空，不是錯誤**
	t.Run("空佇列回空不報錯", func(t *testing.T) {
		q := NewMemoryQueue(time.Second)

		start := time.Now()
		deliveries, err := q.Receive(ctx, 1, 30*time.Millisecond)
		assert.NoError(t, err)
		assert.Empty(t, deliveries)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	// **情境 2: long poll 期間進來的訊息會被接到**
	t.Run("輪詢期間接到新訊息", func(t *testing.T) {
		q := NewMemoryQueue(time.Second)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_, _ = q.Enqueue(ctx, domain.JobMessage{JobID: "J1"})
		}()

		deliveries, err := q.Receive(ctx, 1, 200*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, deliveries, 1)
		assert.Equal(t, "J1", deliveries[0].Message.JobID)
	})

	// **情境 3: 一次最多取 maxMessages 筆**
	t.Run("單次最多取 maxMessages 筆", func(t *testing.T) {
		q := NewMemoryQueue(time.Second)

		for _, id := range []string{"J1", "J2", "J3"} {
			_, err := q.Enqueue(ctx, domain.JobMessage{JobID: id})
			require.NoError(t, err)
		}

		deliveries, err := q.Receive(ctx, 2, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Len(t, deliveries, 2)

		rest, err := q.Receive(ctx, 2, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	// **情境 4: ctx 取消後返回空**
	t.Run("ctx 取消後返回", func(t *testing.T) {
		q := NewMemoryQueue(time.Second)

		cancelCtx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		deliveries, err := q.Receive(cancelCtx, 1, 5*time.Second)
		assert.NoError(t, err)
		assert.Empty(t, deliveries)
	})
}
