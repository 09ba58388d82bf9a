package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriterWithRetry 嘗試建立 Kafka Writer 並發送測試訊息以確認連線
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var writer *kafka.Writer
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		writer = kafka.NewWriter(kafka.WriterConfig{
			Brokers:  k.Brokers,
			Topic:    k.Topic,
			Balancer: &kafka.LeastBytes{},
		})

		// 發送一個測試訊息（"ping"），確認連線是否成功
		err = writer.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte("ping"),
			Value: []byte("ping"),
		})
		if err == nil {
			log.Printf("Kafka Writer 建立成功 (嘗試 %d 次)", attempt)
			return writer, nil
		}

		log.Printf("Kafka Writer 建立失敗 (嘗試 %d/%d): %v", attempt, k.RetryCount, err)
		writer.Close()
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法建立 Kafka Writer，經過 %d 次嘗試: %v", k.RetryCount, err)
}

// NewKafkaReaderWithRetry 建立消費者群組 Reader，手動 commit（FetchMessage / CommitMessages）
func NewKafkaReaderWithRetry(k KafkaConnection) (*kafka.Reader, error) {
	var reader *kafka.Reader
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers: k.Brokers,
			Topic:   k.Topic,
			GroupID: k.GroupID,
			// 手動 commit，消費端自行決定何時確認
			CommitInterval: 0,
		})

		// 確認 broker 可達
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err = kafka.DialContext(ctx, "tcp", k.Brokers[0])
		cancel()
		if err == nil {
			log.Printf("Kafka Reader 建立成功 (嘗試 %d 次)", attempt)
			return reader, nil
		}

		log.Printf("Kafka Reader 建立失敗 (嘗試 %d/%d): %v", attempt, k.RetryCount, err)
		reader.Close()
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法建立 Kafka Reader，經過 %d 次嘗試: %v", k.RetryCount, err)
}
