package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"meeting_media_service/internal/api/handlers"
	"meeting_media_service/internal/api/router"
	"meeting_media_service/internal/mediajob/app"
	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/internal/mediajob/queue"
	"meeting_media_service/internal/mediajob/repository"
	"meeting_media_service/pkg/config"
	"meeting_media_service/pkg/database"
	"meeting_media_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MediaService, config.EnvConfig.MediaServiceLogPath)

	cfg := config.LoadConfig[config.MediaService](config.EnvConfig.MediaService, config.EnvConfig.MediaServiceYAMLPath)

	// 1. 連線 MongoDB（metadata store）
	mongoURI := fmt.Sprintf("mongodb://%s:%s@%s:%d",
		cfg.Mongo.User, cfg.Mongo.Password, cfg.Mongo.Host, cfg.Mongo.Port)
	mongoDB, err := database.NewMongoDB(context.Background(), database.Connection{
		ConnectStr:    mongoURI,
		RetryCount:    cfg.Mongo.RetryCount,
		RetryInterval: time.Duration(cfg.Mongo.RetryInterval) * time.Second,
	}, cfg.Mongo.Database)
	if err != nil {
		logger.Log.Fatal("Unable to connect to mongoDB after retries", zap.Error(err))
	}
	defer mongoDB.Close(context.Background())

	// 2. 初始化 MinIO 客戶端（blob store）
	minioClient, err := database.NewMinIOConnection(database.MinIOConnection{
		Endpoint:   fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
		User:       cfg.MinIO.User,
		Password:   cfg.MinIO.Password,
		BucketName: cfg.MinIO.BucketName,
		UseSSL:     cfg.MinIO.UseSSL,

		RetryCount:    cfg.MinIO.RetryCount,
		RetryInterval: cfg.MinIO.RetryInterval,
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to minio after retries", zap.Error(err))
	}

	// 3. 建立工作佇列客戶端
	jobQueue := newJobQueue(cfg)

	jobRepo := repository.NewJobRepo(mongoDB.Database)
	renditionRepo := repository.NewRenditionRepo(mongoDB.Database)
	producer := app.NewProducer(jobRepo, jobQueue)
	usecase := app.NewMediaUseCase(minioClient, jobRepo, renditionRepo, producer, cfg.PresignExpiry)

	// 4. 建立 Fiber 應用與路由
	r := fiber.New(fiber.Config{
		BodyLimit: 2 * 1024 * 1024 * 1024, // 會議錄影檔可能很大
	})
	mediaHandler := &handlers.MediaHandler{Usecase: usecase}
	router.RegisterRoutes(r, mediaHandler)

	logger.Log.Info(fmt.Sprintf("MediaService listening on : %s", cfg.Port))
	if err := r.Listen(cfg.IP + ":" + cfg.Port); err != nil {
		logger.Log.Fatal("Server failed to start", zap.Error(err))
	}
}

// newJobQueue 依設定選擇佇列後端，預設 RabbitMQ
func newJobQueue(cfg config.MediaService) queue.JobQueue {
	switch cfg.Queue.Driver {
	case "memory":
		// 本地開發用，行程內佇列，lease 時效直接吃設定值
		return queue.NewMemoryQueue(time.Duration(cfg.Queue.LeaseTimeoutSeconds) * time.Second)
	case "kafka":
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: cfg.Kafka.RetryInterval,
		})
		if err != nil {
			log.Fatalf("Kafka Writer 建立失敗: %v", err)
		}
		return queue.NewKafkaQueue(writer, nil)
	default:
		rabbitURL := fmt.Sprintf("amqp://%s:%s@%s:%s/",
			cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port)
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    rabbitURL,
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: cfg.RabbitMQ.RetryInterval,
		})
		if err != nil {
			log.Fatalf("RabbitMQ 連線失敗: %v", err)
		}

		rabbitChannel, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.RetryCount, cfg.RabbitMQ.RetryInterval)
		if err != nil {
			log.Fatalf("取得 RabbitMQ Channel 失敗: %v", err)
		}

		// 先初始化 durable queue
		if err := database.DeclareDurableQueue(rabbitChannel, domain.QueueName); err != nil {
			log.Fatalf("Queue Declare failed: %v", err)
		}

		return queue.NewRabbitMQQueue(database.NewRabbitRepository(rabbitChannel), domain.QueueName)
	}
}
