package config

import "time"

// MediaService definition media_service YAML structure
type MediaService struct {
	Port string `mapstructure:"port"`
	IP   string `mapstructure:"ip"`

	Mongo    DatabaseConfig `mapstructure:"mongo"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`

	// PresignExpiry rendition 下載連結有效時間
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// WorkerService definition worker_service YAML structure
type WorkerService struct {
	Mongo    DatabaseConfig `mapstructure:"mongo"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// QueueConfig definition job queue tunables
type QueueConfig struct {
	// Driver "rabbitmq" 或 "kafka"
	Driver string `mapstructure:"driver"`
	// BatchSize 單次 Receive 最多取回的訊息數，預設 1
	BatchSize int `mapstructure:"batch_size"`
	// WaitSeconds long poll 等待秒數，預設 20
	WaitSeconds int `mapstructure:"wait_seconds"`
	// LeaseTimeoutSeconds 訊息取走後的不可見時間，須大於最長處理時間，
	// 預設 300。只有 memory driver 直接使用；RabbitMQ 的 lease 跟著
	// channel 存活時間、Kafka 跟著 consumer session timeout，由 broker
	// 端設定
	LeaseTimeoutSeconds int `mapstructure:"lease_timeout_seconds"`
}

// PipelineConfig definition transcode pipeline setting
type PipelineConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
	// Variants 依序處理（高解析度在前）
	Variants []VariantConfig `mapstructure:"variants"`
	// AudioBitrate 抽出單聲道音軌的位元率，例如 "64k"
	AudioBitrate string `mapstructure:"audio_bitrate"`
	// ThumbnailCount 等距截圖張數
	ThumbnailCount int `mapstructure:"thumbnail_count"`
	// WorkDir 暫存工作目錄的根目錄
	WorkDir string `mapstructure:"work_dir"`
	// TranscribeCmd 選配的外部轉寫工具指令，留空則跳過轉寫（人工流程補上）
	TranscribeCmd string `mapstructure:"transcribe_cmd"`
}

// VariantConfig definition single output variant
type VariantConfig struct {
	Name         string `mapstructure:"name"`          // 例如 "720p"
	Scale        string `mapstructure:"scale"`         // ffmpeg scale 參數，例如 "-2:720"
	VideoBitrate string `mapstructure:"video_bitrate"` // 例如 "2500k"
}

// ServiceConfig definition service port & name
type ServiceConfig struct {
	Port string `mapstructure:"service_port"`
	Name string `mapstructure:"service_name"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
	// IdempotencyTTL 冪等紀錄保留時間
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// RabbitMQConfig definition rabbitmq setting
type RabbitMQConfig struct {
	IP            string        `mapstructure:"ip"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	GroupID       string        `mapstructure:"group_id"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	BucketName    string        `mapstructure:"bucket_name"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	RetryCount    int           `mapstructure:"retry_count"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
