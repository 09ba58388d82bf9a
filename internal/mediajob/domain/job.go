package domain

import (
	"fmt"
	"time"
)

const (
	//QueueName definition transcode job queue name
	QueueName = "meeting_transcode"
)

// JobStatus definition job status
type JobStatus string

const (
	//JobUploaded 原始檔已上傳，尚未排入佇列
	JobUploaded JobStatus = "uploaded"
	//JobQueued 已排入轉碼佇列
	JobQueued JobStatus = "queued"
	//JobProcessing worker 處理中
	JobProcessing JobStatus = "processing"
	//JobDone 轉碼完成
	JobDone JobStatus = "done"
	//JobFailed 轉碼失敗
	JobFailed JobStatus = "failed"
)

// JobMessage 定義轉碼工作訊息（佇列 payload，建立後不再變動）
type JobMessage struct {
	JobID       string    `json:"jobId"`
	OwnerID     string    `json:"ownerId"`
	RequestedAt time.Time `json:"requestedAt"` // 序列化為 ISO-8601
	// Token 呼叫端自帶的冪等 token，可為空，空值時由 processor 以 jobId 推導
	Token string `json:"token,omitempty"`
}

// JobRecord 定義 meeting 轉碼工作的 metadata 紀錄
type JobRecord struct {
	JobID            string    `bson:"_id"`
	OwnerID          string    `bson:"owner_id"`
	Status           JobStatus `bson:"status"`
	Title            string    `bson:"title"`
	SourceLocator    string    `bson:"source_locator"`    // 原始檔在 MinIO 上的 object key
	OriginalFilename string    `bson:"original_filename"`
	DurationSeconds  float64   `bson:"duration_seconds,omitempty"`
	LastUpdatedAt    time.Time `bson:"last_updated_at"`
	Error            string    `bson:"error,omitempty"` // 僅在 status = failed 時存在
}

// Rendition 定義單一輸出變體的紀錄，key 為 (jobId, variantName)
type Rendition struct {
	Key         string `bson:"_id"` // "<jobId>#<variantName>"
	JobID       string `bson:"job_id"`
	VariantName string `bson:"variant_name"`
	Locator     string `bson:"locator"`
	SizeBytes   int64  `bson:"size_bytes"`
}

// RenditionKey 組合 rendition 紀錄的 key
func RenditionKey(jobID, variantName string) string {
	return jobID + "#" + variantName
}

// IdempotencyEntry 定義冪等紀錄，首次完成後寫入、到期前唯讀
type IdempotencyEntry struct {
	Token     string    `json:"token"`
	JobID     string    `json:"jobId"`
	Operation string    `json:"operation"`
	Result    []byte    `json:"result"` // opaque JSON
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ArtifactPrefix 組合 job 所有產出物在 blob store 上的共同前綴
func ArtifactPrefix(jobID string) string {
	return fmt.Sprintf("meetings/%s", jobID)
}

// ArtifactKey 以 job 身份與產出物名稱推導出固定的 object key，
// 重傳時同 key 覆寫而不是產生重複物件
func ArtifactKey(jobID, artifactName string) string {
	return fmt.Sprintf("meetings/%s/%s", jobID, artifactName)
}

// SourceKey 組合原始檔的 object key
func SourceKey(jobID, filename string) string {
	return fmt.Sprintf("meetings/%s/original/%s", jobID, filename)
}
