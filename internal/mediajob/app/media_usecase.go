package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/internal/mediajob/repository"
	"meeting_media_service/pkg/database"
	errprocess "meeting_media_service/pkg/err"
	"meeting_media_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadMeetingReq usecase upload meeting request
type UploadMeetingReq struct {
	Title    string
	OwnerID  string
	FileName string
	File     io.Reader
}

// UploadMeetingRes usecase upload meeting response
type UploadMeetingRes struct {
	Message string
	JobID   string
}

// GetMeetingRes usecase get meeting response
type GetMeetingRes struct {
	JobID           string            `json:"jobId"`
	Title           string            `json:"title"`
	Status          string            `json:"status"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
	Error           string            `json:"error,omitempty"`
	RenditionURLs   map[string]string `json:"renditionUrls,omitempty"`
}

// MediaUseCase 對外提供的應用服務（上傳、排程、查詢）
type MediaUseCase interface {
	UploadMeeting(ctx context.Context, up UploadMeetingReq) (*UploadMeetingRes, error)
	SubmitProcessing(ctx context.Context, jobID string) (string, error)
	GetMeeting(ctx context.Context, jobID string) (*GetMeetingRes, error)
	ListMeetings(ctx context.Context, ownerID string) ([]domain.JobRecord, error)
}

type mediaUseCase struct {
	blob          database.MinIOClientRepo
	jobRepo       repository.JobRepo
	renditionRepo repository.RenditionRepo
	producer      Producer
	presignExpiry time.Duration
}

// NewMediaUseCase create a MediaUseCase
func NewMediaUseCase(
	blob database.MinIOClientRepo,
	jobRepo repository.JobRepo,
	renditionRepo repository.RenditionRepo,
	producer Producer,
	presignExpiry time.Duration,
) MediaUseCase {
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &mediaUseCase{
		blob:          blob,
		jobRepo:       jobRepo,
		renditionRepo: renditionRepo,
		producer:      producer,
		presignExpiry: presignExpiry,
	}
}

// 讓測試替換檔案操作（同 workspace.go 的包裝函數作法）
var (
	createFile = func(name string) (*os.File, error) {
		return os.Create(name)
	}

	copyFile = func(dst *os.File, src io.Reader) (written int64, err error) {
		return io.Copy(dst, src)
	}
)

// UploadMeeting 接收上傳，先落地暫存檔再上傳 blob store，
// 建立 status = uploaded 的工作紀錄
func (u *mediaUseCase) UploadMeeting(ctx context.Context, up UploadMeetingReq) (*UploadMeetingRes, error) {
	tmpDir := "./tmp"
	if err := mkdirAll(tmpDir, 0755); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("fileName[%s] 建立暫存目錄失敗 : %v", up.FileName, err))
	}

	jobID := uuid.NewString()
	tempPath := filepath.Join(tmpDir, jobID+"_"+up.FileName)
	tempFile, err := createFile(tempPath)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("fileName[%s] 建立暫存檔案失敗 : %v", up.FileName, err))
	}
	// 不論成功失敗都清掉本地暫存檔（defer 後進先出，先關檔再刪）
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			logger.Log.Warn("清理暫存檔案失敗",
				zap.String("fileName", up.FileName), zap.Error(removeErr))
		}
	}()
	defer tempFile.Close()

	if _, err := copyFile(tempFile, up.File); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("fileName[%s] 儲存檔案失敗 : %v", up.FileName, err))
	}

	sourceKey := domain.SourceKey(jobID, up.FileName)
	record := &domain.JobRecord{
		JobID:            jobID,
		OwnerID:          up.OwnerID,
		Status:           domain.JobUploaded,
		Title:            up.Title,
		SourceLocator:    sourceKey,
		OriginalFilename: up.FileName,
	}
	if err := u.jobRepo.Create(ctx, record); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("fileName[%s] 建立工作紀錄失敗 : %v", up.FileName, err))
	}

	if err := u.blob.UploadFile(ctx, sourceKey, tempPath, "video/mp4"); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("fileName[%s] 上傳 MinIO 失敗 : %v", up.FileName, err))
	}

	return &UploadMeetingRes{
		Message: "上傳成功，等待排程轉碼",
		JobID:   jobID,
	}, nil
}

// SubmitProcessing 排入轉碼佇列
func (u *mediaUseCase) SubmitProcessing(ctx context.Context, jobID string) (string, error) {
	return u.producer.Submit(ctx, jobID)
}

// GetMeeting 查詢工作狀態，完成的附上各 rendition 的限時下載連結
func (u *mediaUseCase) GetMeeting(ctx context.Context, jobID string) (*GetMeetingRes, error) {
	record, err := u.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 找不到工作紀錄: %v", jobID, err))
	}

	res := &GetMeetingRes{
		JobID:           record.JobID,
		Title:           record.Title,
		Status:          string(record.Status),
		DurationSeconds: record.DurationSeconds,
		Error:           record.Error,
	}

	if record.Status == domain.JobDone {
		renditions, err := u.renditionRepo.ListByJob(ctx, jobID)
		if err != nil {
			return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 讀取 rendition 紀錄失敗: %v", jobID, err))
		}
		res.RenditionURLs = make(map[string]string, len(renditions))
		for _, rendition := range renditions {
			url, err := u.blob.PresignGetURL(ctx, rendition.Locator, u.presignExpiry)
			if err != nil {
				return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 產生下載連結失敗: %v", jobID, err))
			}
			res.RenditionURLs[rendition.VariantName] = url
		}
	}

	return res, nil
}

// ListMeetings 依 owner 列出工作
func (u *mediaUseCase) ListMeetings(ctx context.Context, ownerID string) ([]domain.JobRecord, error) {
	records, err := u.jobRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, errprocess.Set(fmt.Sprintf("ownerId[%s] 查詢工作列表失敗: %v", ownerID, err))
	}
	return records, nil
}
