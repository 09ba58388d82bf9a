package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProducer 是 Producer 的 Mock
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Submit(ctx context.Context, jobID string) (string, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Error(1)
}

// 測試 UploadMeeting
func TestUploadMeeting(t *testing.T) {
	mockMinIO := new(MockMinIOClient)
	mockRepo := new(MockJobRepo)
	mockRendition := new(MockRenditionRepo)
	mockProducer := new(MockProducer)
	logger.SetNewNop()
	usecase := NewMediaUseCase(mockMinIO, mockRepo, mockRendition, mockProducer, 15*time.Minute)

	ctx := context.Background()
	t.Cleanup(func() { _ = os.RemoveAll("./tmp") })

	newReq := func() UploadMeetingReq {
		return UploadMeetingReq{
			Title:    "Weekly Sync",
			OwnerID:  "owner-1",
			FileName: "test.mp4",
			File:     bytes.NewReader([]byte("dummy meeting recording")),
		}
	}

	// **情境 1: 成功上傳會議錄影**
	t.Run("成功上傳會議錄影", func(t *testing.T) {
		mockRepo.On("Create", ctx, mock.MatchedBy(func(r *domain.JobRecord) bool {
			return r.Status == domain.JobUploaded &&
				r.OwnerID == "owner-1" &&
				r.Title == "Weekly Sync" &&
				r.OriginalFilename == "test.mp4" &&
				strings.HasPrefix(r.SourceLocator, "meetings/") &&
				strings.HasSuffix(r.SourceLocator, "/original/test.mp4")
		})).Return(nil).Once()

		mockMinIO.On("UploadFile", ctx, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "meetings/") && strings.HasSuffix(key, "/original/test.mp4")
		}), mock.Anything, "video/mp4").Return(nil).Once()

		resp, err := usecase.UploadMeeting(ctx, newReq())

		assert.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, "上傳成功，等待排程轉碼", resp.Message)
		assert.NotEmpty(t, resp.JobID)

		mockRepo.AssertExpectations(t)
		mockMinIO.AssertExpectations(t)
	})

	//**情境 2: 建立暫存檔案失敗**
	t.Run("建立暫存檔案失敗", func(t *testing.T) {
		originalCreateFile := createFile
		defer func() { createFile = originalCreateFile }()

		createFile = func(name string) (*os.File, error) {
			return nil, errors.New("create file error")
		}

		req := newReq()
		resp, err := usecase.UploadMeeting(ctx, req)
		assert.Error(t, err)
		assert.Equal(t, fmt.Sprintf("fileName[%s] 建立暫存檔案失敗 : create file error", req.FileName), err.Error())
		assert.Nil(t, resp)
	})

	//**情境 3: 儲存檔案失敗**
	t.Run("儲存檔案失敗", func(t *testing.T) {
		originalCopyFile := copyFile
		defer func() { copyFile = originalCopyFile }()

		copyFile = func(dst *os.File, src io.Reader) (written int64, err error) {
			return 0, errors.New("copy file error")
		}

		req := newReq()
		resp, err := usecase.UploadMeeting(ctx, req)
		assert.Error(t, err)
		assert.Equal(t, fmt.Sprintf("fileName[%s] 儲存檔案失敗 : copy file error", req.FileName), err.Error())
		assert.Nil(t, resp)
	})

	//**情境 4: 建立工作紀錄失敗，暫存檔仍要清掉**
	t.Run("建立工作紀錄失敗", func(t *testing.T) {
		mockRepo.On("Create", ctx, mock.Anything).Return(errors.New("db error")).Once()

		req := newReq()
		resp, err := usecase.UploadMeeting(ctx, req)
		assert.Error(t, err)
		assert.Equal(t, fmt.Sprintf("fileName[%s] 建立工作紀錄失敗 : db error", req.FileName), err.Error())
		assert.Nil(t, resp)

		entries, readErr := os.ReadDir("./tmp")
		require.NoError(t, readErr)
		assert.Empty(t, entries, "失敗路徑不能留下暫存檔")
	})

	//**情境 5: 上傳 MinIO 失敗，暫存檔仍要清掉**
	t.Run("上傳 MinIO 失敗", func(t *testing.T) {
		mockRepo.On("Create", ctx, mock.Anything).Return(nil).Once()
		mockMinIO.On("UploadFile", ctx, mock.Anything, mock.Anything, "video/mp4").
			Return(errors.New("minio error")).Once()

		req := newReq()
		resp, err := usecase.UploadMeeting(ctx, req)
		assert.Error(t, err)
		assert.Equal(t, fmt.Sprintf("fileName[%s] 上傳 MinIO 失敗 : minio error", req.FileName), err.Error())
		assert.Nil(t, resp)

		entries, readErr := os.ReadDir("./tmp")
		require.NoError(t, readErr)
		assert.Empty(t, entries, "失敗路徑不能留下暫存檔")
	})
}

func TestGetMeeting(t *testing.T) {
	mockMinIO := new(MockMinIOClient)
	mockRepo := new(MockJobRepo)
	mockRendition := new(MockRenditionRepo)
	mockProducer := new(MockProducer)

	logger.SetNewNop()
	expiry := 15 * time.Minute
	usecase := NewMediaUseCase(mockMinIO, mockRepo, mockRendition, mockProducer, expiry)

	ctx := context.Background()
	jobID := "J1"

	// **情境 1: 已完成的工作附上各 rendition 的下載連結**
	t.Run("完成的工作附下載連結", func(t *testing.T) {
		mockRepo.On("GetByID", ctx, jobID).Return(&domain.JobRecord{
			JobID:           jobID,
			Title:           "Weekly Sync",
			Status:          domain.JobDone,
			DurationSeconds: 10,
		}, nil).Once()
		mockRendition.On("ListByJob", ctx, jobID).Return([]domain.Rendition{
			{JobID: jobID, VariantName: "720p", Locator: "meetings/J1/out_720p.mp4"},
			{JobID: jobID, VariantName: "480p", Locator: "meetings/J1/out_480p.mp4"},
		}, nil).Once()
		mockMinIO.On("PresignGetURL", ctx, "meetings/J1/out_720p.mp4", expiry).
			Return("http://signed/720p", nil).Once()
		mockMinIO.On("PresignGetURL", ctx, "meetings/J1/out_480p.mp4", expiry).
			Return("http://signed/480p", nil).Once()

		resp, err := usecase.GetMeeting(ctx, jobID)

		assert.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, string(domain.JobDone), resp.Status)
		assert.Equal(t, float64(10), resp.DurationSeconds)
		assert.Equal(t, map[string]string{
			"720p": "http://signed/720p",
			"480p": "http://signed/480p",
		}, resp.RenditionURLs)

		mockRepo.AssertExpectations(t)
		mockRendition.AssertExpectations(t)
		mockMinIO.AssertExpectations(t)
	})

	// **情境 2: 處理中的工作只回狀態**
	t.Run("處理中的工作只回狀態", func(t *testing.T) {
		mockRepo.On("GetByID", ctx, jobID).Return(&domain.JobRecord{
			JobID:  jobID,
			Status: domain.JobProcessing,
		}, nil).Once()

		resp, err := usecase.GetMeeting(ctx, jobID)

		assert.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, string(domain.JobProcessing), resp.Status)
		assert.Empty(t, resp.RenditionURLs)

		mockRepo.AssertExpectations(t)
	})

	// **情境 3: 失敗的工作帶回錯誤訊息**
	t.Run("失敗的工作帶回錯誤訊息", func(t *testing.T) {
		mockRepo.On("GetByID", ctx, jobID).Return(&domain.JobRecord{
			JobID:  jobID,
			Status: domain.JobFailed,
			Error:  "ffprobe 無法解析來源",
		}, nil).Once()

		resp, err := usecase.GetMeeting(ctx, jobID)

		assert.NoError(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, string(domain.JobFailed), resp.Status)
		assert.Equal(t, "ffprobe 無法解析來源", resp.Error)

		mockRepo.AssertExpectations(t)
	})

	// **情境 4: 找不到工作紀錄**
	t.Run("找不到工作紀錄", func(t *testing.T) {
		mockRepo.On("GetByID", ctx, jobID).Return(nil, domain.ErrJobNotFound).Once()

		resp, err := usecase.GetMeeting(ctx, jobID)

		assert.Error(t, err)
		assert.Nil(t, resp)

		mockRepo.AssertExpectations(t)
	})
}

func TestSubmitProcessing(t *testing.T) {
	mockProducer := new(MockProducer)
	logger.SetNewNop()
	usecase := NewMediaUseCase(new(MockMinIOClient), new(MockJobRepo), new(MockRenditionRepo), mockProducer, 0)

	ctx := context.Background()

	// **情境 1: 轉交 producer 排程**
	t.Run("轉交 producer 排程", func(t *testing.T) {
		mockProducer.On("Submit", ctx, "J1").Return("msg-1", nil).Once()

		messageID, err := usecase.SubmitProcessing(ctx, "J1")

		assert.NoError(t, err)
		assert.Equal(t, "msg-1", messageID)
		mockProducer.AssertExpectations(t)
	})

	// **情境 2: producer 錯誤原樣往上傳**
	t.Run("producer 錯誤原樣往上傳", func(t *testing.T) {
		mockProducer.On("Submit", ctx, "J1").Return("", domain.ErrAlreadyInProgress).Once()

		messageID, err := usecase.SubmitProcessing(ctx, "J1")

		assert.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrAlreadyInProgress))
		assert.Empty(t, messageID)
		mockProducer.AssertExpectations(t)
	})
}

func TestListMeetings(t *testing.T) {
	mockRepo := new(MockJobRepo)
	logger.SetNewNop()
	usecase := NewMediaUseCase(new(MockMinIOClient), mockRepo, new(MockRenditionRepo), new(MockProducer), 0)

	ctx := context.Background()
	ownerID := "owner-1"

	// **情境 1: 成功列出工作**
	t.Run("成功列出工作", func(t *testing.T) {
		mockRepo.On("FindByOwner", ctx, ownerID).Return([]domain.JobRecord{
			{JobID: "J1", Status: domain.JobDone},
			{JobID: "J2", Status: domain.JobQueued},
		}, nil).Once()

		records, err := usecase.ListMeetings(ctx, ownerID)

		assert.NoError(t, err)
		assert.Len(t, records, 2)
		mockRepo.AssertExpectations(t)
	})

	// **情境 2: 查詢失敗**
	t.Run("查詢失敗", func(t *testing.T) {
		mockRepo.On("FindByOwner", ctx, ownerID).Return(nil, errors.New("db error")).Once()

		records, err := usecase.ListMeetings(ctx, ownerID)

		assert.Error(t, err)
		assert.Nil(t, records)
		assert.Equal(t, fmt.Sprintf("ownerId[%s] 查詢工作列表失敗: db error", ownerID), err.Error())
		mockRepo.AssertExpectations(t)
	})
}
