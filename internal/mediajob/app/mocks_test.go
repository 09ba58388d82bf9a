package app

import (
	"context"
	"io"
	"time"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/internal/mediajob/queue"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
)

// MockJobRepo 是 JobRepo 的 Mock
type MockJobRepo struct {
	mock.Mock
}

func (m *MockJobRepo) Create(ctx context.Context, record *domain.JobRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockJobRepo) GetByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.JobRecord), args.Error(1)
}

func (m *MockJobRepo) MergeUpdate(ctx context.Context, jobID string, fields bson.M) error {
	args := m.Called(ctx, jobID, fields)
	return args.Error(0)
}

func (m *MockJobRepo) FindByOwner(ctx context.Context, ownerID string) ([]domain.JobRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.JobRecord), args.Error(1)
}

func (m *MockJobRepo) Delete(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockRenditionRepo 是 RenditionRepo 的 Mock
type MockRenditionRepo struct {
	mock.Mock
}

func (m *MockRenditionRepo) Upsert(ctx context.Context, rendition *domain.Rendition) error {
	args := m.Called(ctx, rendition)
	return args.Error(0)
}

func (m *MockRenditionRepo) ListByJob(ctx context.Context, jobID string) ([]domain.Rendition, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Rendition), args.Error(1)
}

func (m *MockRenditionRepo) DeleteByJob(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockIdempotencyRepo 是 IdempotencyRepo 的 Mock
type MockIdempotencyRepo struct {
	mock.Mock
}

func (m *MockIdempotencyRepo) Lookup(ctx context.Context, token string) (*domain.IdempotencyEntry, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IdempotencyEntry), args.Error(1)
}

func (m *MockIdempotencyRepo) Record(ctx context.Context, entry *domain.IdempotencyEntry) (bool, error) {
	args := m.Called(ctx, entry)
	return args.Bool(0), args.Error(1)
}

// MockMinIOClient 是 MinIOClientRepo 的 Mock
type MockMinIOClient struct {
	mock.Mock
}

func (m *MockMinIOClient) UploadFile(ctx context.Context, objectName, filePath, contentType string) error {
	args := m.Called(ctx, objectName, filePath, contentType)
	return args.Error(0)
}

func (m *MockMinIOClient) DownloadFile(ctx context.Context, objectName, destPath string) error {
	args := m.Called(ctx, objectName, destPath)
	return args.Error(0)
}

func (m *MockMinIOClient) StatFile(ctx context.Context, objectName string) (int64, error) {
	args := m.Called(ctx, objectName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMinIOClient) GetObject(ctx context.Context, objectName string, opts minio.GetObjectOptions) (io.Reader, error) {
	args := m.Called(ctx, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.Reader), args.Error(1)
}

func (m *MockMinIOClient) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// MockJobQueue 是 JobQueue 的 Mock
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, msg domain.JobMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockJobQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]queue.Delivery, error) {
	args := m.Called(ctx, maxMessages, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]queue.Delivery), args.Error(1)
}

func (m *MockJobQueue) Acknowledge(ctx context.Context, lease queue.Lease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

// fakeRunner 是 PipelineRunner 的測試替身，記錄呼叫次數
type fakeRunner struct {
	calls  int
	result *PipelineResult
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, inputPath string, ws *Workspace) (*PipelineResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	// 把路徑補成工作目錄內的實際位置
	out := &PipelineResult{DurationSeconds: f.result.DurationSeconds}
	for _, a := range f.result.Artifacts {
		a.Path = ws.Path(a.Name)
		out.Artifacts = append(out.Artifacts, a)
	}
	return out, nil
}

// stubProcessor 是 Processor 的測試替身
type stubProcessor struct {
	calls   int
	err     error
	done    chan struct{}
	results []domain.JobMessage
}

func (s *stubProcessor) Process(ctx context.Context, msg domain.JobMessage) (*ProcessResult, error) {
	s.calls++
	s.results = append(s.results, msg)
	if s.done != nil {
		select {
		case s.done <- struct{}{}:
		default:
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ProcessResult{JobID: msg.JobID}, nil
}
