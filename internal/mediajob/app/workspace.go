package app

import (
	"fmt"
	"os"
	"path/filepath"

	errprocess "meeting_media_service/pkg/err"

	"github.com/google/uuid"
)

// Workspace 單次處理嘗試專屬的暫存目錄，同一時間只屬於一個 job，
// 不論成功失敗都要 Cleanup
type Workspace struct {
	Dir string
}

// 讓測試替換檔案系統操作（參考 streaming_usecase 的包裝函數作法）
var (
	mkdirAll = func(path string, perm os.FileMode) error {
		return os.MkdirAll(path, perm)
	}

	removeAll = func(path string) error {
		return os.RemoveAll(path)
	}
)

// NewWorkspace 以 jobID 加亂數後綴建立唯一目錄，避免同 job
// 的兩次並發投遞互踩
func NewWorkspace(baseDir, jobID string) (*Workspace, error) {
	dir := filepath.Join(baseDir, fmt.Sprintf("job_%s_%s", jobID, uuid.NewString()[:8]))
	if err := mkdirAll(dir, 0755); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 建立暫存目錄失敗 : %v", jobID, err))
	}
	return &Workspace{Dir: dir}, nil
}

// Path 組出工作目錄內的檔案路徑
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Cleanup 移除整個工作目錄，可重複呼叫
func (w *Workspace) Cleanup() error {
	return removeAll(w.Dir)
}
