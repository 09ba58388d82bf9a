package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/internal/mediajob/repository"
	"meeting_media_service/pkg/database"
	errprocess "meeting_media_service/pkg/err"
	"meeting_media_service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ProcessResult 單次工作完成的回應 payload，也是冪等紀錄的內容
type ProcessResult struct {
	JobID           string   `json:"jobId"`
	DurationSeconds float64  `json:"durationSeconds"`
	Renditions      []string `json:"renditions"` // 發佈後的 object key
}

// Processor definition per-job state machine driver
type Processor interface {
	// Process 驅動 queued → processing → done|failed；
	// 回傳錯誤時訊息不會被確認，留給 lease 過期後重新投遞
	Process(ctx context.Context, msg domain.JobMessage) (*ProcessResult, error)
}

type processor struct {
	jobRepo       repository.JobRepo
	renditionRepo repository.RenditionRepo
	ledger        repository.IdempotencyRepo
	blob          database.MinIOClientRepo
	runner        PipelineRunner
	transcriber   Transcriber
	workDir       string
}

// NewProcessor create a Processor
func NewProcessor(
	jobRepo repository.JobRepo,
	renditionRepo repository.RenditionRepo,
	ledger repository.IdempotencyRepo,
	blob database.MinIOClientRepo,
	runner PipelineRunner,
	transcriber Transcriber,
	workDir string,
) Processor {
	if workDir == "" {
		workDir = "./tmp"
	}
	return &processor{
		jobRepo:       jobRepo,
		renditionRepo: renditionRepo,
		ledger:        ledger,
		blob:          blob,
		runner:        runner,
		transcriber:   transcriber,
		workDir:       workDir,
	}
}

// processToken 推導這次投遞的冪等 token
func processToken(msg domain.JobMessage) string {
	if msg.Token != "" {
		return msg.Token
	}
	return msg.JobID + ":process"
}

// Process 執行單一工作
//
// 發佈用固定 object key（meetings/<jobId>/<檔名>），重新投遞時
// 同 key 覆寫；冪等帳冊擋掉整個 job 的重複執行。兩者合起來讓
// at-least-once 的重複投遞與並發處理都安全。
func (p *processor) Process(ctx context.Context, msg domain.JobMessage) (*ProcessResult, error) {
	token := processToken(msg)

	// 1. 冪等檢查：帳冊有紀錄就直接回存好的結果，不再重做
	if entry, err := p.ledger.Lookup(ctx, token); err != nil {
		logger.Log.Warn("冪等帳冊查詢失敗，照常處理",
			zap.String("jobId", msg.JobID), zap.Error(err))
	} else if entry != nil {
		var result ProcessResult
		if err := json.Unmarshal(entry.Result, &result); err == nil {
			logger.Log.Info("重複投遞，以冪等紀錄短路",
				zap.String("jobId", msg.JobID), zap.String("token", token))
			return &result, nil
		}
		// 紀錄損毀就照常重做，發佈 key 固定，重跑結果一致；
		// 回錯誤反而會讓同一則訊息卡到 TTL 過期
		logger.Log.Warn("冪等紀錄解析失敗，照常處理",
			zap.String("jobId", msg.JobID), zap.String("token", token))
	}

	// 2. 讀取工作紀錄，查無紀錄屬結構性錯誤，不值得無限重試
	record, err := p.jobRepo.GetByID(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, errprocess.Wrap(domain.ErrJobNotFound, fmt.Sprintf("jobId[%s] 查無工作紀錄", msg.JobID))
		}
		return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 讀取工作紀錄失敗 : %v", msg.JobID, err))
	}

	// 3. 不管先前狀態直接覆寫成 processing（producer 端先 enqueue
	//    後標記，這裡補平那段視窗）
	if err := p.jobRepo.MergeUpdate(ctx, msg.JobID, bson.M{"status": domain.JobProcessing}); err != nil {
		return nil, errprocess.Set(fmt.Sprintf("jobId[%s] 更新狀態為 processing 失敗 : %v", msg.JobID, err))
	}

	// 4. 建立暫存工作目錄，所有離開路徑都要清掉
	ws, err := NewWorkspace(p.workDir, msg.JobID)
	if err != nil {
		return nil, p.markFailed(ctx, msg.JobID, fmt.Sprintf("建立工作目錄失敗: %v", err), err)
	}
	defer func() {
		if cleanErr := ws.Cleanup(); cleanErr != nil {
			logger.Log.Warn("清理工作目錄失敗",
				zap.String("jobId", msg.JobID), zap.String("dir", ws.Dir), zap.Error(cleanErr))
		}
	}()

	result, err := p.run(ctx, msg, record, ws)
	if err != nil {
		return nil, p.markFailed(ctx, msg.JobID, err.Error(), err)
	}

	// 10. 寫冪等紀錄；寫失敗不影響本次成功（下次重複投遞只是
	//     多做一次白工，結果仍一致）
	payload, _ := json.Marshal(result)
	if _, err := p.ledger.Record(ctx, &domain.IdempotencyEntry{
		Token:     token,
		JobID:     msg.JobID,
		Operation: "process",
		Result:    payload,
	}); err != nil {
		logger.Log.Warn("冪等帳冊寫入失敗",
			zap.String("jobId", msg.JobID), zap.Error(err))
	}

	return result, nil
}

// run 工作目錄就緒後的主流程：抓檔 → pipeline → 發佈 → 記帳
func (p *processor) run(ctx context.Context, msg domain.JobMessage, record *domain.JobRecord, ws *Workspace) (*ProcessResult, error) {
	// 5. 從 blob store 抓原始檔進工作目錄
	inputPath := ws.Path("source" + filepath.Ext(record.OriginalFilename))
	if err := p.blob.DownloadFile(ctx, record.SourceLocator, inputPath); err != nil {
		return nil, fmt.Errorf("下載原始檔[%s]失敗: %v", record.SourceLocator, err)
	}

	// 6. 跑轉碼 pipeline
	pipelineResult, err := p.runner.Run(ctx, inputPath, ws)
	if err != nil {
		return nil, err
	}

	// 選配：對抽出的音軌做轉寫，失敗不影響 job
	if transcript := p.maybeTranscribe(ctx, pipelineResult, ws); transcript != nil {
		pipelineResult.Artifacts = append(pipelineResult.Artifacts, *transcript)
	}

	// 7+8. 以固定 key 發佈所有產出物，variant 類寫 rendition 紀錄
	result := &ProcessResult{
		JobID:           msg.JobID,
		DurationSeconds: pipelineResult.DurationSeconds,
	}
	for _, artifact := range pipelineResult.Artifacts {
		objectKey := domain.ArtifactKey(msg.JobID, artifact.Name)
		if err := p.blob.UploadFile(ctx, objectKey, artifact.Path, artifact.ContentType); err != nil {
			return nil, fmt.Errorf("發佈產出物[%s]失敗: %v", objectKey, err)
		}

		if artifact.VariantName != "" {
			size, statErr := p.blob.StatFile(ctx, objectKey)
			if statErr != nil {
				logger.Log.Warn("取得產出物大小失敗",
					zap.String("objectKey", objectKey), zap.Error(statErr))
			}
			if err := p.renditionRepo.Upsert(ctx, &domain.Rendition{
				JobID:       msg.JobID,
				VariantName: artifact.VariantName,
				Locator:     objectKey,
				SizeBytes:   size,
			}); err != nil {
				return nil, fmt.Errorf("寫入 rendition 紀錄[%s]失敗: %v", objectKey, err)
			}
			result.Renditions = append(result.Renditions, objectKey)
		}
	}

	// 9. 完成，寫回長度
	if err := p.jobRepo.MergeUpdate(ctx, msg.JobID, bson.M{
		"status":           domain.JobDone,
		"duration_seconds": pipelineResult.DurationSeconds,
	}); err != nil {
		return nil, fmt.Errorf("更新狀態為 done 失敗: %v", err)
	}

	return result, nil
}

func (p *processor) maybeTranscribe(ctx context.Context, pipelineResult *PipelineResult, ws *Workspace) *Artifact {
	if p.transcriber == nil {
		return nil
	}
	for _, artifact := range pipelineResult.Artifacts {
		if artifact.Name == "audio.m4a" {
			transcript, err := p.transcriber.Transcribe(ctx, artifact.Path, ws)
			if err != nil {
				// 已在 transcriber 記 log，轉寫留待人工流程
				return nil
			}
			return transcript
		}
	}
	return nil
}

// markFailed 記下失敗狀態與可讀訊息，並把原始錯誤往上拋
// （訊息不確認，交給佇列重新投遞）
func (p *processor) markFailed(ctx context.Context, jobID, message string, cause error) error {
	if err := p.jobRepo.MergeUpdate(ctx, jobID, bson.M{
		"status": domain.JobFailed,
		"error":  message,
	}); err != nil {
		logger.Log.Error("更新狀態為 failed 失敗",
			zap.String("jobId", jobID), zap.Error(err))
	}
	logger.Log.Error(fmt.Sprintf("jobId[%s] 處理失敗 : %s", jobID, message))
	// 用 %w 保留底層分類，orchestrator 與測試靠 errors.Is 判斷
	return fmt.Errorf("jobId[%s] 處理失敗 : %w", jobID, cause)
}
