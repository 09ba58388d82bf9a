package domain

import "errors"

// 核心錯誤分類。包裝時一律用 fmt.Errorf("...: %w", Err...)，
// 呼叫端以 errors.Is 判斷類型。
var (
	//ErrQueueUnavailable 佇列傳輸層失敗
	ErrQueueUnavailable = errors.New("queue unavailable")
	//ErrLeaseExpired lease 已過期，訊息可能已被其他 worker 重新取走
	ErrLeaseExpired = errors.New("lease expired")
	//ErrJobNotFound metadata 中查無此 job
	ErrJobNotFound = errors.New("job not found")
	//ErrUnreadableMedia 工具無法解析來源媒體
	ErrUnreadableMedia = errors.New("unreadable media")
	//ErrPipelineStageFailed pipeline 某一階段失敗
	ErrPipelineStageFailed = errors.New("pipeline stage failed")
	//ErrAlreadyInProgress job 已在處理中，拒絕重複提交
	ErrAlreadyInProgress = errors.New("job already in progress")
	//ErrAlreadyCompleted job 已完成，拒絕重複提交
	ErrAlreadyCompleted = errors.New("job already completed")
)
