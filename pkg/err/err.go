package errprocess

import (
	"errors"
	"fmt"

	"meeting_media_service/pkg/logger"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Wrap 記錄並包裝底層分類錯誤，呼叫端可用 errors.Is 判斷
func Wrap(kind error, errMsg string) error {
	logger.Log.Error(errMsg)
	return fmt.Errorf("%s: %w", errMsg, kind)
}
