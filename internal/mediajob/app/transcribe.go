package app

import (
	"context"
	"fmt"
	"strings"

	"meeting_media_service/pkg/logger"

	"go.uber.org/zap"
)

// Transcriber definition optional transcript generation
type Transcriber interface {
	// Transcribe 對抽出的音軌產生 transcript 檔，回傳產出物；
	// 未設定外部工具時回傳 (nil, nil)，留給人工流程補上
	Transcribe(ctx context.Context, audioPath string, ws *Workspace) (*Artifact, error)
}

// commandTranscriber 呼叫外部轉寫工具：<cmd> <audioPath> <outputPath>。
// 轉寫是選配階段，失敗只記 log 不讓整個 job 失敗。
type commandTranscriber struct {
	command string
}

// NewCommandTranscriber create a Transcriber，command 留空代表停用
func NewCommandTranscriber(command string) Transcriber {
	return &commandTranscriber{command: command}
}

func (t *commandTranscriber) Transcribe(ctx context.Context, audioPath string, ws *Workspace) (*Artifact, error) {
	parts := strings.Fields(t.command)
	if len(parts) == 0 {
		// 未設定工具（空白也算），transcript 留給人工流程
		return nil, nil
	}

	name := "transcript.txt"
	outputPath := ws.Path(name)
	args := append(parts[1:], audioPath, outputPath)
	if output, err := runTool(ctx, parts[0], args...); err != nil {
		logger.Log.Warn("外部轉寫工具失敗，transcript 留待人工補上",
			zap.String("command", t.command),
			zap.String("output", strings.TrimSpace(string(output))),
			zap.Error(err),
		)
		return nil, fmt.Errorf("轉寫工具失敗: %w", err)
	}

	return &Artifact{
		Name:        name,
		Path:        outputPath,
		ContentType: "text/plain",
	}, nil
}
