package app

import (
	"context"
	"errors"
	"testing"

	"meeting_media_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	// **情境 1: 成功產生 transcript**
	t.Run("成功產生 transcript", func(t *testing.T) {
		originalRunTool := runTool
		defer func() { runTool = originalRunTool }()

		var gotName string
		var gotArgs []string
		runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotName = name
			gotArgs = args
			return nil, nil
		}

		ws, err := NewWorkspace(t.TempDir(), "J1")
		require.NoError(t, err)
		defer ws.Cleanup()

		transcriber := NewCommandTranscriber("whisper --model base")
		artifact, err := transcriber.Transcribe(ctx, "/work/audio.m4a", ws)

		assert.NoError(t, err)
		require.NotNil(t, artifact)
		assert.Equal(t, "transcript.txt", artifact.Name)
		assert.Equal(t, "text/plain", artifact.ContentType)

		assert.Equal(t, "whisper", gotName)
		// 工具參數在前，音軌與輸出路徑在後
		require.Len(t, gotArgs, 4)
		assert.Equal(t, []string{"--model", "base", "/work/audio.m4a"}, gotArgs[:3])
		assert.Equal(t, ws.Path("transcript.txt"), gotArgs[3])
	})

	// **情境 2: 未設定工具時回傳 nil 不報錯**
	t.Run("未設定工具時停用", func(t *testing.T) {
		transcriber := NewCommandTranscriber("")

		artifact, err := transcriber.Transcribe(ctx, "/work/audio.m4a", nil)

		assert.NoError(t, err)
		assert.Nil(t, artifact)
	})

	// **情境 3: 指令只有空白時同樣視為停用**
	t.Run("指令只有空白時停用", func(t *testing.T) {
		transcriber := NewCommandTranscriber("   ")

		artifact, err := transcriber.Transcribe(ctx, "/work/audio.m4a", nil)

		assert.NoError(t, err)
		assert.Nil(t, artifact)
	})

	// **情境 4: 工具失敗回傳錯誤，由呼叫端決定忽略**
	t.Run("轉寫工具失敗", func(t *testing.T) {
		originalRunTool := runTool
		defer func() { runTool = originalRunTool }()

		runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("model not found"), errors.New("exit status 1")
		}

		ws, err := NewWorkspace(t.TempDir(), "J1")
		require.NoError(t, err)
		defer ws.Cleanup()

		transcriber := NewCommandTranscriber("whisper")
		artifact, err := transcriber.Transcribe(ctx, "/work/audio.m4a", ws)

		assert.Error(t, err)
		assert.Nil(t, artifact)
	})
}
