package app

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"meeting_media_service/internal/mediajob/domain"
	"meeting_media_service/pkg"
	"meeting_media_service/pkg/config"
)

// Artifact pipeline 單一產出物（僅存在於工作目錄，發佈交給 processor）
type Artifact struct {
	Name        string // 發佈時的檔名，例如 out_720p.mp4
	VariantName string // rendition 紀錄用；非 rendition 類產出留空
	Path        string // 工作目錄內的絕對路徑
	ContentType string
}

// PipelineResult pipeline 全部階段的結果
type PipelineResult struct {
	DurationSeconds float64
	Artifacts       []Artifact
}

// PipelineRunner definition transcode pipeline
type PipelineRunner interface {
	Run(ctx context.Context, inputPath string, ws *Workspace) (*PipelineResult, error)
}

// 讓測試替換外部工具呼叫（參考 createDir / createFile 的包裝作法）
var (
	runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).CombinedOutput()
	}

	probeTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return exec.CommandContext(ctx, name, args...).Output()
	}
)

// ffmpegPipeline 以固定順序執行 ffprobe / ffmpeg 各階段：
// 探測長度 → 各解析度重編碼（由高至低）→ 單聲道音軌 → 等距截圖。
// 任一階段失敗即中止後續階段，並把工具診斷輸出帶進錯誤。
// 整條 pipeline 只寫工作目錄，重新投遞時對新抓的來源整條重跑，
// 不做單一階段續跑。外部工具不設逾時，掛死的呼叫由 lease 過期
// 後的重新投遞接手。
type ffmpegPipeline struct {
	cfg config.PipelineConfig
}

// NewFFmpegPipeline create a PipelineRunner
func NewFFmpegPipeline(cfg config.PipelineConfig) PipelineRunner {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = "64k"
	}
	if cfg.ThumbnailCount <= 0 {
		cfg.ThumbnailCount = 3
	}

	// 重複的 variant 名稱會寫到同一個輸出檔，只保留第一個
	var names []string
	var variants []config.VariantConfig
	for _, variant := range cfg.Variants {
		if pkg.Contains(names, variant.Name) {
			continue
		}
		names = append(names, variant.Name)
		variants = append(variants, variant)
	}
	cfg.Variants = variants

	return &ffmpegPipeline{cfg: cfg}
}

// Run 依序執行全部階段
func (p *ffmpegPipeline) Run(ctx context.Context, inputPath string, ws *Workspace) (*PipelineResult, error) {
	duration, err := p.probeDuration(ctx, inputPath)
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{DurationSeconds: duration}

	// 各解析度重編碼，依設定順序（高解析度在前），CPU 最重的階段
	for _, variant := range p.cfg.Variants {
		artifact, err := p.encodeVariant(ctx, inputPath, ws, variant)
		if err != nil {
			return nil, err
		}
		result.Artifacts = append(result.Artifacts, *artifact)
	}

	audio, err := p.extractAudio(ctx, inputPath, ws)
	if err != nil {
		return nil, err
	}
	result.Artifacts = append(result.Artifacts, *audio)

	thumbs, err := p.sampleThumbnails(ctx, inputPath, ws, duration)
	if err != nil {
		return nil, err
	}
	result.Artifacts = append(result.Artifacts, thumbs...)

	return result, nil
}

// probeDuration 以 ffprobe 取得來源長度（秒）
func (p *ffmpegPipeline) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	output, err := probeTool(ctx, p.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe 無法解析來源: %v: %w", err, domain.ErrUnreadableMedia)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, parseErr := strconv.ParseFloat(durationStr, 64)
	if parseErr != nil || duration <= 0 {
		return 0, fmt.Errorf("ffprobe 輸出無法解析 [%s]: %w", durationStr, domain.ErrUnreadableMedia)
	}
	return duration, nil
}

// encodeVariant 產生單一解析度的重編碼檔 out_<variant>.mp4
func (p *ffmpegPipeline) encodeVariant(ctx context.Context, inputPath string, ws *Workspace, variant config.VariantConfig) (*Artifact, error) {
	name := fmt.Sprintf("out_%s.mp4", variant.Name)
	outputPath := ws.Path(name)

	cmdArgs := []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-vf", fmt.Sprintf("scale=%s", variant.Scale),
		"-b:v", variant.VideoBitrate,
		"-c:a", "aac",
		"-movflags", "+faststart",
		outputPath,
	}
	if output, err := runTool(ctx, p.cfg.FFmpegPath, cmdArgs...); err != nil {
		return nil, fmt.Errorf("variant[%s] FFmpeg 轉碼失敗: %v, output: %s: %w",
			variant.Name, err, strings.TrimSpace(string(output)), domain.ErrPipelineStageFailed)
	}

	return &Artifact{
		Name:        name,
		VariantName: variant.Name,
		Path:        outputPath,
		ContentType: "video/mp4",
	}, nil
}

// extractAudio 抽出壓縮過的單聲道音軌（後續轉寫用）
func (p *ffmpegPipeline) extractAudio(ctx context.Context, inputPath string, ws *Workspace) (*Artifact, error) {
	name := "audio.m4a"
	outputPath := ws.Path(name)

	cmdArgs := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-c:a", "aac",
		"-b:a", p.cfg.AudioBitrate,
		outputPath,
	}
	if output, err := runTool(ctx, p.cfg.FFmpegPath, cmdArgs...); err != nil {
		return nil, fmt.Errorf("FFmpeg 抽音軌失敗: %v, output: %s: %w",
			err, strings.TrimSpace(string(output)), domain.ErrPipelineStageFailed)
	}

	return &Artifact{
		Name:        name,
		Path:        outputPath,
		ContentType: "audio/mp4",
	}, nil
}

// sampleThumbnails 在整段長度內等距截固定張數的靜態縮圖
func (p *ffmpegPipeline) sampleThumbnails(ctx context.Context, inputPath string, ws *Workspace, duration float64) ([]Artifact, error) {
	var artifacts []Artifact

	// 等距取樣：第 n 張落在 (n+0.5)/count 的位置，避開頭尾黑幀
	for i := 0; i < p.cfg.ThumbnailCount; i++ {
		offset := duration * (float64(i) + 0.5) / float64(p.cfg.ThumbnailCount)
		name := fmt.Sprintf("thumb_%d.jpg", i)
		outputPath := ws.Path(name)

		cmdArgs := []string{
			"-y",
			"-ss", fmt.Sprintf("%.3f", offset),
			"-i", inputPath,
			"-frames:v", "1",
			"-q:v", "3",
			outputPath,
		}
		if output, err := runTool(ctx, p.cfg.FFmpegPath, cmdArgs...); err != nil {
			return nil, fmt.Errorf("thumbnail[%d] FFmpeg 截圖失敗: %v, output: %s: %w",
				i, err, strings.TrimSpace(string(output)), domain.ErrPipelineStageFailed)
		}

		artifacts = append(artifacts, Artifact{
			Name:        name,
			Path:        outputPath,
			ContentType: "image/jpeg",
		})
	}
	return artifacts, nil
}
