package handlers

import (
	"errors"
	"net/http"

	"meeting_media_service/internal/mediajob/app"
	"meeting_media_service/internal/mediajob/domain"

	"github.com/gofiber/fiber/v2"
)

// MediaHandler definition meeting media handler
type MediaHandler struct {
	Usecase app.MediaUseCase
}

// UploadMeeting 接收上傳請求，建立工作紀錄並上傳原始檔
func (h *MediaHandler) UploadMeeting(c *fiber.Ctx) error {
	title := c.FormValue("title")
	ownerID := c.FormValue("owner_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "未檢測到檔案"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "無法讀取檔案"})
	}
	defer file.Close()

	res, err := h.Usecase.UploadMeeting(c.Context(), app.UploadMeetingReq{
		Title:    title,
		OwnerID:  ownerID,
		FileName: fileHeader.Filename,
		File:     file,
	})
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(http.StatusCreated).JSON(res)
}

// SubmitProcessing 將已上傳的 meeting 排入轉碼佇列，立即返回
func (h *MediaHandler) SubmitProcessing(c *fiber.Ctx) error {
	jobID := c.Params("id")

	messageID, err := h.Usecase.SubmitProcessing(c.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyInProgress), errors.Is(err, domain.ErrAlreadyCompleted):
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"jobId":     jobID,
		"messageId": messageID,
	})
}

// GetMeeting 查詢工作狀態與下載連結
func (h *MediaHandler) GetMeeting(c *fiber.Ctx) error {
	jobID := c.Params("id")

	res, err := h.Usecase.GetMeeting(c.Context(), jobID)
	if err != nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(res)
}

// ListMeetings 依 owner 列出工作
func (h *MediaHandler) ListMeetings(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")

	records, err := h.Usecase.ListMeetings(c.Context(), ownerID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(records)
}
