package router

import (
	"meeting_media_service/internal/api/handlers"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes 註冊 meeting 相關的路由
func RegisterRoutes(app *fiber.App, mediaHandler *handlers.MediaHandler) {
	app.Post("/meetings/upload", mediaHandler.UploadMeeting)
	app.Post("/meetings/:id/process", mediaHandler.SubmitProcessing)
	app.Get("/meetings/:id", mediaHandler.GetMeeting)
	app.Get("/meetings", mediaHandler.ListMeetings)
}
