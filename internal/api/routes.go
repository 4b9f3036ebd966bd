package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.POST("/webhook", handler.ReceiveWebhook)

	api := router.Group("/api")
	{
		api.GET("/properties", handler.ListProperties)
		api.POST("/properties", handler.CreateProperty)
		api.GET("/properties/:id", handler.GetProperty)
		api.PUT("/properties/:id", handler.UpdateProperty)
		api.DELETE("/properties/:id", handler.DeleteProperty)

		api.POST("/properties/:id/submit-review", handler.SubmitReview)
		api.POST("/properties/:id/return-draft", handler.ReturnDraft)
		api.POST("/properties/:id/approve", handler.Approve)
		api.POST("/properties/:id/send-to-mls", handler.SendToMLS)
		api.POST("/properties/:id/remove-from-mls", handler.RemoveFromMLS)
		api.POST("/properties/:id/sell", handler.Sell)
		api.POST("/properties/:id/unpublish", handler.Unpublish)
		api.POST("/properties/:id/republish", handler.Republish)
		api.POST("/properties/:id/archive", handler.Archive)
		api.POST("/properties/:id/fix-rejected", handler.FixRejected)
		api.POST("/properties/:id/detect-district", handler.DetectDistrict)

		api.GET("/properties/:id/activities", handler.ListActivities)
		api.POST("/properties/:id/images", handler.UploadImage)
		api.DELETE("/images/:id", handler.DeleteImage)

		api.POST("/sync/pull", handler.TriggerPull)
		api.POST("/sync/retry", handler.TriggerRetry)
		api.POST("/sync/refresh-attributes", handler.RefreshAttributes)

		api.GET("/references/cities", handler.ListCities)
		api.GET("/references/districts", handler.ListDistricts)
		api.GET("/references/streets", handler.ListStreets)
	}
}
