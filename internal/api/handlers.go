package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/images"
	"github.com/sumarokov-vp/estate-sync/internal/mapper"
	"github.com/sumarokov-vp/estate-sync/internal/models"
	"github.com/sumarokov-vp/estate-sync/internal/property"
	"github.com/sumarokov-vp/estate-sync/internal/syncer"
	"github.com/sumarokov-vp/estate-sync/internal/webhook"
)

type Handler struct {
	db            *database.Database
	logger        *logrus.Logger
	properties    *property.Service
	syncer        *syncer.Service
	images        *images.Service
	attrs         *mapper.AttributeCache
	dispatcher    *webhook.Dispatcher
	webhookSecret string
}

func NewHandler(db *database.Database, logger *logrus.Logger, properties *property.Service, syncService *syncer.Service, imageService *images.Service, attrs *mapper.AttributeCache, dispatcher *webhook.Dispatcher, webhookSecret string) *Handler {
	return &Handler{
		db:            db,
		logger:        logger,
		properties:    properties,
		syncer:        syncService,
		images:        imageService,
		attrs:         attrs,
		dispatcher:    dispatcher,
		webhookSecret: webhookSecret,
	}
}

// respondError maps precondition failures to 400 and everything else to
// 500, never leaking internal error text for the latter.
func (h *Handler) respondError(c *gin.Context, err error, message string) {
	var validationErr *property.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
		return
	}
	if errors.Is(err, apiclient.ErrNotConfigured) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "MLS API is not configured"})
		return
	}
	h.logger.WithError(err).Error(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func (h *Handler) loadProperty(c *gin.Context) *models.Property {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property id"})
		return nil
	}
	prop, err := h.db.GetProperty(uint(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
			return nil
		}
		h.respondError(c, err, "Failed to load property")
		return nil
	}
	return prop
}

func (h *Handler) ListProperties(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	properties, err := h.db.ListProperties(c.Query("state"), limit)
	if err != nil {
		h.respondError(c, err, "Failed to list properties")
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetProperty(c *gin.Context) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var prop models.Property
	if err := c.ShouldBindJSON(&prop); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	// Sync bookkeeping is owned by the sync layer, never by clients.
	prop.ID = 0
	prop.ExternalID = 0
	prop.PendingSync = false
	prop.LastSyncedAt = nil
	prop.IsLockedByOtherAgency = false
	prop.MLSRejectionReason = ""
	prop.State = models.StateDraft

	if err := h.properties.Create(c.Request.Context(), &prop); err != nil {
		h.respondError(c, err, "Failed to create property")
		return
	}
	c.JSON(http.StatusCreated, prop)
}

func (h *Handler) UpdateProperty(c *gin.Context) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}

	// Bind over the loaded record so absent fields keep their values,
	// then restore the fields clients must not touch.
	kept := *prop
	if err := c.ShouldBindJSON(prop); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	prop.ID = kept.ID
	prop.CreatedAt = kept.CreatedAt
	prop.State = kept.State
	prop.ExternalID = kept.ExternalID
	prop.PendingSync = kept.PendingSync
	prop.LastSyncedAt = kept.LastSyncedAt
	prop.IsLockedByOtherAgency = kept.IsLockedByOtherAgency
	prop.MLSRejectionReason = kept.MLSRejectionReason

	if err := h.properties.Update(c.Request.Context(), prop); err != nil {
		h.respondError(c, err, "Failed to update property")
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (h *Handler) DeleteProperty(c *gin.Context) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}

	var remoteIDs []int64
	for _, img := range prop.Images {
		if img.ExternalID != 0 {
			remoteIDs = append(remoteIDs, img.ExternalID)
		}
	}
	h.images.DeleteRemote(c.Request.Context(), remoteIDs)

	if err := h.db.DeleteProperty(prop.ID); err != nil {
		h.respondError(c, err, "Failed to delete property")
		return
	}
	c.Status(http.StatusNoContent)
}

// action wraps one lifecycle action handler: load, apply, return the
// updated record.
func (h *Handler) action(c *gin.Context, apply func(*models.Property) error) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}
	if err := apply(prop); err != nil {
		h.respondError(c, err, "Action failed")
		return
	}
	c.JSON(http.StatusOK, prop)
}

func (h *Handler) SubmitReview(c *gin.Context) {
	h.action(c, h.properties.SubmitReview)
}

func (h *Handler) ReturnDraft(c *gin.Context) {
	h.action(c, h.properties.ReturnDraft)
}

func (h *Handler) Approve(c *gin.Context) {
	h.action(c, h.properties.Approve)
}

func (h *Handler) SendToMLS(c *gin.Context) {
	h.action(c, func(p *models.Property) error {
		return h.properties.SendToMLS(c.Request.Context(), p)
	})
}

func (h *Handler) RemoveFromMLS(c *gin.Context) {
	h.action(c, h.properties.RemoveFromMLS)
}

func (h *Handler) Sell(c *gin.Context) {
	h.action(c, h.properties.Sell)
}

func (h *Handler) Unpublish(c *gin.Context) {
	h.action(c, func(p *models.Property) error {
		return h.properties.Unpublish(c.Request.Context(), p)
	})
}

func (h *Handler) Republish(c *gin.Context) {
	h.action(c, func(p *models.Property) error {
		return h.properties.Republish(c.Request.Context(), p)
	})
}

func (h *Handler) Archive(c *gin.Context) {
	h.action(c, h.properties.Archive)
}

func (h *Handler) FixRejected(c *gin.Context) {
	h.action(c, h.properties.FixRejected)
}

func (h *Handler) DetectDistrict(c *gin.Context) {
	h.action(c, func(p *models.Property) error {
		return h.properties.DetectDistrict(c.Request.Context(), p)
	})
}

func (h *Handler) UploadImage(c *gin.Context) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err, "Failed to read uploaded file")
		return
	}

	img := &models.PropertyImage{
		PropertyID: prop.ID,
		Name:       header.Filename,
		IsMain:     c.PostForm("is_main") == "true",
	}
	if seq := c.PostForm("sequence"); seq != "" {
		if n, err := strconv.Atoi(seq); err == nil {
			img.Sequence = n
		}
	}
	if thumbnail, err := images.MakeThumbnail(raw); err == nil {
		img.Thumbnail = thumbnail
	} else {
		h.logger.WithError(err).Warn("Failed to build thumbnail for upload")
	}

	if err := h.db.CreateImage(img); err != nil {
		h.respondError(c, err, "Failed to save image")
		return
	}
	if err := h.images.Push(c.Request.Context(), img, raw, prop.ExternalID); err != nil {
		h.logger.WithError(err).WithField("image_id", img.ID).Warn("Image push failed")
	}
	c.JSON(http.StatusCreated, img)
}

func (h *Handler) DeleteImage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image id"})
		return
	}
	img, err := h.db.GetImage(uint(id))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		h.respondError(c, err, "Failed to load image")
		return
	}

	if img.ExternalID != 0 {
		h.images.DeleteRemote(c.Request.Context(), []int64{img.ExternalID})
	}
	if err := h.db.DeleteImage(img.ID); err != nil {
		h.respondError(c, err, "Failed to delete image")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) TriggerPull(c *gin.Context) {
	if err := h.syncer.Pull(c.Request.Context()); err != nil {
		h.respondError(c, err, "Pull failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) TriggerRetry(c *gin.Context) {
	h.syncer.RetryPending(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) RefreshAttributes(c *gin.Context) {
	ids, err := h.attrs.Refresh(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to refresh attribute cache")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ids)})
}

func (h *Handler) ListCities(c *gin.Context) {
	cities, err := h.db.ListCities()
	if err != nil {
		h.respondError(c, err, "Failed to list cities")
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (h *Handler) ListDistricts(c *gin.Context) {
	cityID, _ := strconv.ParseUint(c.Query("city_id"), 10, 32)
	districts, err := h.db.ListDistricts(uint(cityID))
	if err != nil {
		h.respondError(c, err, "Failed to list districts")
		return
	}
	c.JSON(http.StatusOK, districts)
}

func (h *Handler) ListStreets(c *gin.Context) {
	cityID, _ := strconv.ParseUint(c.Query("city_id"), 10, 32)
	streets, err := h.db.ListStreets(uint(cityID))
	if err != nil {
		h.respondError(c, err, "Failed to list streets")
		return
	}
	c.JSON(http.StatusOK, streets)
}

func (h *Handler) ListActivities(c *gin.Context) {
	prop := h.loadProperty(c)
	if prop == nil {
		return
	}
	activities, err := h.db.ActivitiesForProperty(prop.ID)
	if err != nil {
		h.respondError(c, err, "Failed to list activities")
		return
	}
	c.JSON(http.StatusOK, activities)
}
