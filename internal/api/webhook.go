package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/sumarokov-vp/estate-sync/internal/webhook"
)

// ReceiveWebhook is the signed MLS event endpoint. The signature covers
// the raw body; the ledger insert runs before dispatch, so of two racing
// deliveries of the same event exactly one reaches a handler and both get
// a 200.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "Failed to read body")
		return
	}

	signature := c.GetHeader("X-EstateSync-Signature")
	eventType := c.GetHeader("X-EstateSync-Event")
	deliveryID := c.GetHeader("X-EstateSync-Delivery-Id")

	if h.webhookSecret == "" {
		h.logger.Warn("Webhook received but webhook secret is not configured")
		c.String(http.StatusForbidden, "Webhook secret not configured")
		return
	}

	if !verifySignature(h.webhookSecret, body, signature) {
		h.logger.WithField("delivery_id", deliveryID).Warn("Webhook signature verification failed")
		c.String(http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event webhook.Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.WithField("delivery_id", deliveryID).Warn("Webhook received invalid JSON")
		c.String(http.StatusBadRequest, "Invalid JSON")
		return
	}

	eventID := event.EventID
	if eventID == "" {
		eventID = deliveryID
	}
	if eventID == "" {
		c.String(http.StatusBadRequest, "Missing event_id")
		return
	}

	inserted, err := h.db.InsertWebhookEvent(eventID, eventType)
	if err != nil {
		h.logger.WithError(err).Error("Failed to record webhook event")
		c.String(http.StatusInternalServerError, "Failed to record event")
		return
	}
	if !inserted {
		h.logger.WithField("event_id", eventID).Info("Webhook event already processed, skipping")
		c.String(http.StatusOK, "OK")
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), eventType, &event); err != nil {
		// The ledger row exists, so a redelivery would be skipped anyway.
		// Acknowledge and rely on logs for the failure.
		h.logger.WithError(err).WithFields(map[string]interface{}{
			"event_id":   eventID,
			"event_type": eventType,
		}).Error("Webhook dispatch failed")
	}

	c.String(http.StatusOK, "OK")
}

func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
