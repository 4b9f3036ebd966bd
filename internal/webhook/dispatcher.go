package webhook

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/models"
	"github.com/sumarokov-vp/estate-sync/internal/syncer"
)

// stringStateMap translates the status vocabulary of the MLS event feed
// into local property states.
var stringStateMap = map[string]string{
	"active":       models.StatePublished,
	"rejected":     models.StateRejected,
	"suspended":    models.StateUnpublished,
	"new":          models.StateModeration,
	"moderation":   models.StateModeration,
	"legal_review": models.StateLegalReview,
}

// Event is the parsed webhook body. The event type travels in a header,
// not in the body.
type Event struct {
	EventID string    `json:"event_id"`
	Data    EventData `json:"data"`
}

type EventData struct {
	PropertyID        int64       `json:"property_id"`
	Status            string      `json:"status"`
	Reason            string      `json:"reason"`
	RequesterTenantID json.Number `json:"requester_tenant_id"`
}

// Dispatcher applies webhook events to local records. All state writes
// here bypass the transition guard: the MLS side has already made the
// decision and the local copy only follows.
type Dispatcher struct {
	db     *database.Database
	syncer *syncer.Service
	logger *logrus.Logger
}

func NewDispatcher(db *database.Database, syncService *syncer.Service, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{db: db, syncer: syncService, logger: logger}
}

// Dispatch routes one deduplicated event to its handler. Unknown event
// types are logged and ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, event *Event) error {
	d.logger.WithFields(logrus.Fields{
		"event_type": eventType,
		"event_id":   event.EventID,
	}).Info("Webhook event received")

	switch eventType {
	case "property.created", "property.approved", "property.suspended", "property.resumed":
		return d.handleTransition(eventType, event)
	case "property.rejected":
		return d.handleRejected(event)
	case "property.delisted":
		return d.handleDelisted(event)
	case "contact_request.received":
		return d.handleContactRequest(event)
	case "mls.new_listing":
		return d.handleNewListing(ctx, event)
	case "mls.listing_removed":
		return d.handleListingRemoved(event)
	case "property.locked":
		return d.handleLock(event, true)
	case "property.unlocked":
		return d.handleLock(event, false)
	default:
		d.logger.WithField("event_type", eventType).Info("Ignoring unknown webhook event type")
		return nil
	}
}

// findProperty resolves the event target by external id. A missing id or
// an unknown property is logged and yields nil without error, matching
// the at-least-once delivery model where stale events are expected.
func (d *Dispatcher) findProperty(event *Event, eventName string) (*models.Property, error) {
	if event.Data.PropertyID == 0 {
		d.logger.WithField("event", eventName).Warn("Webhook payload missing property_id")
		return nil, nil
	}
	property, err := d.db.FindPropertyByExternalID(event.Data.PropertyID)
	if err != nil {
		return nil, err
	}
	if property == nil {
		d.logger.WithFields(logrus.Fields{
			"event":       eventName,
			"external_id": event.Data.PropertyID,
		}).Warn("Webhook references unknown property")
	}
	return property, nil
}

func (d *Dispatcher) handleTransition(eventType string, event *Event) error {
	property, err := d.findProperty(event, eventType)
	if err != nil || property == nil {
		return err
	}

	newState, ok := stringStateMap[event.Data.Status]
	if !ok {
		d.logger.WithFields(logrus.Fields{
			"event":       eventType,
			"status":      event.Data.Status,
			"external_id": event.Data.PropertyID,
		}).Warn("Unknown status in webhook payload")
		return nil
	}

	property.ForceTransition(newState)
	if err := d.db.SaveProperty(property); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{
		"external_id": event.Data.PropertyID,
		"state":       newState,
	}).Info("Property state updated from webhook")
	return nil
}

func (d *Dispatcher) handleRejected(event *Event) error {
	property, err := d.findProperty(event, "property.rejected")
	if err != nil || property == nil {
		return err
	}

	property.ForceTransition(models.StateRejected)
	if event.Data.Reason != "" {
		property.MLSRejectionReason = event.Data.Reason
	}
	if err := d.db.SaveProperty(property); err != nil {
		return err
	}

	note := "Rejected by MLS"
	if event.Data.Reason != "" {
		note = fmt.Sprintf("Rejected by MLS: %s", event.Data.Reason)
	}
	activity := &models.Activity{
		PropertyID: property.ID,
		Summary:    "Rejected by MLS",
		Note:       note,
		AssignedTo: property.AssignedTo,
	}
	if err := d.db.CreateActivity(activity); err != nil {
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"external_id": event.Data.PropertyID,
		"reason":      event.Data.Reason,
	}).Info("Property rejected by MLS")
	return nil
}

func (d *Dispatcher) handleDelisted(event *Event) error {
	property, err := d.findProperty(event, "property.delisted")
	if err != nil || property == nil {
		return err
	}
	property.ForceTransition(models.StateUnpublished)
	if err := d.db.SaveProperty(property); err != nil {
		return err
	}
	d.logger.WithField("external_id", event.Data.PropertyID).Info("Property delisted from webhook")
	return nil
}

func (d *Dispatcher) handleContactRequest(event *Event) error {
	property, err := d.findProperty(event, "contact_request.received")
	if err != nil || property == nil {
		return err
	}

	note := "Owner contact requested"
	if event.Data.RequesterTenantID != "" {
		note = fmt.Sprintf("Owner contact requested (tenant_id: %s)", event.Data.RequesterTenantID)
	}
	activity := &models.Activity{
		PropertyID: property.ID,
		Summary:    "Owner contact requested",
		Note:       note,
		AssignedTo: property.AssignedTo,
	}
	if err := d.db.CreateActivity(activity); err != nil {
		return err
	}
	d.logger.WithField("property_id", property.ID).Info("Created contact request activity")
	return nil
}

func (d *Dispatcher) handleNewListing(ctx context.Context, event *Event) error {
	if event.Data.PropertyID == 0 {
		d.logger.Warn("mls.new_listing payload missing property_id")
		return nil
	}
	existing, err := d.db.FindPropertyByExternalID(event.Data.PropertyID)
	if err != nil {
		return err
	}
	if existing != nil {
		d.logger.WithField("external_id", event.Data.PropertyID).Info("MLS listing already known, skipping")
		return nil
	}

	property, err := d.syncer.ImportRemote(ctx, event.Data.PropertyID, models.StateMLSListed)
	if err != nil {
		return fmt.Errorf("failed to import MLS listing %d: %w", event.Data.PropertyID, err)
	}
	d.logger.WithFields(logrus.Fields{
		"external_id": event.Data.PropertyID,
		"property_id": property.ID,
	}).Info("Imported new MLS listing")
	return nil
}

func (d *Dispatcher) handleListingRemoved(event *Event) error {
	property, err := d.findProperty(event, "mls.listing_removed")
	if err != nil || property == nil {
		return err
	}
	property.ForceTransition(models.StateMLSRemoved)
	if err := d.db.SaveProperty(property); err != nil {
		return err
	}
	d.logger.WithField("external_id", event.Data.PropertyID).Info("MLS listing removed")
	return nil
}

func (d *Dispatcher) handleLock(event *Event, locked bool) error {
	eventName := "property.unlocked"
	if locked {
		eventName = "property.locked"
	}
	property, err := d.findProperty(event, eventName)
	if err != nil || property == nil {
		return err
	}
	property.IsLockedByOtherAgency = locked
	if err := d.db.SaveProperty(property); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{
		"external_id": event.Data.PropertyID,
		"locked":      locked,
	}).Info("Property lock state updated")
	return nil
}
