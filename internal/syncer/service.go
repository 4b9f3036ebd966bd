package syncer

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/images"
	"github.com/sumarokov-vp/estate-sync/internal/mapper"
	"github.com/sumarokov-vp/estate-sync/internal/models"
)

const (
	watermarkKey    = "pull_watermark"
	defaultPageSize = 50
)

type pushResponse struct {
	ID    int64 `json:"id"`
	Owner *struct {
		ID      int64 `json:"id"`
		Created bool  `json:"created"`
	} `json:"owner"`
}

type ownerResponse struct {
	ID int64 `json:"id"`
}

type propertyPage struct {
	Items []mapper.RemoteProperty `json:"items"`
}

// Service orchestrates push (local to MLS) and pull (MLS to local)
// synchronization and owns the retry bookkeeping.
type Service struct {
	db       *database.Database
	client   *apiclient.Client
	mapper   *mapper.Mapper
	attrs    *mapper.AttributeCache
	images   *images.Service
	logger   *logrus.Logger
	pageSize int
}

func NewService(db *database.Database, client *apiclient.Client, m *mapper.Mapper, attrs *mapper.AttributeCache, imageService *images.Service, logger *logrus.Logger, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{
		db:       db,
		client:   client,
		mapper:   m,
		attrs:    attrs,
		images:   imageService,
		logger:   logger,
		pageSize: pageSize,
	}
}

// PushOwner lazily mirrors the property's owner on the MLS side, returning
// the remote owner id. An owner already pushed keeps its id.
func (s *Service) PushOwner(ctx context.Context, owner *models.Owner) (int64, error) {
	if owner == nil || !s.client.IsConfigured() {
		return 0, nil
	}
	if owner.ExternalOwnerID != 0 {
		return owner.ExternalOwnerID, nil
	}

	body, err := s.client.Post(ctx, "/owners", map[string]string{
		"name":  owner.Name,
		"phone": owner.Phone,
	})
	if err != nil {
		return 0, err
	}
	var resp ownerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode owner response: %w", err)
	}
	if resp.ID == 0 {
		return 0, nil
	}
	owner.ExternalOwnerID = resp.ID
	if err := s.db.SaveOwner(owner); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Push serializes the property and creates or updates it remotely: POST
// when it has never been pushed, PUT against the known external id
// otherwise, so a repeated identical push never re-creates the remote
// record. On success the remote id and a fresh sync timestamp are
// persisted and the pending flag cleared; on failure the property is
// marked pending for the retry job and the error is returned for the
// caller to surface or swallow.
func (s *Service) Push(ctx context.Context, property *models.Property) error {
	if !s.client.IsConfigured() {
		return apiclient.ErrNotConfigured
	}

	owner, err := s.loadOwner(property)
	if err != nil {
		return err
	}
	if _, err := s.PushOwner(ctx, owner); err != nil {
		s.markPending(property)
		return fmt.Errorf("failed to push owner: %w", err)
	}

	attrIDs, err := s.attrs.IDs(ctx)
	if err != nil {
		return err
	}

	city, district, street, err := s.loadReferences(property)
	if err != nil {
		return err
	}
	payload := s.mapper.Export(property, owner, street, city, district, attrIDs)

	var body []byte
	if property.ExternalID == 0 {
		body, err = s.client.Post(ctx, "/properties", payload)
	} else {
		body, err = s.client.Put(ctx, fmt.Sprintf("/properties/%d", property.ExternalID), payload)
	}
	if err != nil {
		s.markPending(property)
		return fmt.Errorf("failed to push property %d: %w", property.ID, err)
	}

	var resp pushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode push response: %w", err)
	}

	externalID := property.ExternalID
	if resp.ID != 0 {
		externalID = resp.ID
	}
	now := time.Now().UTC()
	if err := s.db.SetSyncResult(property.ID, externalID, now); err != nil {
		return err
	}
	property.ExternalID = externalID
	property.PendingSync = false
	property.LastSyncedAt = &now

	if resp.Owner != nil && resp.Owner.Created && resp.Owner.ID != 0 && owner != nil {
		owner.ExternalOwnerID = resp.Owner.ID
		if err := s.db.SaveOwner(owner); err != nil {
			return err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"external_id": externalID,
	}).Info("Pushed property to API")
	return nil
}

// RetryPending re-attempts every property whose last push failed. Failures
// stay pending and are only logged; this is the background path.
func (s *Service) RetryPending(ctx context.Context) {
	if !s.client.IsConfigured() {
		return
	}
	pending, err := s.db.ListPendingSync()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list pending properties")
		return
	}
	for i := range pending {
		if err := s.Push(ctx, &pending[i]); err != nil {
			s.logger.WithError(err).WithField("property_id", pending[i].ID).Warn("Retry push failed")
		}
	}
}

// Pull fetches remote properties updated after the persisted watermark,
// page by page, and upserts each into the local store. The watermark
// advances only after the full sweep completes.
func (s *Service) Pull(ctx context.Context) error {
	if !s.client.IsConfigured() {
		s.logger.Warn("Pull skipped: MLS API is not configured")
		return nil
	}

	watermark, err := s.db.GetSetting(watermarkKey)
	if err != nil {
		return err
	}

	var newest time.Time
	page := 1
	for {
		params := url.Values{
			"page":     []string{strconv.Itoa(page)},
			"per_page": []string{strconv.Itoa(s.pageSize)},
		}
		if watermark != "" {
			params.Set("updated_after", watermark)
		}

		body, err := s.client.Get(ctx, "/properties", params)
		if err != nil {
			return fmt.Errorf("pull page %d failed: %w", page, err)
		}
		var pageData propertyPage
		if err := json.Unmarshal(body, &pageData); err != nil {
			return fmt.Errorf("failed to decode pull page %d: %w", page, err)
		}
		if len(pageData.Items) == 0 {
			break
		}

		for i := range pageData.Items {
			item := &pageData.Items[i]
			if err := s.importItem(ctx, item); err != nil {
				s.logger.WithError(err).WithField("external_id", item.ID).Warn("Failed to import property")
				continue
			}
			if updated, ok := item.UpdatedTime(); ok && updated.After(newest) {
				newest = updated
			}
		}

		if len(pageData.Items) < s.pageSize {
			break
		}
		page++
	}

	if !newest.IsZero() {
		if err := s.db.SetSetting(watermarkKey, newest.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}

// ImportRemote fetches one remote property by id and upserts it locally,
// used by the new-listing webhook. The created record starts in the given
// state when it does not exist yet.
func (s *Service) ImportRemote(ctx context.Context, externalID int64, initialState string) (*models.Property, error) {
	body, err := s.client.Get(ctx, fmt.Sprintf("/mls/properties/%d", externalID), nil)
	if err != nil {
		return nil, err
	}
	var item mapper.RemoteProperty
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("failed to decode property %d: %w", externalID, err)
	}
	item.ID = externalID

	property, err := s.db.FindPropertyByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if property != nil {
		return property, nil
	}

	property = &models.Property{Active: true, ExternalID: externalID}
	if err := s.applyImport(ctx, property, &item); err != nil {
		return nil, err
	}
	if initialState != "" {
		property.ForceTransition(initialState)
	}
	if err := s.db.CreateProperty(property); err != nil {
		return nil, err
	}
	if err := s.images.PullForProperty(ctx, property); err != nil {
		s.logger.WithError(err).WithField("property_id", property.ID).Warn("Image pull failed")
	}
	return property, nil
}

// importItem upserts one pulled item. A remote update that is not strictly
// newer than the local sync timestamp is skipped, so a pull can never
// clobber a fresher local write.
func (s *Service) importItem(ctx context.Context, item *mapper.RemoteProperty) error {
	property, err := s.db.FindPropertyByExternalID(item.ID)
	if err != nil {
		return err
	}

	updated, hasUpdated := item.UpdatedTime()
	if property != nil && hasUpdated && property.LastSyncedAt != nil && !updated.After(*property.LastSyncedAt) {
		return nil
	}

	isNew := property == nil
	if isNew {
		property = &models.Property{Active: true, ExternalID: item.ID}
	}

	if err := s.applyImport(ctx, property, item); err != nil {
		return err
	}

	syncedAt := time.Now().UTC()
	if hasUpdated {
		syncedAt = updated.UTC()
	}
	property.LastSyncedAt = &syncedAt

	if isNew {
		err = s.db.CreateProperty(property)
	} else {
		err = s.db.SaveProperty(property)
	}
	if err != nil {
		return err
	}

	if err := s.images.PullForProperty(ctx, property); err != nil {
		s.logger.WithError(err).WithField("property_id", property.ID).Warn("Image pull failed")
	}
	return nil
}

func (s *Service) applyImport(ctx context.Context, property *models.Property, item *mapper.RemoteProperty) error {
	idToName, err := s.attrs.IDToName(ctx)
	if err != nil {
		return err
	}
	s.mapper.ApplyImport(property, item, idToName)

	if item.OwnerID != 0 {
		owner, err := s.db.UpsertOwnerFromRemote(item.OwnerID, item.OwnerName, item.OwnerPhone)
		if err != nil {
			return err
		}
		property.OwnerID = &owner.ID
	}
	return nil
}

// SyncReferences mirrors the remote city/district/street catalogs into the
// local reference tables. Items referencing an unknown parent are logged
// and skipped.
func (s *Service) SyncReferences(ctx context.Context) error {
	if !s.client.IsConfigured() {
		return nil
	}

	type refItem struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Code   string `json:"code"`
		CityID int64  `json:"city_id"`
	}
	decode := func(body []byte) ([]refItem, error) {
		var items []refItem
		if err := json.Unmarshal(body, &items); err == nil {
			return items, nil
		}
		var wrapped struct {
			Items []refItem `json:"items"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Items, nil
	}

	body, err := s.client.Get(ctx, "/references/cities", nil)
	if err != nil {
		return err
	}
	cities, err := decode(body)
	if err != nil {
		return fmt.Errorf("failed to decode cities: %w", err)
	}
	for _, item := range cities {
		if err := s.db.UpsertCityFromRemote(item.ID, item.Name, item.Code); err != nil {
			return err
		}
	}
	s.logger.WithField("count", len(cities)).Info("Synced cities from API")

	body, err = s.client.Get(ctx, "/references/districts", nil)
	if err != nil {
		return err
	}
	districts, err := decode(body)
	if err != nil {
		return fmt.Errorf("failed to decode districts: %w", err)
	}
	for _, item := range districts {
		city, err := s.db.FindCityByExternalID(item.CityID)
		if err != nil {
			return err
		}
		if city == nil {
			s.logger.WithFields(logrus.Fields{"district": item.Name, "city_id": item.CityID}).Warn("District city not found, skipping")
			continue
		}
		if err := s.db.UpsertDistrictFromRemote(item.ID, item.Name, city.ID); err != nil {
			return err
		}
	}

	body, err = s.client.Get(ctx, "/references/streets", nil)
	if err != nil {
		return err
	}
	streets, err := decode(body)
	if err != nil {
		return fmt.Errorf("failed to decode streets: %w", err)
	}
	for _, item := range streets {
		city, err := s.db.FindCityByExternalID(item.CityID)
		if err != nil {
			return err
		}
		if city == nil {
			s.logger.WithFields(logrus.Fields{"street": item.Name, "city_id": item.CityID}).Warn("Street city not found, skipping")
			continue
		}
		if err := s.db.UpsertStreetFromRemote(item.ID, item.Name, city.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) markPending(property *models.Property) {
	property.PendingSync = true
	if err := s.db.MarkPendingSync(property.ID); err != nil {
		s.logger.WithError(err).WithField("property_id", property.ID).Error("Failed to mark property pending")
	}
}

func (s *Service) loadOwner(property *models.Property) (*models.Owner, error) {
	if property.Owner != nil {
		return property.Owner, nil
	}
	if property.OwnerID == nil {
		return nil, nil
	}
	return s.db.GetOwner(*property.OwnerID)
}

func (s *Service) loadReferences(property *models.Property) (*models.City, *models.District, *models.Street, error) {
	var (
		city     *models.City
		district *models.District
		street   *models.Street
	)
	db := s.db.GetDB()
	if property.CityID != nil {
		city = &models.City{}
		if err := db.First(city, *property.CityID).Error; err != nil {
			city = nil
		}
	}
	if property.DistrictID != nil {
		district = &models.District{}
		if err := db.First(district, *property.DistrictID).Error; err != nil {
			district = nil
		}
	}
	if property.StreetID != nil {
		street = &models.Street{}
		if err := db.First(street, *property.StreetID).Error; err != nil {
			street = nil
		}
	}
	return city, district, street, nil
}
