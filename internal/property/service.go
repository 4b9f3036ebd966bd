package property

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/models"
	"github.com/sumarokov-vp/estate-sync/internal/syncer"
)

// ValidationError is a user-facing precondition failure, mapped to a 400
// by the HTTP layer.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Geocoder resolves addresses to coordinates and coordinates to
// administrative district names.
type Geocoder interface {
	IsConfigured() bool
	GeocodeAddress(ctx context.Context, address string) (lat, lon float64, err error)
	ReverseGeocodeDistrict(ctx context.Context, lat, lon float64) (string, error)
}

// Service implements the user-facing property operations: CRUD with
// push-on-change and the guarded lifecycle actions. Every action checks
// its own precondition before any write, stricter than the raw
// transition table.
type Service struct {
	db              *database.Database
	syncer          *syncer.Service
	client          *apiclient.Client
	geocoder        Geocoder
	logger          *logrus.Logger
	autoPush        bool
	defaultCityCode string
}

func NewService(db *database.Database, syncService *syncer.Service, client *apiclient.Client, geocoder Geocoder, logger *logrus.Logger, autoPush bool, defaultCityCode string) *Service {
	return &Service{
		db:              db,
		syncer:          syncService,
		client:          client,
		geocoder:        geocoder,
		logger:          logger,
		autoPush:        autoPush,
		defaultCityCode: defaultCityCode,
	}
}

// Create persists a new property in draft state and, when auto push is
// enabled, pushes it to the MLS immediately. Push errors surface to the
// caller; the property stays created and flagged pending. A property
// created without a city gets the configured default city when the
// reference table knows its code.
func (s *Service) Create(ctx context.Context, p *models.Property) error {
	if p.State == "" {
		p.State = models.StateDraft
	}
	p.Active = true
	if p.CityID == nil && s.defaultCityCode != "" {
		city, err := s.db.FindCityByCode(s.defaultCityCode)
		if err != nil {
			return err
		}
		if city != nil {
			p.CityID = &city.ID
		}
	}
	if err := s.db.CreateProperty(p); err != nil {
		return err
	}
	if s.autoPush && s.client.IsConfigured() {
		if err := s.syncer.Push(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Update saves the property and re-pushes it when it is already mirrored
// remotely, so remote data never lags an interactive edit.
func (s *Service) Update(ctx context.Context, p *models.Property) error {
	if err := s.db.SaveProperty(p); err != nil {
		return err
	}
	if p.ExternalID != 0 && s.client.IsConfigured() {
		if err := s.syncer.Push(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// transition enforces the per-action precondition and applies the state
// change. The action has already proven the move is legal, so the write
// itself is unconditional.
func (s *Service) transition(p *models.Property, fromStates []string, toState, errMsg string) error {
	allowed := false
	for _, from := range fromStates {
		if p.State == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return &ValidationError{Message: errMsg}
	}
	p.ForceTransition(toState)
	return s.db.SaveProperty(p)
}

func (s *Service) SubmitReview(p *models.Property) error {
	return s.transition(p, []string{models.StateDraft}, models.StateInternalReview,
		"only a draft property can be submitted for review")
}

func (s *Service) ReturnDraft(p *models.Property) error {
	return s.transition(p, []string{models.StateInternalReview}, models.StateDraft,
		"only a property under internal review can be returned to draft")
}

func (s *Service) Approve(p *models.Property) error {
	return s.transition(p, []string{models.StateInternalReview}, models.StateActive,
		"only a property under internal review can be approved")
}

// SendToMLS moves an active property to moderation and makes sure the
// remote side sees it: resume when it already exists there, full push
// otherwise. Push errors surface since this is an interactive action.
func (s *Service) SendToMLS(ctx context.Context, p *models.Property) error {
	if err := s.transition(p, []string{models.StateActive}, models.StateModeration,
		"only an active property can be sent to MLS"); err != nil {
		return err
	}
	if p.ExternalID != 0 {
		s.remoteResume(ctx, p)
		return nil
	}
	return s.syncer.Push(ctx, p)
}

func (s *Service) RemoveFromMLS(p *models.Property) error {
	return s.transition(p,
		[]string{models.StateModeration, models.StateLegalReview, models.StatePublished},
		models.StateActive,
		"only a property in the MLS pipeline can be removed from MLS")
}

func (s *Service) Sell(p *models.Property) error {
	return s.transition(p, []string{models.StateActive, models.StatePublished}, models.StateSold,
		"only an active or published property can be marked as sold")
}

func (s *Service) Unpublish(ctx context.Context, p *models.Property) error {
	if err := s.transition(p, []string{models.StateActive, models.StatePublished}, models.StateUnpublished,
		"only an active or published property can be unpublished"); err != nil {
		return err
	}
	s.remoteSuspend(ctx, p)
	return nil
}

func (s *Service) Republish(ctx context.Context, p *models.Property) error {
	if err := s.transition(p, []string{models.StateUnpublished}, models.StateActive,
		"only an unpublished property can be republished"); err != nil {
		return err
	}
	s.remoteResume(ctx, p)
	return nil
}

func (s *Service) Archive(p *models.Property) error {
	return s.transition(p, []string{models.StatePublished}, models.StateArchived,
		"only a published property can be archived")
}

func (s *Service) FixRejected(p *models.Property) error {
	return s.transition(p, []string{models.StateRejected}, models.StateInternalReview,
		"only a rejected property can be corrected")
}

// remoteResume and remoteSuspend mirror the local visibility decision to
// the MLS. They fire only for mirrored properties and their failures are
// logged, not surfaced: the local state change already happened.
func (s *Service) remoteResume(ctx context.Context, p *models.Property) {
	if p.ExternalID == 0 || !s.client.IsConfigured() {
		return
	}
	if _, err := s.client.Post(ctx, fmt.Sprintf("/properties/%d/resume", p.ExternalID), map[string]string{}); err != nil {
		s.logger.WithError(err).WithField("external_id", p.ExternalID).Warn("Failed to resume remote listing")
	}
}

func (s *Service) remoteSuspend(ctx context.Context, p *models.Property) {
	if p.ExternalID == 0 || !s.client.IsConfigured() {
		return
	}
	if _, err := s.client.Post(ctx, fmt.Sprintf("/properties/%d/suspend", p.ExternalID), map[string]string{}); err != nil {
		s.logger.WithError(err).WithField("external_id", p.ExternalID).Warn("Failed to suspend remote listing")
	}
}

// buildAddress joins the property's address parts for geocoding. The
// district is excluded: it is what DetectDistrict is trying to find.
func (s *Service) buildAddress(p *models.Property) string {
	var parts []string
	db := s.db.GetDB()
	if p.CityID != nil {
		var city models.City
		if err := db.First(&city, *p.CityID).Error; err == nil {
			parts = append(parts, city.Name)
		}
	}
	if p.StreetID != nil {
		var street models.Street
		if err := db.First(&street, *p.StreetID).Error; err == nil {
			parts = append(parts, street.Name)
		}
	}
	if p.HouseNumber != "" {
		parts = append(parts, p.HouseNumber)
	}
	return strings.Join(parts, ", ")
}

// DetectDistrict geocodes the property's address, fills in missing
// coordinates and assigns the administrative district, creating the
// district record under the property's city when it does not exist yet.
func (s *Service) DetectDistrict(ctx context.Context, p *models.Property) error {
	if s.geocoder == nil || !s.geocoder.IsConfigured() {
		return &ValidationError{Message: "geocoder API key is not configured"}
	}

	address := s.buildAddress(p)
	if address == "" {
		return &ValidationError{Message: "property needs an address to detect the district"}
	}

	lat, lon, err := s.geocoder.GeocodeAddress(ctx, address)
	if err != nil {
		return validationErrorf("address not found: %s", address)
	}

	if p.Latitude == nil || p.Longitude == nil {
		p.Latitude = &lat
		p.Longitude = &lon
	}

	districtName, err := s.geocoder.ReverseGeocodeDistrict(ctx, lat, lon)
	if err != nil || districtName == "" || p.CityID == nil {
		s.logger.WithField("address", address).Warn("District not found for address")
		return s.db.SaveProperty(p)
	}

	district, err := s.db.FindDistrictByName(*p.CityID, districtName)
	if err != nil {
		return err
	}
	if district == nil {
		district = &models.District{Name: districtName, CityID: *p.CityID}
		if err := s.db.CreateDistrict(district); err != nil {
			return err
		}
	}
	p.DistrictID = &district.ID
	return s.db.SaveProperty(p)
}
