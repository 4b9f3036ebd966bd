package database

import (
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sumarokov-vp/estate-sync/internal/models"
)

var ErrNotFound = errors.New("record not found")

// --- Properties ---

func (d *Database) CreateProperty(p *models.Property) error {
	return d.db.Create(p).Error
}

func (d *Database) SaveProperty(p *models.Property) error {
	return d.db.Save(p).Error
}

func (d *Database) GetProperty(id uint) (*models.Property, error) {
	var p models.Property
	err := d.db.Preload("Owner").Preload("Images").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *Database) FindPropertyByExternalID(externalID int64) (*models.Property, error) {
	var p models.Property
	err := d.db.Preload("Owner").Where("external_id = ?", externalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *Database) ListProperties(state string, limit int) ([]models.Property, error) {
	query := d.db.Where("active = ?", true).Order("created_at DESC")
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var properties []models.Property
	if err := query.Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}

func (d *Database) ListPendingSync() ([]models.Property, error) {
	var properties []models.Property
	err := d.db.Preload("Owner").Where("pending_sync = ?", true).Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}

// SetSyncResult records a successful push: the remote id, a fresh sync
// timestamp, and a cleared pending flag.
func (d *Database) SetSyncResult(propertyID uint, externalID int64, syncedAt time.Time) error {
	return d.db.Model(&models.Property{}).Where("id = ?", propertyID).Updates(map[string]interface{}{
		"external_id":    externalID,
		"pending_sync":   false,
		"last_synced_at": syncedAt,
	}).Error
}

func (d *Database) MarkPendingSync(propertyID uint) error {
	return d.db.Model(&models.Property{}).Where("id = ?", propertyID).
		Update("pending_sync", true).Error
}

func (d *Database) DeleteProperty(id uint) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("property_id = ?", id).Delete(&models.PropertyImage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Property{}, id).Error
	})
}

// --- Owners ---

func (d *Database) GetOwner(id uint) (*models.Owner, error) {
	var o models.Owner
	err := d.db.First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (d *Database) SaveOwner(o *models.Owner) error {
	return d.db.Save(o).Error
}

// UpsertOwnerFromRemote matches by the remote owner id, refreshing name and
// phone on an existing record and creating one otherwise.
func (d *Database) UpsertOwnerFromRemote(externalID int64, name, phone string) (*models.Owner, error) {
	var owner models.Owner
	err := d.db.Where("external_owner_id = ?", externalID).First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		owner = models.Owner{Name: name, Phone: phone, ExternalOwnerID: externalID}
		if err := d.db.Create(&owner).Error; err != nil {
			return nil, err
		}
		return &owner, nil
	}
	if err != nil {
		return nil, err
	}
	owner.Name = name
	owner.Phone = phone
	if err := d.db.Save(&owner).Error; err != nil {
		return nil, err
	}
	return &owner, nil
}

// --- Images ---

func (d *Database) GetImage(id uint) (*models.PropertyImage, error) {
	var img models.PropertyImage
	err := d.db.First(&img, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (d *Database) CreateImage(img *models.PropertyImage) error {
	return d.db.Create(img).Error
}

func (d *Database) SaveImage(img *models.PropertyImage) error {
	return d.db.Save(img).Error
}

func (d *Database) DeleteImage(id uint) error {
	return d.db.Delete(&models.PropertyImage{}, id).Error
}

func (d *Database) ImagesForProperty(propertyID uint) ([]models.PropertyImage, error) {
	var images []models.PropertyImage
	err := d.db.Where("property_id = ?", propertyID).
		Order("sequence, id").Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// SyncedImagesForProperty returns the images that already carry a remote id.
func (d *Database) SyncedImagesForProperty(propertyID uint) ([]models.PropertyImage, error) {
	var images []models.PropertyImage
	err := d.db.Where("property_id = ? AND external_id != 0", propertyID).
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}

// --- Webhook ledger ---

// InsertWebhookEvent appends a delivery to the dedup ledger. It returns
// false without error when the delivery id is already recorded, so two
// near-simultaneous identical deliveries resolve on the unique index rather
// than on a read-then-write check.
func (d *Database) InsertWebhookEvent(eventID, eventType string) (bool, error) {
	event := models.WebhookEvent{EventID: eventID, EventType: eventType}
	err := d.db.Create(&event).Error
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return false, nil
		}
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}
	return true, nil
}

func (d *Database) WebhookEventExists(eventID string) (bool, error) {
	var count int64
	err := d.db.Model(&models.WebhookEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	return count > 0, err
}

func (d *Database) DeleteWebhookEventsBefore(cutoff time.Time) (int64, error) {
	result := d.db.Where("processed_at < ?", cutoff).Delete(&models.WebhookEvent{})
	return result.RowsAffected, result.Error
}

// --- Settings ---

func (d *Database) GetSetting(key string) (string, error) {
	var setting models.Setting
	err := d.db.First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (d *Database) SetSetting(key, value string) error {
	return d.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
}

func (d *Database) DeleteSetting(key string) error {
	return d.db.Delete(&models.Setting{}, "key = ?", key).Error
}

// --- Reference data ---

func (d *Database) FindCityByExternalID(externalID int64) (*models.City, error) {
	var city models.City
	err := d.db.Where("external_id = ?", externalID).First(&city).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

func (d *Database) FindCityByName(name string) (*models.City, error) {
	var city models.City
	err := d.db.Where("LOWER(name) = LOWER(?)", name).First(&city).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

func (d *Database) FindCityByCode(code string) (*models.City, error) {
	var city models.City
	err := d.db.Where("code = ?", code).First(&city).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &city, nil
}

func (d *Database) ListCities() ([]models.City, error) {
	var cities []models.City
	err := d.db.Where("active = ?", true).Order("sequence, name").Find(&cities).Error
	if err != nil {
		return nil, err
	}
	return cities, nil
}

func (d *Database) ListDistricts(cityID uint) ([]models.District, error) {
	var districts []models.District
	query := d.db.Order("name")
	if cityID != 0 {
		query = query.Where("city_id = ?", cityID)
	}
	if err := query.Find(&districts).Error; err != nil {
		return nil, err
	}
	return districts, nil
}

func (d *Database) ListStreets(cityID uint) ([]models.Street, error) {
	var streets []models.Street
	query := d.db.Order("name")
	if cityID != 0 {
		query = query.Where("city_id = ?", cityID)
	}
	if err := query.Find(&streets).Error; err != nil {
		return nil, err
	}
	return streets, nil
}

func (d *Database) FindDistrictByExternalID(externalID int64) (*models.District, error) {
	var district models.District
	err := d.db.Where("external_id = ?", externalID).First(&district).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &district, nil
}

func (d *Database) FindDistrictByName(cityID uint, name string) (*models.District, error) {
	var district models.District
	err := d.db.Where("city_id = ? AND LOWER(name) = LOWER(?)", cityID, name).First(&district).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &district, nil
}

func (d *Database) CreateDistrict(district *models.District) error {
	return d.db.Create(district).Error
}

func (d *Database) FindStreetByExternalID(externalID int64) (*models.Street, error) {
	var street models.Street
	err := d.db.Where("external_id = ?", externalID).First(&street).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &street, nil
}

func (d *Database) FindStreetByName(cityID uint, name string) (*models.Street, error) {
	var street models.Street
	err := d.db.Where("city_id = ? AND LOWER(name) = LOWER(?)", cityID, name).First(&street).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &street, nil
}

// UpsertCityFromRemote correlates by the MLS id. An empty code leaves
// any previously stored code untouched.
func (d *Database) UpsertCityFromRemote(externalID int64, name, code string) error {
	existing, err := d.FindCityByExternalID(externalID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Name = name
		if code != "" {
			existing.Code = code
		}
		return d.db.Save(existing).Error
	}
	return d.db.Create(&models.City{Name: name, Code: code, ExternalID: externalID}).Error
}

func (d *Database) UpsertDistrictFromRemote(externalID int64, name string, cityID uint) error {
	existing, err := d.FindDistrictByExternalID(externalID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Name = name
		existing.CityID = cityID
		return d.db.Save(existing).Error
	}
	return d.db.Create(&models.District{Name: name, CityID: cityID, ExternalID: externalID}).Error
}

func (d *Database) UpsertStreetFromRemote(externalID int64, name string, cityID uint) error {
	existing, err := d.FindStreetByExternalID(externalID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Name = name
		existing.CityID = cityID
		return d.db.Save(existing).Error
	}
	return d.db.Create(&models.Street{Name: name, CityID: cityID, ExternalID: externalID}).Error
}

// --- Activities ---

func (d *Database) CreateActivity(activity *models.Activity) error {
	return d.db.Create(activity).Error
}

func (d *Database) ActivitiesForProperty(propertyID uint) ([]models.Activity, error) {
	var activities []models.Activity
	err := d.db.Where("property_id = ?", propertyID).Order("created_at DESC").Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}
