package mapper

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/models"
)

// RemoteProperty is one property item as the MLS API serves it. Depending
// on the protocol revision the location block carries external ids or bare
// names; both are accepted.
type RemoteProperty struct {
	ID             int64            `json:"id"`
	PropertyTypeID int              `json:"property_type_id"`
	DealTypeID     int              `json:"deal_type_id"`
	StatusID       int              `json:"status_id"`
	Price          json.Number      `json:"price"`
	Area           json.Number      `json:"area"`
	Description    string           `json:"description"`
	OwnerID        int64            `json:"owner_id"`
	OwnerName      string           `json:"owner_name"`
	OwnerPhone     string           `json:"owner_phone"`
	Location       RemoteLocation   `json:"location"`
	Attributes     []AttributeValue `json:"attributes"`
	UpdatedAt      string           `json:"updated_at"`
}

type RemoteLocation struct {
	CityID             int64       `json:"city_id"`
	CityName           string      `json:"city_name"`
	City               string      `json:"city"`
	DistrictID         int64       `json:"district_id"`
	DistrictName       string      `json:"district_name"`
	District           string      `json:"district"`
	StreetID           int64       `json:"street_id"`
	Street             string      `json:"street"`
	HouseNumber        string      `json:"house_number"`
	ApartmentNumber    string      `json:"apartment_number"`
	ResidentialComplex string      `json:"residential_complex"`
	Latitude           json.Number `json:"latitude"`
	Longitude          json.Number `json:"longitude"`
}

// UpdatedTime parses the remote modification timestamp.
func (r *RemoteProperty) UpdatedTime() (time.Time, bool) {
	if r.UpdatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ApplyImport maps a remote item onto a local property. Unknown enum codes
// and unresolved references are logged and skipped field by field, leaving
// the local value untouched; the import never aborts as a whole.
func (m *Mapper) ApplyImport(p *models.Property, data *RemoteProperty, idToName map[int]string) {
	if local, ok := propertyTypeFromAPI[data.PropertyTypeID]; ok {
		p.PropertyType = local
	} else if data.PropertyTypeID != 0 {
		m.logger.WithField("property_type_id", data.PropertyTypeID).Warn("Unknown property type code, skipping")
	}

	if local, ok := dealTypeFromAPI[data.DealTypeID]; ok {
		p.DealType = local
	} else if data.DealTypeID != 0 {
		m.logger.WithField("deal_type_id", data.DealTypeID).Warn("Unknown deal type code, skipping")
	}

	if local, ok := stateFromAPI[data.StatusID]; ok {
		// Remote-driven writes bypass the interactive transition guard.
		p.ForceTransition(local)
	} else if data.StatusID != 0 {
		m.logger.WithField("status_id", data.StatusID).Warn("Unknown status code, skipping")
	}

	if data.Description != "" {
		p.Description = data.Description
	}
	if v, err := data.Price.Float64(); err == nil && data.Price != "" {
		p.Price = v
	}
	if v, err := data.Area.Float64(); err == nil && data.Area != "" {
		p.AreaTotal = v
	}
	if data.OwnerName != "" {
		p.OwnerName = data.OwnerName
	}

	m.applyLocation(p, &data.Location)
	m.applyAttributes(p, data.Attributes, idToName)

	if p.Name == "" {
		p.Name = generateName(p)
	}
}

func (m *Mapper) applyLocation(p *models.Property, location *RemoteLocation) {
	city := m.resolveCity(location)
	if city != nil {
		p.CityID = &city.ID
	}

	if district := m.resolveDistrict(location, city); district != nil {
		p.DistrictID = &district.ID
	}

	if street := m.resolveStreet(location, city); street != nil {
		p.StreetID = &street.ID
	}

	if location.HouseNumber != "" {
		p.HouseNumber = location.HouseNumber
	}
	if location.ApartmentNumber != "" {
		p.ApartmentNumber = location.ApartmentNumber
	}
	if location.ResidentialComplex != "" {
		p.ResidentialComplex = location.ResidentialComplex
	}
	if v, err := location.Latitude.Float64(); err == nil && location.Latitude != "" {
		p.Latitude = &v
	}
	if v, err := location.Longitude.Float64(); err == nil && location.Longitude != "" {
		p.Longitude = &v
	}
}

func (m *Mapper) resolveCity(location *RemoteLocation) *models.City {
	if location.CityID != 0 {
		city, err := m.refs.FindCityByExternalID(location.CityID)
		if err == nil && city != nil {
			return city
		}
	}
	name := location.CityName
	if name == "" {
		name = location.City
	}
	if name == "" {
		return nil
	}
	city, err := m.refs.FindCityByName(name)
	if err != nil || city == nil {
		m.logger.WithField("city", name).Warn("City not found, skipping")
		return nil
	}
	return city
}

func (m *Mapper) resolveDistrict(location *RemoteLocation, city *models.City) *models.District {
	if location.DistrictID != 0 {
		district, err := m.refs.FindDistrictByExternalID(location.DistrictID)
		if err == nil && district != nil {
			return district
		}
	}
	name := location.DistrictName
	if name == "" {
		name = location.District
	}
	if name == "" || city == nil {
		return nil
	}
	district, err := m.refs.FindDistrictByName(city.ID, name)
	if err != nil || district == nil {
		m.logger.WithField("district", name).Warn("District not found, skipping")
		return nil
	}
	return district
}

func (m *Mapper) resolveStreet(location *RemoteLocation, city *models.City) *models.Street {
	if location.StreetID != 0 {
		street, err := m.refs.FindStreetByExternalID(location.StreetID)
		if err == nil && street != nil {
			return street
		}
	}
	if location.Street == "" || city == nil {
		return nil
	}
	street, err := m.refs.FindStreetByName(city.ID, location.Street)
	if err != nil || street == nil {
		return nil
	}
	return street
}

func (m *Mapper) applyAttributes(p *models.Property, attrs []AttributeValue, idToName map[int]string) {
	if len(attrs) == 0 {
		return
	}

	fieldsByAPIName := make(map[string]*attributeField, len(attributeFields))
	for i := range attributeFields {
		fieldsByAPIName[attributeFields[i].apiName] = &attributeFields[i]
	}

	for _, attr := range attrs {
		name, ok := idToName[attr.AttributeID]
		if !ok {
			m.logger.WithField("attribute_id", attr.AttributeID).Warn("Unknown attribute id, skipping")
			continue
		}
		field, ok := fieldsByAPIName[name]
		if !ok {
			m.logger.WithField("attribute", name).Warn("Unmapped attribute, skipping")
			continue
		}

		switch field.kind {
		case kindBool:
			if attr.ValueBool == nil {
				continue
			}
			value := *attr.ValueBool
			if field.inverted {
				value = !value
			}
			field.setBool(p, value)

		case kindText:
			if attr.ValueText == "" {
				continue
			}
			local, ok := enumFromAPI[field.apiName][attr.ValueText]
			if !ok {
				m.logger.WithFields(logrus.Fields{
					"attribute": name,
					"code":      attr.ValueText,
				}).Warn("Unknown enum code, skipping")
				continue
			}
			field.setText(p, local)

		case kindInt:
			if attr.ValueInt == nil {
				continue
			}
			field.setInt(p, *attr.ValueInt)

		case kindDecimal:
			if attr.ValueDecimal == "" {
				continue
			}
			var v float64
			if _, err := fmt.Sscanf(attr.ValueDecimal, "%f", &v); err != nil {
				continue
			}
			field.setFloat(p, v)
		}
	}
}

func generateName(p *models.Property) string {
	label, ok := propertyTypeLabels[p.PropertyType]
	if !ok {
		label = "Listing"
	}
	name := label
	if p.AreaTotal > 0 {
		name = fmt.Sprintf("%s, %g m²", name, p.AreaTotal)
	}
	if p.Price > 0 {
		name = fmt.Sprintf("%s, %.0f", name, p.Price)
	}
	return name
}
