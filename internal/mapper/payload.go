package mapper

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/internal/models"
)

// AttributeValue is one entry of the API's id-keyed attribute list. Exactly
// one value slot is populated per entry.
type AttributeValue struct {
	AttributeID  int    `json:"attribute_id"`
	ValueBool    *bool  `json:"value_bool,omitempty"`
	ValueText    string `json:"value_text,omitempty"`
	ValueInt     *int   `json:"value_int,omitempty"`
	ValueDecimal string `json:"value_decimal,omitempty"`
}

// Location carries the address block. Unset members are omitted entirely;
// the remote system treats absence differently from an explicit empty
// value.
type Location struct {
	CityID          *int64 `json:"city_id,omitempty"`
	DistrictID      *int64 `json:"district_id,omitempty"`
	Street          string `json:"street,omitempty"`
	HouseNumber     string `json:"house_number,omitempty"`
	ApartmentNumber string `json:"apartment_number,omitempty"`
	Latitude        string `json:"latitude,omitempty"`
	Longitude       string `json:"longitude,omitempty"`
}

// PropertyPayload is the export wire representation of a property.
type PropertyPayload struct {
	PropertyTypeID int              `json:"property_type_id"`
	DealTypeID     int              `json:"deal_type_id"`
	StatusID       int              `json:"status_id"`
	Price          string           `json:"price"`
	Area           string           `json:"area"`
	Description    string           `json:"description"`
	OwnerID        *int64           `json:"owner_id,omitempty"`
	Location       Location         `json:"location"`
	Attributes     []AttributeValue `json:"attributes"`
}

// Mapper translates between the local field representation and the MLS
// wire encoding, resolving location references against the local tables.
type Mapper struct {
	refs   ReferenceResolver
	logger *logrus.Logger
}

// ReferenceResolver is the slice of the store the mapper needs for address
// resolution.
type ReferenceResolver interface {
	FindCityByExternalID(externalID int64) (*models.City, error)
	FindCityByName(name string) (*models.City, error)
	FindDistrictByExternalID(externalID int64) (*models.District, error)
	FindDistrictByName(cityID uint, name string) (*models.District, error)
	FindStreetByExternalID(externalID int64) (*models.Street, error)
	FindStreetByName(cityID uint, name string) (*models.Street, error)
}

func NewMapper(refs ReferenceResolver, logger *logrus.Logger) *Mapper {
	return &Mapper{refs: refs, logger: logger}
}

// Export builds the outbound payload for a property. attrIDs is the cached
// attribute name to id map; street/district names come from the preloaded
// reference rows.
func (m *Mapper) Export(p *models.Property, owner *models.Owner, street *models.Street, city *models.City, district *models.District, attrIDs map[string]int) PropertyPayload {
	payload := PropertyPayload{
		PropertyTypeID: propertyTypeToAPI[p.PropertyType],
		DealTypeID:     dealTypeToAPI[p.DealType],
		StatusID:       stateToAPI[p.State],
		Price:          formatAmount(p.Price),
		Area:           formatAmount(p.AreaTotal),
		Description:    p.Description,
	}

	if owner != nil && owner.ExternalOwnerID != 0 {
		id := owner.ExternalOwnerID
		payload.OwnerID = &id
	}

	payload.Location = m.buildLocation(p, street, city, district)
	payload.Attributes = m.buildAttributes(p, attrIDs)
	return payload
}

func (m *Mapper) buildLocation(p *models.Property, street *models.Street, city *models.City, district *models.District) Location {
	var location Location
	if city != nil && city.ExternalID != 0 {
		id := city.ExternalID
		location.CityID = &id
	}
	if district != nil && district.ExternalID != 0 {
		id := district.ExternalID
		location.DistrictID = &id
	}
	if street != nil {
		location.Street = street.Name
	}
	location.HouseNumber = p.HouseNumber
	location.ApartmentNumber = p.ApartmentNumber
	if p.Latitude != nil {
		location.Latitude = strconv.FormatFloat(*p.Latitude, 'f', -1, 64)
	}
	if p.Longitude != nil {
		location.Longitude = strconv.FormatFloat(*p.Longitude, 'f', -1, 64)
	}
	return location
}

// buildAttributes emits the id-keyed attribute list. Unset optional values
// are omitted entirely; booleans are always sent, with inverted fields
// negated on the wire.
func (m *Mapper) buildAttributes(p *models.Property, attrIDs map[string]int) []AttributeValue {
	attributes := make([]AttributeValue, 0, len(attributeFields))

	for _, field := range attributeFields {
		attrID, ok := attrIDs[field.apiName]
		if !ok {
			continue
		}

		switch field.kind {
		case kindBool:
			value := field.getBool(p)
			if field.inverted {
				value = !value
			}
			v := value
			attributes = append(attributes, AttributeValue{AttributeID: attrID, ValueBool: &v})

		case kindText:
			value := field.getText(p)
			if value == "" {
				continue
			}
			mapped, ok := enumToAPI[field.apiName][value]
			if !ok {
				continue
			}
			attributes = append(attributes, AttributeValue{AttributeID: attrID, ValueText: mapped})

		case kindInt:
			value := field.getInt(p)
			if value == 0 {
				continue
			}
			v := value
			attributes = append(attributes, AttributeValue{AttributeID: attrID, ValueInt: &v})

		case kindDecimal:
			value := field.getFloat(p)
			if value == 0 {
				continue
			}
			attributes = append(attributes, AttributeValue{AttributeID: attrID, ValueDecimal: formatAmount(value)})
		}
	}

	return attributes
}

func formatAmount(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
