package models

import "time"

// Property is the authoritative local record of a listing. ExternalID is
// non-zero if and only if the property has been created on the MLS side at
// least once.
type Property struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Active      bool   `gorm:"default:true" json:"active"`

	PropertyType string  `gorm:"not null;default:apartment" json:"property_type"`
	DealType     string  `gorm:"not null;default:sale" json:"deal_type"`
	State        string  `gorm:"not null;default:draft;index" json:"state"`
	Price        float64 `json:"price"`

	// Address
	CityID             *uint    `gorm:"index" json:"city_id"`
	DistrictID         *uint    `json:"district_id"`
	StreetID           *uint    `json:"street_id"`
	HouseNumber        string   `json:"house_number"`
	ApartmentNumber    string   `json:"apartment_number"`
	ResidentialComplex string   `json:"residential_complex"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`

	// Building
	Rooms         int     `json:"rooms"`
	Bedrooms      int     `json:"bedrooms"`
	Floor         int     `json:"floor"`
	FloorsTotal   int     `json:"floors_total"`
	YearBuilt     int     `json:"year_built"`
	BathroomCount int     `json:"bathroom_count"`
	AreaTotal     float64 `json:"area_total"`
	AreaLiving    float64 `json:"area_living"`
	AreaKitchen   float64 `json:"area_kitchen"`
	AreaLand      float64 `json:"area_land"`
	CeilingHeight float64 `json:"ceiling_height"`

	// Selection attributes
	BuildingType string `json:"building_type"`
	Condition    string `json:"condition"`
	Bathroom     string `json:"bathroom"`
	Balcony      string `json:"balcony"`
	Parking      string `json:"parking"`
	Furniture    string `json:"furniture"`
	Internet     string `json:"internet"`
	Heating      string `json:"heating"`
	Water        string `json:"water"`
	Sewage       string `json:"sewage"`
	Gas          string `json:"gas"`
	Electricity  string `json:"electricity"`
	WallMaterial string `json:"wall_material"`
	WindowType   string `json:"window_type"`

	// Boolean attributes. NotCorner is stored the way agents fill it in and
	// inverted to is_corner on export.
	BalconyGlazed    bool `json:"balcony_glazed"`
	IsolatedRooms    bool `json:"isolated_rooms"`
	Storage          bool `json:"storage"`
	QuietYard        bool `json:"quiet_yard"`
	NewPlumbing      bool `json:"new_plumbing"`
	BuiltInKitchen   bool `json:"built_in_kitchen"`
	SecurityIntercom bool `json:"security_intercom"`
	SecurityVideo    bool `json:"security_video"`
	IsPledged        bool `json:"is_pledged"`
	DocumentsReady   bool `json:"documents_ready"`
	NotCorner        bool `json:"not_corner"`

	// Ownership and responsibility
	OwnerID    *uint  `gorm:"index" json:"owner_id"`
	Owner      *Owner `json:"owner,omitempty"`
	OwnerName  string `json:"owner_name"`
	AssignedTo string `json:"assigned_to"`

	// Sync bookkeeping. Writes to these fields never re-trigger a push.
	ExternalID   int64      `gorm:"index" json:"external_id"`
	PendingSync  bool       `gorm:"index" json:"pending_sync"`
	LastSyncedAt *time.Time `json:"last_synced_at"`

	IsLockedByOtherAgency bool   `json:"is_locked_by_other_agency"`
	MLSRejectionReason    string `json:"mls_rejection_reason"`

	Images []PropertyImage `gorm:"constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

// Owner is the property's legal owner, mirrored on the MLS side once the
// first property referencing it is pushed.
type Owner struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Name            string    `gorm:"not null" json:"name"`
	Phone           string    `json:"phone"`
	ExternalOwnerID int64     `gorm:"index" json:"external_owner_id"`
}

// PropertyImage holds a local thumbnail plus the remote image object's id
// and full-size URL. Deleted together with its property.
type PropertyImage struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	PropertyID uint      `gorm:"not null;index" json:"property_id"`
	Name       string    `json:"name"`
	Sequence   int       `gorm:"default:10" json:"sequence"`
	IsMain     bool      `json:"is_main"`
	Thumbnail  []byte    `json:"-"`
	ImageURL   string    `json:"image_url"`
	ExternalID int64     `gorm:"index" json:"external_id"`
}

// WebhookEvent is the append-only dedup ledger. A row exists for every
// dispatched delivery and for no others; the unique index on EventID is the
// serialization point for near-simultaneous identical deliveries.
type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"not null;uniqueIndex" json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `gorm:"autoCreateTime" json:"processed_at"`
}

// City, District and Street form the geographic reference hierarchy. Each
// carries the MLS identifier for remote correlation.
type City struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	Code       string `gorm:"index" json:"code"`
	ExternalID int64  `gorm:"index" json:"external_id"`
	Sequence   int    `gorm:"default:10" json:"sequence"`
	Active     bool   `gorm:"default:true" json:"active"`
}

type District struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	CityID     uint   `gorm:"not null;index" json:"city_id"`
	ExternalID int64  `gorm:"index" json:"external_id"`
}

type Street struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	CityID     uint   `gorm:"not null;index" json:"city_id"`
	ExternalID int64  `gorm:"index" json:"external_id"`
}

// Setting is a plain key-value configuration row: pull watermark, cached
// attribute-id map.
type Setting struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `json:"value"`
}

// Activity is a follow-up item for the responsible agent, created on MLS
// rejections and owner-contact requests.
type Activity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	PropertyID uint      `gorm:"not null;index" json:"property_id"`
	Summary    string    `gorm:"not null" json:"summary"`
	Note       string    `json:"note"`
	AssignedTo string    `json:"assigned_to"`
}
