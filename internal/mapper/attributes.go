package mapper

import "github.com/sumarokov-vp/estate-sync/internal/models"

type valueKind int

const (
	kindInt valueKind = iota
	kindDecimal
	kindText
	kindBool
)

// attributeField binds one descriptive attribute to its API name and value
// slot. Inverted booleans carry the negated value on the wire (not_corner
// is exported as is_corner).
type attributeField struct {
	apiName  string
	kind     valueKind
	inverted bool

	getInt   func(*models.Property) int
	setInt   func(*models.Property, int)
	getFloat func(*models.Property) float64
	setFloat func(*models.Property, float64)
	getText  func(*models.Property) string
	setText  func(*models.Property, string)
	getBool  func(*models.Property) bool
	setBool  func(*models.Property, bool)
}

var attributeFields = []attributeField{
	// Integers
	{apiName: "rooms", kind: kindInt,
		getInt: func(p *models.Property) int { return p.Rooms },
		setInt: func(p *models.Property, v int) { p.Rooms = v }},
	{apiName: "bedrooms", kind: kindInt,
		getInt: func(p *models.Property) int { return p.Bedrooms },
		setInt: func(p *models.Property, v int) { p.Bedrooms = v }},
	{apiName: "floor", kind: kindInt,
		getInt: func(p *models.Property) int { return p.Floor },
		setInt: func(p *models.Property, v int) { p.Floor = v }},
	{apiName: "total_floors", kind: kindInt,
		getInt: func(p *models.Property) int { return p.FloorsTotal },
		setInt: func(p *models.Property, v int) { p.FloorsTotal = v }},
	{apiName: "year_built", kind: kindInt,
		getInt: func(p *models.Property) int { return p.YearBuilt },
		setInt: func(p *models.Property, v int) { p.YearBuilt = v }},
	{apiName: "bathroom_count", kind: kindInt,
		getInt: func(p *models.Property) int { return p.BathroomCount },
		setInt: func(p *models.Property, v int) { p.BathroomCount = v }},

	// Decimals
	{apiName: "living_area", kind: kindDecimal,
		getFloat: func(p *models.Property) float64 { return p.AreaLiving },
		setFloat: func(p *models.Property, v float64) { p.AreaLiving = v }},
	{apiName: "kitchen_area", kind: kindDecimal,
		getFloat: func(p *models.Property) float64 { return p.AreaKitchen },
		setFloat: func(p *models.Property, v float64) { p.AreaKitchen = v }},
	{apiName: "area_land", kind: kindDecimal,
		getFloat: func(p *models.Property) float64 { return p.AreaLand },
		setFloat: func(p *models.Property, v float64) { p.AreaLand = v }},
	{apiName: "ceiling_height", kind: kindDecimal,
		getFloat: func(p *models.Property) float64 { return p.CeilingHeight },
		setFloat: func(p *models.Property, v float64) { p.CeilingHeight = v }},

	// Selections
	{apiName: "building_type", kind: kindText,
		getText: func(p *models.Property) string { return p.BuildingType },
		setText: func(p *models.Property, v string) { p.BuildingType = v }},
	{apiName: "condition", kind: kindText,
		getText: func(p *models.Property) string { return p.Condition },
		setText: func(p *models.Property, v string) { p.Condition = v }},
	{apiName: "bathroom", kind: kindText,
		getText: func(p *models.Property) string { return p.Bathroom },
		setText: func(p *models.Property, v string) { p.Bathroom = v }},
	{apiName: "balcony", kind: kindText,
		getText: func(p *models.Property) string { return p.Balcony },
		setText: func(p *models.Property, v string) { p.Balcony = v }},
	{apiName: "parking", kind: kindText,
		getText: func(p *models.Property) string { return p.Parking },
		setText: func(p *models.Property, v string) { p.Parking = v }},
	{apiName: "furniture", kind: kindText,
		getText: func(p *models.Property) string { return p.Furniture },
		setText: func(p *models.Property, v string) { p.Furniture = v }},
	{apiName: "internet", kind: kindText,
		getText: func(p *models.Property) string { return p.Internet },
		setText: func(p *models.Property, v string) { p.Internet = v }},
	{apiName: "heating_type", kind: kindText,
		getText: func(p *models.Property) string { return p.Heating },
		setText: func(p *models.Property, v string) { p.Heating = v }},
	{apiName: "water", kind: kindText,
		getText: func(p *models.Property) string { return p.Water },
		setText: func(p *models.Property, v string) { p.Water = v }},
	{apiName: "sewage", kind: kindText,
		getText: func(p *models.Property) string { return p.Sewage },
		setText: func(p *models.Property, v string) { p.Sewage = v }},
	{apiName: "gas", kind: kindText,
		getText: func(p *models.Property) string { return p.Gas },
		setText: func(p *models.Property, v string) { p.Gas = v }},
	{apiName: "electricity", kind: kindText,
		getText: func(p *models.Property) string { return p.Electricity },
		setText: func(p *models.Property, v string) { p.Electricity = v }},
	{apiName: "wall_material", kind: kindText,
		getText: func(p *models.Property) string { return p.WallMaterial },
		setText: func(p *models.Property, v string) { p.WallMaterial = v }},
	{apiName: "window_type", kind: kindText,
		getText: func(p *models.Property) string { return p.WindowType },
		setText: func(p *models.Property, v string) { p.WindowType = v }},

	// Booleans
	{apiName: "balcony_glazed", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.BalconyGlazed },
		setBool: func(p *models.Property, v bool) { p.BalconyGlazed = v }},
	{apiName: "isolated_rooms", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.IsolatedRooms },
		setBool: func(p *models.Property, v bool) { p.IsolatedRooms = v }},
	{apiName: "storage", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.Storage },
		setBool: func(p *models.Property, v bool) { p.Storage = v }},
	{apiName: "quiet_yard", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.QuietYard },
		setBool: func(p *models.Property, v bool) { p.QuietYard = v }},
	{apiName: "new_plumbing", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.NewPlumbing },
		setBool: func(p *models.Property, v bool) { p.NewPlumbing = v }},
	{apiName: "built_in_kitchen", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.BuiltInKitchen },
		setBool: func(p *models.Property, v bool) { p.BuiltInKitchen = v }},
	{apiName: "security_intercom", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.SecurityIntercom },
		setBool: func(p *models.Property, v bool) { p.SecurityIntercom = v }},
	{apiName: "security_video", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.SecurityVideo },
		setBool: func(p *models.Property, v bool) { p.SecurityVideo = v }},
	{apiName: "is_pledged", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.IsPledged },
		setBool: func(p *models.Property, v bool) { p.IsPledged = v }},
	{apiName: "documents_ready", kind: kindBool,
		getBool: func(p *models.Property) bool { return p.DocumentsReady },
		setBool: func(p *models.Property, v bool) { p.DocumentsReady = v }},
	{apiName: "is_corner", kind: kindBool, inverted: true,
		getBool: func(p *models.Property) bool { return p.NotCorner },
		setBool: func(p *models.Property, v bool) { p.NotCorner = v }},
}
