package mapper

// Integer codes the MLS API uses for the top-level classifiers.
var propertyTypeToAPI = map[string]int{
	"apartment":  1,
	"house":      2,
	"townhouse":  3,
	"commercial": 4,
	"land":       5,
}

var dealTypeToAPI = map[string]int{
	"sale":       1,
	"rent_long":  2,
	"rent_daily": 3,
}

var stateToAPI = map[string]int{
	"draft":           1,
	"internal_review": 2,
	"active":          3,
	"moderation":      4,
	"legal_review":    5,
	"published":       6,
	"rejected":        7,
	"unpublished":     8,
	"sold":            9,
	"archived":        10,
	"mls_listed":      11,
	"mls_removed":     12,
	"mls_sold":        13,
}

// enumToAPI maps local selection values to the API's text codes, keyed by
// the API attribute name. The reverse tables are derived in init.
var enumToAPI = map[string]map[string]string{
	"building_type": {
		"panel":       "panel",
		"brick":       "brick",
		"monolith":    "monolithic",
		"metal_frame": "metal_frame",
		"wood":        "wooden",
	},
	"condition": {
		"no_repair": "needs_repair",
		"cosmetic":  "cosmetic",
		"euro":      "euro",
		"designer":  "designer",
	},
	"bathroom": {
		"combined": "combined",
		"separate": "separate",
	},
	"balcony": {
		"none":    "none",
		"balcony": "balcony",
		"loggia":  "loggia",
		"terrace": "terrace",
	},
	"parking": {
		"none":        "none",
		"yard":        "yard",
		"underground": "underground",
		"garage":      "garage",
		"ground":      "surface",
	},
	"furniture": {
		"none":    "unfurnished",
		"partial": "partial",
		"full":    "furnished",
	},
	"internet": {
		"none":   "none",
		"wired":  "wired",
		"fiber":  "fiber",
		"dsl":    "dsl",
		"mobile": "mobile",
	},
	"heating_type": {
		"central":    "central",
		"autonomous": "autonomous",
		"none":       "none",
	},
	"water": {
		"central": "central",
		"well":    "well",
		"none":    "none",
	},
	"sewage": {
		"central": "central",
		"septic":  "septic",
		"none":    "none",
	},
	"gas": {
		"central":  "central",
		"balloon":  "bottled",
		"gas_tank": "holder",
		"none":     "none",
	},
	"electricity": {
		"yes":    "connected",
		"nearby": "nearby",
		"none":   "none",
	},
	"wall_material": {
		"brick":       "brick",
		"gas_block":   "aerated_block",
		"wood":        "wood",
		"sip":         "sip",
		"frame":       "frame",
		"polystyrene": "polystyrene_concrete",
	},
	"window_type": {
		"plastic":  "pvc",
		"wood":     "wood",
		"aluminum": "aluminum",
	},
}

var (
	propertyTypeFromAPI = make(map[int]string, len(propertyTypeToAPI))
	dealTypeFromAPI     = make(map[int]string, len(dealTypeToAPI))
	stateFromAPI        = make(map[int]string, len(stateToAPI))
	enumFromAPI         = make(map[string]map[string]string, len(enumToAPI))
)

func init() {
	for local, code := range propertyTypeToAPI {
		propertyTypeFromAPI[code] = local
	}
	for local, code := range dealTypeToAPI {
		dealTypeFromAPI[code] = local
	}
	for local, code := range stateToAPI {
		stateFromAPI[code] = local
	}
	for attr, values := range enumToAPI {
		reversed := make(map[string]string, len(values))
		for local, code := range values {
			reversed[code] = local
		}
		enumFromAPI[attr] = reversed
	}
}

var propertyTypeLabels = map[string]string{
	"apartment":  "Apartment",
	"house":      "House",
	"townhouse":  "Townhouse",
	"commercial": "Commercial",
	"land":       "Land plot",
}
