package validators

import "go.mongodb.org/mongo-driver/bson"

var FacilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner_id", "name"},
		"properties": bson.M{
			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
		},
	},
}

// CourtValidator cannot compare open_minute with close_minute; the ordering
// is enforced by model validation before insert.
var CourtValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "facility_id", "name", "open_minute", "close_minute", "price_per_hour"},
		"properties": bson.M{
			"facility_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"open_minute": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  1439,
			},
			"close_minute": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  1439,
			},
			"price_per_hour": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},
			"lock_version": bson.M{
				"bsonType": []string{"int", "long"},
			},
		},
	},
}

var MaintenanceBlockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "court_id", "start_time", "end_time", "created_at"},
		"properties": bson.M{
			"court_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"start_time": bson.M{
				"bsonType": "date",
			},
			"end_time": bson.M{
				"bsonType": "date",
			},
			"reason": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},
		},
	},
}
