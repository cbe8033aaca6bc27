package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"court_id",
			"user_id",
			"start_time",
			"end_time",
			"status",
			"price",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"court_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"start_time": bson.M{
				"bsonType": "date",
			},

			"end_time": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"enum": []string{"PENDING", "CONFIRMED", "CANCELLED", "COMPLETED"},
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"lock_version": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "booking_id", "amount", "status", "created_at"},
		"properties": bson.M{
			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"amount": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},
			"status": bson.M{
				"enum": []string{"PENDING", "SUCCEEDED", "FAILED", "REFUNDED"},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
