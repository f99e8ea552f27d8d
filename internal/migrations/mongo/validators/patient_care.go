package validators

import "go.mongodb.org/mongo-driver/bson"

var PatientCareValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"patient_id", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id": bson.M{"bsonType": "objectId"},
			"patient_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"remarks": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"doctor_id", "body", "type"},
					"properties": bson.M{
						"doctor_id": bson.M{"bsonType": "string"},
						"body":      bson.M{"bsonType": "string"},
						"type": bson.M{
							"bsonType": "string",
							"enum": []string{
								"general",
								"session_notes",
								"diagnosis",
								"improvement",
								"concern",
								"follow_up",
							},
						},
						"private":    bson.M{"bsonType": "bool"},
						"booking_id": bson.M{"bsonType": "string"},
						"created_at": bson.M{"bsonType": "date"},
					},
				},
			},
			"medications": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"name", "dosage", "frequency", "prescribed_by", "status"},
					"properties": bson.M{
						"name":          bson.M{"bsonType": "string"},
						"dosage":        bson.M{"bsonType": "string"},
						"frequency":     bson.M{"bsonType": "string"},
						"instructions":  bson.M{"bsonType": "string"},
						"prescribed_by": bson.M{"bsonType": "string"},
						"status": bson.M{
							"bsonType": "string",
							"enum":     []string{"active", "completed", "discontinued"},
						},
						"start_date": bson.M{"bsonType": "date"},
						"end_date":   bson.M{"bsonType": "date"},
					},
				},
			},
			"risk_level": bson.M{"bsonType": "string"},
			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
