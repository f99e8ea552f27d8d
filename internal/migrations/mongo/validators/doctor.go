package validators

import "go.mongodb.org/mongo-driver/bson"

var DoctorValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"name", "specialization", "fee", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":            bson.M{"bsonType": "objectId"},
			"name":           bson.M{"bsonType": "string"},
			"specialization": bson.M{"bsonType": "string"},
			"bio":            bson.M{"bsonType": "string"},
			"fee": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},
			"years_of_exp": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
