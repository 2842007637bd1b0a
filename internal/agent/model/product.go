package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry. The core only reads products.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Brand       string             `bson:"brand" json:"brand"`
	Category    string             `bson:"category" json:"category"`
	Description string             `bson:"description" json:"description"`
	Ingredients string             `bson:"ingredients" json:"ingredients"`
	Dosage      string             `bson:"dosage,omitempty" json:"dosage,omitempty"`
	Price       float64            `bson:"price" json:"price"`
}

// Field exposes product fields by their stored name so structured queries
// can be evaluated in memory.
func (p Product) Field(name string) (any, bool) {
	switch name {
	case "name":
		return p.Name, true
	case "brand":
		return p.Brand, true
	case "category":
		return p.Category, true
	case "description":
		return p.Description, true
	case "ingredients":
		return p.Ingredients, true
	case "dosage":
		return p.Dosage, true
	case "price":
		return p.Price, true
	}
	return nil, false
}
