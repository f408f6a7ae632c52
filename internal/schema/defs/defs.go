// Package defs registers the built-in schema definitions.
//
// Import it for side effects:
//
//	import _ "github.com/JonMunkholm/csvparse/internal/schema/defs"
package defs

import "github.com/JonMunkholm/csvparse/internal/schema"

func init() {
	registerPeople()
	registerStudents()
	registerContacts()
}

func registerPeople() {
	schema.Register(schema.Definition{
		Name:        "people",
		Description: "name, age",
		FieldSpecs: []schema.FieldSpec{
			{Name: "name", Type: schema.FieldText, Required: true},
			{Name: "age", Type: schema.FieldNumeric, Required: true, Min: schema.Bound(0)},
		},
	})
}

func registerStudents() {
	schema.Register(schema.Definition{
		Name:        "students",
		Description: "name, age, isStudent",
		FieldSpecs: []schema.FieldSpec{
			{Name: "name", Type: schema.FieldText, Required: true, AllowEmpty: true},
			{Name: "age", Type: schema.FieldNumeric},
			{Name: "isStudent", Type: schema.FieldText, Required: true, AllowEmpty: true},
		},
	})
}

func registerContacts() {
	schema.Register(schema.Definition{
		Name:        "contacts",
		Description: "name, email, state, active, joined",
		FieldSpecs: []schema.FieldSpec{
			{Name: "name", Type: schema.FieldText, Required: true},
			{Name: "email", Type: schema.FieldText, Normalizer: schema.Lower},
			{Name: "state", Type: schema.FieldText, Normalizer: schema.USState},
			{Name: "active", Type: schema.FieldBool},
			{Name: "joined", Type: schema.FieldDate},
		},
	})
}
