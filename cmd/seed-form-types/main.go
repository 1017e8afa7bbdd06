package main

import (
	"context"

	"taxforms-api/config"
	"taxforms-api/models"
	"taxforms-api/services"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type seedType struct {
	name        string
	description string
	fields      []services.CustomFieldInput
}

var standardTypes = []seedType{
	{
		name:        "W-2",
		description: "Wage and Tax Statement",
		fields: []services.CustomFieldInput{
			{FieldName: "w2_copy", FieldLabel: "W-2 Copy", FieldType: models.FieldTypeFile, IsRequired: true},
		},
	},
	{name: "1099-NEC", description: "Nonemployee Compensation"},
	{name: "1099-MISC", description: "Miscellaneous Income"},
	{name: "1099-G", description: "Government Payments"},
	{name: "1099-R", description: "Pension Distributions"},
	{name: "1099-INT", description: "Interest Income"},
}

var defaultPrice = decimal.RequireFromString("14.99")

func main() {
	log := logrus.New()
	log.Info("Seeding standard form types...")

	config.LoadEnv(log)
	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	ctx := context.Background()
	schema := services.NewFormSchemaService(db, log)

	existing := map[string]bool{}
	all, err := schema.ListAllFormTypes(ctx)
	if err != nil {
		log.WithError(err).Fatal("Failed to list form types")
	}
	for _, ft := range all {
		existing[ft.Name] = true
	}

	var created, skipped int
	var failed []string
	for _, st := range standardTypes {
		if existing[st.name] {
			log.WithField("form_type", st.name).Info("Already present, skipping")
			skipped++
			continue
		}

		name, desc := st.name, st.description
		formType, err := schema.CreateFormType(ctx, services.FormTypeInput{
			Name:        &name,
			Description: &desc,
			BasePrice:   &defaultPrice,
		})
		if err != nil {
			log.WithError(err).WithField("form_type", st.name).Error("Failed to create form type")
			failed = append(failed, st.name)
			continue
		}

		for _, field := range st.fields {
			if _, err := schema.AddCustomField(ctx, formType.ID, field); err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"form_type": st.name,
					"field":     field.FieldName,
				}).Error("Failed to add custom field")
			}
		}
		created++
	}

	log.WithFields(logrus.Fields{
		"created": created,
		"skipped": skipped,
		"failed":  len(failed),
	}).Info("Form type seeding finished")
	if len(failed) > 0 {
		log.Fatalf("Seeding failed for: %v", failed)
	}
}
