package middleware

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Unit     string `json:"unit" validate:"required,oneof=kg dona litr gramm paket"`
	Price    int64  `json:"price" validate:"gte=0"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

func decodeProduct(t *testing.T, body map[string]interface{}) (productRequest, error) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/admin/products", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	var p productRequest
	return p, DecodeAndValidate(req, &p)
}

// Property: missing required fields are rejected
func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(includeName bool, includeUnit bool) bool {
			body := map[string]interface{}{"price": 12000}
			if includeName {
				body["name"] = "Olma"
			}
			if includeUnit {
				body["unit"] = "kg"
			}

			_, err := decodeProduct(t, body)
			if includeName && includeUnit {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: only the known sale units pass
func TestProperty_UnitMustBeKnown(t *testing.T) {
	known := map[string]bool{"kg": true, "dona": true, "litr": true, "gramm": true, "paket": true}
	properties := gopter.NewProperties(nil)

	properties.Property("unit outside the enumeration is rejected", prop.ForAll(
		func(unit string) bool {
			_, err := decodeProduct(t, map[string]interface{}{"name": "Sut", "unit": unit, "price": 9000})
			if known[unit] {
				return err == nil
			}
			return err != nil
		},
		gen.OneConstOf("kg", "dona", "litr", "gramm", "paket", "box", "KG", "l"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Property: negative prices are rejected
func TestProperty_PriceRangeValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("price below zero is rejected", prop.ForAll(
		func(price int64) bool {
			_, err := decodeProduct(t, map[string]interface{}{"name": "Non", "unit": "dona", "price": price})
			if price >= 0 {
				return err == nil
			}
			return err != nil
		},
		gen.Int64Range(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	_, err := decodeProduct(t, map[string]interface{}{
		"unit":      "box",
		"price":     100,
		"image_url": "not a url",
	})
	require.Error(t, err)

	byField := map[string]string{}
	for _, ve := range FormatValidationErrors(err) {
		byField[ve.Field] = ve.Message
	}

	assert.Equal(t, "This field is required", byField["name"])
	assert.Equal(t, "Value must be one of: kg dona litr gramm paket", byField["unit"])
	assert.Equal(t, "Invalid URL", byField["image_url"])
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", bytes.NewReader([]byte("{")))

	var p productRequest
	err := DecodeAndValidate(req, &p)
	require.Error(t, err)
	assert.Empty(t, FormatValidationErrors(err))
}
