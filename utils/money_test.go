package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	assert.True(t, Money(decimal.RequireFromString("33.333333")).Equal(decimal.RequireFromString("33.33")))
	assert.True(t, Money(decimal.RequireFromString("0.005")).Equal(decimal.RequireFromString("0.01")))
	assert.True(t, Money(decimal.Zero).Equal(decimal.Zero))
}

func TestLineTotal(t *testing.T) {
	assert.True(t, LineTotal(3, decimal.RequireFromString("19.99")).Equal(decimal.RequireFromString("59.97")))
	assert.True(t, LineTotal(0, decimal.RequireFromString("19.99")).Equal(decimal.Zero))
}

func TestNormalizePtrDTO(t *testing.T) {
	name := "  Rex  "
	notes := "ok"
	dto := struct {
		Name  *string
		Notes *string
		Age   *int
		Skip  *string
	}{Name: &name, Notes: &notes}

	NormalizePtrDTO(&dto)
	assert.Equal(t, "Rex", *dto.Name)
	assert.Equal(t, "ok", *dto.Notes)
	assert.Nil(t, dto.Skip)
}

func TestNormalizeDTO(t *testing.T) {
	dto := struct {
		Name  string
		Breed string
	}{Name: " Mia ", Breed: "SRD"}

	NormalizeDTO(&dto)
	assert.Equal(t, "Mia", dto.Name)
	assert.Equal(t, "SRD", dto.Breed)
}
