package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExpectedCash(t *testing.T) {
	session := &RegistrySession{
		Status:       SessionOpen,
		OpeningCash:  dec("5000"),
		CashPayments: dec("3200"),
		CashOut:      dec("500"),
	}

	assert.True(t, session.ExpectedCash().Equal(dec("7700")))
}

func TestExpectedCashAllComponents(t *testing.T) {
	session := &RegistrySession{
		OpeningCash:  dec("1000.50"),
		CashPayments: dec("2500.25"),
		CashIn:       dec("300"),
		CashOut:      dec("150.75"),
		CashRefunds:  dec("200"),
	}

	// 1000.50 + 2500.25 + 300 - 150.75 - 200
	assert.True(t, session.ExpectedCash().Equal(dec("3450")))
}

func TestVarianceAgainst(t *testing.T) {
	session := &RegistrySession{
		OpeningCash:  dec("5000"),
		CashPayments: dec("3200"),
		CashOut:      dec("500"),
	}

	// Perfect count
	assert.True(t, session.VarianceAgainst(dec("7700")).IsZero())

	// Short drawer: negative variance
	assert.True(t, session.VarianceAgainst(dec("6500")).Equal(dec("-1200")))

	// Over: positive variance
	assert.True(t, session.VarianceAgainst(dec("7750.50")).Equal(dec("50.50")))
}

func TestIsOpen(t *testing.T) {
	var nilSession *RegistrySession
	assert.False(t, nilSession.IsOpen())

	assert.True(t, (&RegistrySession{Status: SessionOpen}).IsOpen())
	assert.False(t, (&RegistrySession{Status: SessionClosed}).IsOpen())
}
