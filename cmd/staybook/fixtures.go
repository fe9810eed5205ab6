package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"staybook/internal/domain/property"
	"staybook/internal/domain/shared/money"
)

type propertyFixture struct {
	ID              string `json:"id"`
	HostID          string `json:"host_id"`
	Title           string `json:"title"`
	MaxGuests       int    `json:"max_guests"`
	Currency        string `json:"currency"`
	NightlyPrice    int64  `json:"nightly_price"`
	CleaningFee     int64  `json:"cleaning_fee"`
	SecurityDeposit int64  `json:"security_deposit"`
}

// loadPropertyFixtures seeds the in-memory store; amounts are minor units.
func (a *application) loadPropertyFixtures(path string, logger *slog.Logger) error {
	if a.memory == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("property fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []propertyFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		currency := strings.ToUpper(strings.TrimSpace(fx.Currency))
		if currency == "" {
			currency = "USD"
		}
		nightly, err := money.New(fx.NightlyPrice, currency)
		if err != nil {
			return fmt.Errorf("fixture %s: %w", fx.ID, err)
		}
		a.memory.PutProperty(property.Property{
			ID:              property.ID(fx.ID),
			HostID:          fx.HostID,
			Title:           fx.Title,
			MaxGuests:       fx.MaxGuests,
			NightlyPrice:    nightly,
			CleaningFee:     money.Must(fx.CleaningFee, currency),
			SecurityDeposit: money.Must(fx.SecurityDeposit, currency),
		})
	}
	logger.Info("property fixtures loaded", "count", len(fixtures), "path", path)
	return nil
}
