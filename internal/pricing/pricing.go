// Package pricing вычисляет стоимость одного дня брони.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/amalkov/spotbook-system/internal/model"
	"github.com/amalkov/spotbook-system/internal/repository"
)

// ErrPriceNotConfigured возвращается, если не задана цена дня по умолчанию.
var ErrPriceNotConfigured = errors.New("daily price not configured")

// SettingsReader описывает порт чтения настроек, используемый резолвером.
type SettingsReader interface {
	GetSetting(ctx context.Context, name string) (string, error)
}

// Resolver определяет цену конкретного дня: особая цена даты, если она задана,
// иначе daily_price. Настройки только читаются, состояние не меняется.
type Resolver struct {
	settings SettingsReader
}

// NewResolver создаёт резолвер цен поверх указанного источника настроек.
func NewResolver(settings SettingsReader) *Resolver {
	return &Resolver{settings: settings}
}

// PriceFor возвращает цену одного дня в копейках.
func (p *Resolver) PriceFor(ctx context.Context, date time.Time) (int64, error) {
	value, err := p.settings.GetSetting(ctx, model.SettingSpecialPriceKey(date))
	if errors.Is(err, repository.ErrSettingNotFound) {
		value, err = p.settings.GetSetting(ctx, model.SettingDailyPrice)
	}
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return 0, ErrPriceNotConfigured
		}
		return 0, err
	}

	return ParseCents(value)
}

// ParseCents разбирает денежную сумму вида "100.00" в копейки.
func ParseCents(value string) (int64, error) {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", value, err)
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative price %q", value)
	}
	return int64(math.Round(amount * 100)), nil
}

// FormatCents возвращает сумму в копейках в виде десятичной строки.
func FormatCents(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
