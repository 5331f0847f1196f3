// Package service реализует бизнес-логику сервиса бронирования мест.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/amalkov/spotbook-system/internal/dates"
	"github.com/amalkov/spotbook-system/internal/model"
	"github.com/amalkov/spotbook-system/internal/pricing"
	"github.com/amalkov/spotbook-system/internal/repository"
)

// ErrInvalidRange возвращается, если конечная дата брони не позже начальной.
var (
	ErrInvalidRange = errors.New("end date must be after start date")
	// ErrForbidden возвращается, если операция над чужой бронью недоступна пользователю.
	ErrForbidden = errors.New("operation is not allowed for this user")
	// ErrNotActive возвращается при попытке отменить уже отменённую бронь.
	ErrNotActive = errors.New("reservation is not active")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	GetSetting(ctx context.Context, name string) (string, error)
	SetSetting(ctx context.Context, name, value string) error
	DeleteSetting(ctx context.Context, name string) error

	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetOrCreateDayTx(ctx context.Context, tx pgx.Tx, date time.Time) (*model.DailyAvailability, error)
	ReserveSpotTx(ctx context.Context, tx pgx.Tx, date time.Time) error
	ReleaseSpotTx(ctx context.Context, tx pgx.Tx, date time.Time) error
	GetDays(ctx context.Context, from, to time.Time) ([]model.DailyAvailability, error)

	InsertReservationTx(ctx context.Context, tx pgx.Tx, res *model.Reservation) error
	GetReservationByID(ctx context.Context, id int64) (*model.Reservation, error)
	GetReservationsByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	GetAllReservations(ctx context.Context) ([]model.Reservation, error)
	MarkReservationCancelledTx(ctx context.Context, tx pgx.Tx, id int64) (time.Time, error)
}

// Pricer описывает расчёт цены одного дня брони.
type Pricer interface {
	PriceFor(ctx context.Context, date time.Time) (int64, error)
}

// Service содержит бизнес-логику сервиса бронирования.
type Service struct {
	repo   Repository
	pricer Pricer
}

// NewService создаёт новый сервис с указанным репозиторием и резолвером цен.
func NewService(repo Repository, pricer Pricer) *Service {
	return &Service{
		repo:   repo,
		pricer: pricer,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if subtle.ConstantTimeCompare(hashed, u.PasswordHash) != 1 {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateReservation создаёт бронь диапазона [start, end) для пользователя.
//
// Операция атомарна для всего диапазона: сначала проверяются все дни, и только
// потом списываются места, поэтому частичная бронь невозможна. Если между
// проверкой и списанием параллельная бронь успела занять последнее место дня,
// UPDATE не затронет строку, транзакция откатится целиком (включая вставку
// брони) и наружу уйдёт ErrNoSpotsAvailable.
func (s *Service) CreateReservation(ctx context.Context, userID int64, start, end time.Time) (*model.Reservation, error) {
	start = dates.Normalize(start)
	end = dates.Normalize(end)

	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	res := &model.Reservation{
		UserID:    userID,
		StartDate: start,
		EndDate:   end,
		Status:    model.ReservationStatusActive,
	}

	err := s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		// Проход 1: проверка всех дней диапазона до каких-либо изменений.
		err := dates.Each(start, end, func(d time.Time) error {
			day, err := s.repo.GetOrCreateDayTx(ctx, tx, d)
			if err != nil {
				return err
			}
			if day.AvailableSpots <= 0 {
				return repository.ErrNoSpotsAvailable
			}
			return nil
		})
		if err != nil {
			return err
		}

		totalPrice, err := s.totalPrice(ctx, start, end)
		if err != nil {
			return err
		}
		res.TotalPriceCents = totalPrice

		if err := s.repo.InsertReservationTx(ctx, tx, res); err != nil {
			return err
		}

		// Проход 2: списание места за каждый день.
		return dates.Each(start, end, func(d time.Time) error {
			return s.repo.ReserveSpotTx(ctx, tx, d)
		})
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *Service) totalPrice(ctx context.Context, start, end time.Time) (int64, error) {
	var total int64
	err := dates.Each(start, end, func(d time.Time) error {
		price, err := s.pricer.PriceFor(ctx, d)
		if err != nil {
			return err
		}
		total += price
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CancelReservation отменяет бронь и возвращает места за каждый её день.
// Отмена доступна владельцу брони и администратору. Переход статуса
// одноразовый: отменённая бронь не активируется повторно. Проверка статуса
// до транзакции — быстрый отказ; решающая проверка выполняется условием в
// UPDATE, поэтому конкурирующая отмена той же брони не вернёт места дважды.
func (s *Service) CancelReservation(ctx context.Context, reservationID, requesterID int64) (*model.Reservation, error) {
	requester, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.GetReservationByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if res.UserID != requester.ID && !requester.IsAdmin() {
		return nil, ErrForbidden
	}

	if res.Status != model.ReservationStatusActive {
		return nil, ErrNotActive
	}

	err = s.repo.WithTx(ctx, func(tx pgx.Tx) error {
		updatedAt, err := s.repo.MarkReservationCancelledTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		res.Status = model.ReservationStatusCancelled
		res.UpdatedAt = updatedAt

		return dates.Each(res.StartDate, res.EndDate, func(d time.Time) error {
			return s.repo.ReleaseSpotTx(ctx, tx, d)
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotActive) {
			return nil, ErrNotActive
		}
		return nil, err
	}

	return res, nil
}

// GetReservations возвращает все брони для администратора и только собственные
// для обычного пользователя.
func (s *Service) GetReservations(ctx context.Context, requesterID int64) ([]model.Reservation, error) {
	requester, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	if requester.IsAdmin() {
		return s.repo.GetAllReservations(ctx)
	}

	return s.repo.GetReservationsByUser(ctx, requester.ID)
}

// GetReservation возвращает одну бронь. Чужая бронь доступна только администратору.
func (s *Service) GetReservation(ctx context.Context, reservationID, requesterID int64) (*model.Reservation, error) {
	requester, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.GetReservationByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if res.UserID != requester.ID && !requester.IsAdmin() {
		return nil, ErrForbidden
	}

	return res, nil
}

// GetSettings возвращает глобальные настройки. Доступно только администратору.
func (s *Service) GetSettings(ctx context.Context, requesterID int64) (*model.Settings, error) {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}

	priceValue, err := s.repo.GetSetting(ctx, model.SettingDailyPrice)
	if err != nil {
		return nil, err
	}
	priceCents, err := pricing.ParseCents(priceValue)
	if err != nil {
		return nil, err
	}

	spotsValue, err := s.repo.GetSetting(ctx, model.SettingDefaultTotalSpots)
	if err != nil {
		return nil, err
	}
	var spots int
	if _, err := fmt.Sscanf(spotsValue, "%d", &spots); err != nil {
		return nil, fmt.Errorf("parse total spots %q: %w", spotsValue, err)
	}

	return &model.Settings{
		MaxReservationsPerDay: spots,
		PricePerDay:           float64(priceCents) / 100,
	}, nil
}

// UpdateSettings записывает глобальные настройки. Доступно только администратору.
func (s *Service) UpdateSettings(ctx context.Context, requesterID int64, settings model.Settings) error {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return err
	}

	if settings.MaxReservationsPerDay < 1 {
		return fmt.Errorf("%w: maxReservationsPerDay must be at least 1", ErrInvalidSettings)
	}
	if settings.PricePerDay < 0 {
		return fmt.Errorf("%w: pricePerDay cannot be negative", ErrInvalidSettings)
	}

	priceCents := int64(math.Round(settings.PricePerDay * 100))
	if err := s.repo.SetSetting(ctx, model.SettingDailyPrice, pricing.FormatCents(priceCents)); err != nil {
		return err
	}

	return s.repo.SetSetting(ctx, model.SettingDefaultTotalSpots, fmt.Sprintf("%d", settings.MaxReservationsPerDay))
}

// ErrInvalidSettings возвращается при некорректных значениях настроек.
var ErrInvalidSettings = errors.New("invalid settings")

// SpecialDay описывает переопределения цены и ёмкости конкретной даты.
// Нулевые поля означают сброс соответствующего переопределения.
type SpecialDay struct {
	Price      *float64
	TotalSpots *int
}

// SetSpecialDay задаёт или сбрасывает переопределения даты. Переопределение
// ёмкости действует только на дни, записи которых ещё не созданы: ёмкость дня
// фиксируется при первом обращении. Доступно только администратору.
func (s *Service) SetSpecialDay(ctx context.Context, requesterID int64, date time.Time, special SpecialDay) error {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return err
	}

	date = dates.Normalize(date)

	priceKey := model.SettingSpecialPriceKey(date)
	if special.Price != nil {
		if *special.Price < 0 {
			return fmt.Errorf("%w: price cannot be negative", ErrInvalidSettings)
		}
		cents := int64(math.Round(*special.Price * 100))
		if err := s.repo.SetSetting(ctx, priceKey, pricing.FormatCents(cents)); err != nil {
			return err
		}
	} else if err := s.repo.DeleteSetting(ctx, priceKey); err != nil {
		return err
	}

	spotsKey := model.SettingSpecialTotalSpotsKey(date)
	if special.TotalSpots != nil {
		if *special.TotalSpots < 0 {
			return fmt.Errorf("%w: totalSpots cannot be negative", ErrInvalidSettings)
		}
		return s.repo.SetSetting(ctx, spotsKey, fmt.Sprintf("%d", *special.TotalSpots))
	}

	return s.repo.DeleteSetting(ctx, spotsKey)
}

// GetAvailability возвращает записи ёмкости дней диапазона [from, to).
// Доступно только администратору.
func (s *Service) GetAvailability(ctx context.Context, requesterID int64, from, to time.Time) ([]model.DailyAvailability, error) {
	if err := s.requireAdmin(ctx, requesterID); err != nil {
		return nil, err
	}

	return s.repo.GetDays(ctx, dates.Normalize(from), dates.Normalize(to))
}

func (s *Service) requireAdmin(ctx context.Context, requesterID int64) error {
	requester, err := s.repo.GetUserByID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !requester.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
