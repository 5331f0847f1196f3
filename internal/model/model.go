// Package model содержит доменные сущности сервиса бронирования мест.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного пользователя сервиса.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin возвращает true, если пользователь обладает правами администратора.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// ReservationStatus описывает статус жизненного цикла брони.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation описывает бронь диапазона дат одним пользователем.
// Диапазон полуоткрытый: StartDate включается, EndDate — нет.
type Reservation struct {
	ID              int64
	UserID          int64
	StartDate       time.Time
	EndDate         time.Time
	TotalPriceCents int64
	Status          ReservationStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DailyAvailability хранит ёмкость одного календарного дня.
// Запись создаётся лениво при первом обращении к дате.
type DailyAvailability struct {
	ID             int64
	Date           time.Time
	TotalSpots     int
	AvailableSpots int
	UpdatedAt      time.Time
}

// Имена глобальных настроек в таблице settings.
const (
	SettingDailyPrice        = "daily_price"
	SettingDefaultTotalSpots = "default_total_spots"
)

// SettingSpecialPriceKey возвращает имя настройки цены конкретной даты.
func SettingSpecialPriceKey(date time.Time) string {
	return "special_price_" + date.Format("2006-01-02")
}

// SettingSpecialTotalSpotsKey возвращает имя настройки количества мест конкретной даты.
func SettingSpecialTotalSpotsKey(date time.Time) string {
	return "special_total_spots_" + date.Format("2006-01-02")
}

// Settings содержит глобальные значения по умолчанию, доступные администратору.
type Settings struct {
	MaxReservationsPerDay int     `json:"maxReservationsPerDay"`
	PricePerDay           float64 `json:"pricePerDay"`
}
