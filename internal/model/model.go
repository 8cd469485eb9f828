// Package model содержит доменные сущности бэк-офиса.
package model

import "time"

// Permission задаёт битовую маску прав пользователя.
type Permission int64

const (
	// PermissionManageUsers разрешает управление пользователями.
	PermissionManageUsers Permission = 1 << 0
	// PermissionManageProducts разрешает управление каталогом и завершение реализаций.
	PermissionManageProducts Permission = 1 << 1
	// PermissionSellProducts разрешает продажу товаров и просмотр каталога.
	PermissionSellProducts Permission = 1 << 2
)

// Satisfies проверяет, что маска содержит все биты требуемого набора.
func (p Permission) Satisfies(required Permission) bool {
	return p&required == required
}

// User представляет учётную запись сотрудника.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Permission   Permission
}

// Product описывает товар каталога.
type Product struct {
	ID          int64
	Name        string
	Article     string
	Description string
	Price       float64
	Quantity    int64
}

// SalesRequest описывает одну строку продажи товара.
type SalesRequest struct {
	ID             int64
	UserID         int64
	ProductID      int64
	Price          float64
	Income         float64
	Quantity       int64
	ProductOrderID *int64
}

// ProductOrder описывает реализацию — группу строк продаж одного пользователя.
type ProductOrder struct {
	ID              int64
	Finished        bool
	UserID          int64
	RealizationDate time.Time
}

// OrderSummary содержит строку списка реализаций с агрегированными суммами.
type OrderSummary struct {
	ID       int64
	Date     time.Time
	Username string
	Price    float64
	Income   float64
	Finished bool
}

// SalesItem содержит строку продажи с названием товара.
type SalesItem struct {
	ID          int64
	ProductName string
	Price       float64
	Quantity    int64
	Income      float64
}

// OrderLine содержит строку реализации с данными товара для печатной формы.
type OrderLine struct {
	Name     string
	Article  string
	Quantity int64
	Price    float64
	Income   float64
}

// OrderReport содержит данные для формирования печатной формы реализации.
type OrderReport struct {
	OrderID         int64
	RealizationDate time.Time
	Lines           []OrderLine
}
