package domain

// Product — товар каталога. Цена PriceMinor используется при расчёте счёта.
type Product struct {
	ID         string
	Name       string
	CostMinor  int64
	PriceMinor int64
	Type       string
	// Quantity — остаток на складе.
	Quantity  int32
	Size      string
	Info      string
	ImagePath string
}

// Customer — модель чтения клиента.
type Customer struct {
	ID       string
	FullName string
	Email    string
	Phone    string
}

// Staff — модель чтения сотрудника.
type Staff struct {
	ID       string
	FullName string
	Role     string
}

// ReferenceData — справочники, на которые ссылаются счета.
type ReferenceData struct {
	Products  []Product
	Customers []Customer
	Staff     []Staff
}
