package domain

import (
	"errors"
	"strings"
	"time"
)

// SearchField задаёт поле поиска счетов.
type SearchField string

const (
	// SearchAll — без фильтра.
	SearchAll            SearchField = ""
	SearchByID           SearchField = "id"
	SearchByCustomerName SearchField = "customerName"
	SearchByStaffName    SearchField = "staffName"
	SearchByDate         SearchField = "date"

	// SearchDateLayout — формат даты для поиска (dd/MM/yyyy).
	SearchDateLayout = "02/01/2006"
)

// ErrInvalidSearchDate возвращается, если дата поиска не в формате dd/MM/yyyy.
var ErrInvalidSearchDate = errors.New("search date must be in dd/MM/yyyy format")

// SearchQuery описывает поиск счетов.
type SearchQuery struct {
	Field SearchField
	Value string
}

// NewSearchQuery нормализует тип поиска. Неизвестный тип или пустое значение
// дают запрос без фильтра.
func NewSearchQuery(searchType, value string) SearchQuery {
	value = strings.TrimSpace(value)
	if value == "" {
		return SearchQuery{}
	}

	var field SearchField
	switch strings.ToLower(strings.TrimSpace(searchType)) {
	case "id":
		field = SearchByID
	case "customer", "customername", "customer_name":
		field = SearchByCustomerName
	case "staff", "staffname", "staff_name":
		field = SearchByStaffName
	case "date":
		field = SearchByDate
	default:
		return SearchQuery{}
	}
	return SearchQuery{Field: field, Value: value}
}

// Unfiltered сообщает, что запрос возвращает все счета.
func (q SearchQuery) Unfiltered() bool {
	return q.Field == SearchAll || q.Value == ""
}

// DateRange возвращает полуинтервал [start, end) суток поиска в зоне loc.
func (q SearchQuery) DateRange(loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(SearchDateLayout, q.Value, loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidSearchDate
	}
	return day, day.AddDate(0, 0, 1), nil
}

// Matches проверяет счёт на соответствие запросу. Счёт должен быть
// прочитан вместе с клиентом и сотрудником.
func (q SearchQuery) Matches(b Bill, loc *time.Location) bool {
	if q.Unfiltered() {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}

	switch q.Field {
	case SearchByID:
		return strings.Contains(b.ID, q.Value)
	case SearchByCustomerName:
		return b.Customer != nil && containsFold(b.Customer.FullName, q.Value)
	case SearchByStaffName:
		return b.Staff != nil && containsFold(b.Staff.FullName, q.Value)
	case SearchByDate:
		return b.CreatedAt.In(loc).Format(SearchDateLayout) == q.Value
	default:
		return true
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
