package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

func TestNewSearchQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		typ       string
		value     string
		wantField domain.SearchField
	}{
		{name: "id", typ: "id", value: "01H", wantField: domain.SearchByID},
		{name: "customer alias", typ: "customer", value: "nguyen", wantField: domain.SearchByCustomerName},
		{name: "customer name", typ: "customerName", value: "nguyen", wantField: domain.SearchByCustomerName},
		{name: "staff", typ: "staffName", value: "tran", wantField: domain.SearchByStaffName},
		{name: "date", typ: "date", value: "15/03/2024", wantField: domain.SearchByDate},
		{name: "unknown type", typ: "price", value: "10", wantField: domain.SearchAll},
		{name: "empty value", typ: "id", value: "  ", wantField: domain.SearchAll},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := domain.NewSearchQuery(tt.typ, tt.value)
			require.Equal(t, tt.wantField, q.Field)
			require.Equal(t, tt.wantField == domain.SearchAll, q.Unfiltered())
		})
	}
}

func TestSearchQuery_Matches(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*60*60)
	bill := domain.Bill{
		ID:        "01HQ3ABCDEF",
		CreatedAt: time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC), // 15/03/2024 03:00 ICT
		Customer:  &domain.Customer{FullName: "Nguyen Van A"},
		Staff:     &domain.Staff{FullName: "Tran Thi B"},
	}

	require.True(t, domain.NewSearchQuery("id", "3ABC").Matches(bill, loc))
	require.False(t, domain.NewSearchQuery("id", "3abc").Matches(bill, loc))
	require.True(t, domain.NewSearchQuery("customer", "van a").Matches(bill, loc))
	require.False(t, domain.NewSearchQuery("customer", "tran").Matches(bill, loc))
	require.True(t, domain.NewSearchQuery("staff", "THI").Matches(bill, loc))
	require.True(t, domain.NewSearchQuery("date", "15/03/2024").Matches(bill, loc))
	require.False(t, domain.NewSearchQuery("date", "14/03/2024").Matches(bill, loc))
	require.True(t, domain.NewSearchQuery("date", "14/03/2024").Matches(bill, time.UTC))
	require.True(t, domain.NewSearchQuery("unknown", "x").Matches(bill, loc))
}

func TestSearchQuery_DateRange(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*60*60)
	start, end, err := domain.NewSearchQuery("date", "15/03/2024").DateRange(loc)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc), start)
	require.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = domain.NewSearchQuery("date", "2024-03-15").DateRange(loc)
	require.ErrorIs(t, err, domain.ErrInvalidSearchDate)
}
