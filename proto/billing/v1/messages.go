package billingv1

// Суммы передаются десятичными строками с двумя знаками ("35.00").

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type BillLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Total       string `json:"total"`
}

type Bill struct {
	ID              string      `json:"id"`
	Number          string      `json:"number"`
	StaffID         string      `json:"staff_id"`
	StaffName       string      `json:"staff_name,omitempty"`
	CustomerID      string      `json:"customer_id"`
	CustomerName    string      `json:"customer_name,omitempty"`
	Discount        string      `json:"discount"`
	OriginalPrice   string      `json:"original_price"`
	DiscountedTotal string      `json:"discounted_total"`
	Version         int64       `json:"version"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
	Lines           []*BillLine `json:"lines"`
}

type CreateBillRequest struct {
	ID         string      `json:"id,omitempty"`
	StaffID    string      `json:"staff_id"`
	CustomerID string      `json:"customer_id"`
	Discount   string      `json:"discount,omitempty"`
	Items      []*LineItem `json:"items"`
}

type CreateBillResponse struct {
	Bill    *Bill  `json:"bill"`
	Message string `json:"message"`
}

type UpdateBillRequest struct {
	ID              string      `json:"id"`
	StaffID         string      `json:"staff_id"`
	CustomerID      string      `json:"customer_id"`
	Discount        string      `json:"discount,omitempty"`
	Items           []*LineItem `json:"items"`
	ExpectedVersion int64       `json:"expected_version,omitempty"`
}

type UpdateBillResponse struct {
	Bill    *Bill  `json:"bill"`
	Message string `json:"message"`
}

type DeleteBillRequest struct {
	BillID string `json:"bill_id"`
}

type DeleteBillResponse struct {
	BillID  string `json:"bill_id"`
	Message string `json:"message"`
}

type GetBillRequest struct {
	BillID string `json:"bill_id"`
}

type GetBillResponse struct {
	Bill *Bill `json:"bill"`
}

// ListBillsRequest с пустым CustomerID возвращает все счета.
type ListBillsRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
}

type ListBillsResponse struct {
	Bills []*Bill `json:"bills"`
}

// SearchBillsRequest: SearchType — id, customer, staff или date (dd/MM/yyyy).
type SearchBillsRequest struct {
	SearchType  string `json:"search_type"`
	SearchValue string `json:"search_value"`
}

type SearchBillsResponse struct {
	Bills []*Bill `json:"bills"`
}

type ComputeTotalRequest struct {
	BillID string `json:"bill_id"`
}

type ComputeTotalResponse struct {
	BillID string `json:"bill_id"`
	Total  string `json:"total"`
}

type AddBillDetailRequest struct {
	BillID string    `json:"bill_id"`
	Item   *LineItem `json:"item"`
}

type AddBillDetailResponse struct {
	Bill    *Bill  `json:"bill"`
	Message string `json:"message"`
}

type RemoveBillDetailRequest struct {
	BillID    string `json:"bill_id"`
	ProductID string `json:"product_id"`
}

type RemoveBillDetailResponse struct {
	Bill    *Bill  `json:"bill"`
	Message string `json:"message"`
}

func (x *GetBillRequest) GetBillID() string {
	if x == nil {
		return ""
	}
	return x.BillID
}

func (x *DeleteBillRequest) GetBillID() string {
	if x == nil {
		return ""
	}
	return x.BillID
}

func (x *ComputeTotalRequest) GetBillID() string {
	if x == nil {
		return ""
	}
	return x.BillID
}
