package entity

// ExtractedInvoice is the payload returned by the extraction service for one
// document. No field is guaranteed present: the extraction client resolves
// missing numbers to zero and missing strings to "" when it decodes the
// response, so readers never need to nil-check nested sections.
type ExtractedInvoice struct {
	Meta      InvoiceMeta      `json:"invoice_metadata"`
	Vendor    Party            `json:"vendor"`
	Customer  Party            `json:"customer"`
	Financial FinancialSummary `json:"financial_summary"`
	Commodity CommodityDetail  `json:"commodity_details"`
}

// InvoiceMeta carries the document-level fields.
type InvoiceMeta struct {
	DocumentNumber string `json:"document_number"`
	IssueDate      string `json:"issue_date"` // YYYY-MM-DD
	DueDate        string `json:"due_date,omitempty"`
}

// Party is one side of the invoice (vendor or customer).
type Party struct {
	CompanyName string `json:"company_name"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
}

// FinancialSummary holds the money fields.
type FinancialSummary struct {
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
	CurrencyCode string  `json:"currency_code"` // ISO 4217
}

// CommodityDetail is the ordered line-item block.
type CommodityDetail struct {
	Items []LineItem `json:"items"`
}

// LineItem is one billed line on the invoice.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	Unit        string  `json:"unit,omitempty"`
}
