package dto

// CurrencyListResponse is returned by GET /currency/currencies.
type CurrencyListResponse struct {
	Currencies map[string]string `json:"currencies"`
}
