package model

// ConversionResult is the outcome of a latest-rate conversion.
// Date is always null for latest conversions.
type ConversionResult struct {
	FromCurrency    string  `json:"from_currency"`
	ToCurrency      string  `json:"to_currency"`
	Amount          float64 `json:"amount"`
	ConvertedAmount float64 `json:"converted_amount"`
	Rate            float64 `json:"rate"`
	Date            *string `json:"date"`
}

// HistoricalResult holds per-date rates and converted amounts, keyed by YYYY-MM-DD.
// Rates maps date to {currency code: rate}.
type HistoricalResult struct {
	FromCurrency     string                        `json:"from_currency"`
	ToCurrency       string                        `json:"to_currency"`
	Amount           float64                       `json:"amount"`
	Rates            map[string]map[string]float64 `json:"rates"`
	ConvertedAmounts map[string]float64            `json:"converted_amounts"`
}
