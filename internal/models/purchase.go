package models

import "time"

// PurchasePackage is a consumable credit bundle offered in the store.
type PurchasePackage struct {
	ProductID     string `json:"product_id"`
	Title         string `json:"title"`
	Credits       int    `json:"credits"`
	FallbackPrice string `json:"fallback_price"`
	Highlight     bool   `json:"highlight"`
}

// DisplayVideoCount is the number of videos the credits buy, at least one.
func (p PurchasePackage) DisplayVideoCount() int {
	return max(1, p.Credits/CreditCostPerVideo)
}

// Catalog is the static list of credit packages.
var Catalog = []PurchasePackage{
	{ProductID: "ruya.credits.spark", Title: "Spark", Credits: 10, FallbackPrice: "₺69,99"},
	{ProductID: "ruya.credits.orbit", Title: "Orbit", Credits: 25, FallbackPrice: "₺129,99", Highlight: true},
	{ProductID: "ruya.credits.infinity", Title: "Infinity", Credits: 60, FallbackPrice: "₺249,99"},
}

// PackageByID looks a package up in Catalog.
func PackageByID(productID string) (PurchasePackage, bool) {
	for _, p := range Catalog {
		if p.ProductID == productID {
			return p, true
		}
	}
	return PurchasePackage{}, false
}

// Transaction is a store transaction as reported by the platform store.
type Transaction struct {
	ID           string    `json:"transaction_id"`
	OriginalID   string    `json:"original_transaction_id"`
	ProductID    string    `json:"product_id"`
	PurchaseDate time.Time `json:"purchase_date"`
	Environment  string    `json:"environment"`
}
