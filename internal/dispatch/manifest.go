package dispatch

import (
	"github.com/shopspring/decimal"
)

// ProductDelivery is an operator-entered per-product total, applied to the
// manifest when the delivery is completed.
type ProductDelivery struct {
	ProductID         int64           `json:"product_id" validate:"required,gt=0"`
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity"`
}

// ApplyDelivered applies operator-entered delivered quantities to the
// matching manifest lines. All-or-nothing: any unknown product, negative
// quantity or quantity above the loaded quantity rejects the whole batch and
// the input lines are left untouched. Returns a new slice.
func ApplyDelivered(lines []ManifestLine, entries []ProductDelivery) ([]ManifestLine, error) {
	byProduct := make(map[int64]int, len(lines))
	for i := range lines {
		byProduct[lines[i].ProductID] = i
	}

	// Validate the full batch before mutating anything.
	for _, entry := range entries {
		idx, ok := byProduct[entry.ProductID]
		if !ok {
			return nil, validationErrorf("products", "product %d is not on the manifest", entry.ProductID)
		}
		if entry.DeliveredQuantity.IsNegative() {
			return nil, validationErrorf("products", "delivered quantity for product %d must not be negative", entry.ProductID)
		}
		if entry.DeliveredQuantity.GreaterThan(lines[idx].LoadedQuantity) {
			return nil, validationErrorf("products", "delivered quantity %s exceeds loaded quantity %s for product %d",
				entry.DeliveredQuantity, lines[idx].LoadedQuantity, entry.ProductID)
		}
	}

	out := make([]ManifestLine, len(lines))
	copy(out, lines)
	for _, entry := range entries {
		out[byProduct[entry.ProductID]].DeliveredQuantity = entry.DeliveredQuantity
	}
	return out, nil
}

// TotalLoaded sums loaded quantities across the manifest.
func TotalLoaded(lines []ManifestLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LoadedQuantity)
	}
	return total
}

// TotalDelivered sums delivered quantities across the manifest.
func TotalDelivered(lines []ManifestLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.DeliveredQuantity)
	}
	return total
}
