package memory

import (
	"context"
	"testing"

	"tokobill/backend/internal/domain"
)

func TestUpdateProductPreservesCurrentStock(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, domain.Product{
		StoreID: 1, Name: "Drip Bag", PriceCents: 500, Stock: 5, Active: true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	// A sale lands between the caller's read and its update.
	stale := *created
	if _, err := s.AdjustStock(ctx, domain.InventoryTransaction{
		StoreID: 1, ProductID: created.ID, Quantity: -2, Reason: domain.InventoryReasonSale,
	}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}

	stale.Name = "Drip Bag v2"
	updated, err := s.UpdateProduct(ctx, stale)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Name != "Drip Bag v2" {
		t.Fatalf("name not updated: %+v", updated)
	}
	if updated.Stock != 3 {
		t.Fatalf("stale update clobbered stock: got %d, want 3", updated.Stock)
	}
}
