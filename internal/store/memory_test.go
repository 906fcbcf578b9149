package store_test

import (
	"context"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/storetest"
)

func TestMemoryContract(t *testing.T) {
	storetest.Run(t, store.NewMemory())
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	bag := map[string]int{"cat": 1}
	id, _ := m.InsertDocument(ctx, store.Document{Title: "t", URL: "u", TermBag: bag})
	bag["cat"] = 99

	doc, err := m.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.TermBag["cat"] != 1 {
		t.Errorf("stored bag aliased caller map: %v", doc.TermBag)
	}
	doc.TermBag["cat"] = 5
	again, _ := m.GetDocument(ctx, id)
	if again.TermBag["cat"] != 1 {
		t.Errorf("returned bag aliases store: %v", again.TermBag)
	}
}
