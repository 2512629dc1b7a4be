package reconcile

import (
	"testing"

	"bizdash/backend/internal/domain"
)

func customers(pairs ...string) []domain.Customer {
	out := make([]domain.Customer, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.Customer{ID: pairs[i], Name: pairs[i+1]})
	}
	return out
}

func namesByID(items []domain.Customer) map[string]string {
	out := make(map[string]string, len(items))
	for _, c := range items {
		out[c.ID] = c.Name
	}
	return out
}

func TestMergePrimaryWinsAndSecondaryFillsGaps(t *testing.T) {
	local := customers("c1", "Ana")
	sheet := customers("c1", "Ana Stale", "c2", "Bruno")

	merged := Merge(local, sheet)

	if len(merged) != 2 {
		t.Fatalf("expected 2 merged customers, got %d", len(merged))
	}
	got := namesByID(merged)
	if got["c1"] != "Ana" {
		t.Fatalf("expected primary c1 to win, got %q", got["c1"])
	}
	if got["c2"] != "Bruno" {
		t.Fatalf("expected c2 from secondary, got %q", got["c2"])
	}
}

func TestMergeProperties(t *testing.T) {
	a := customers("c1", "Ana", "c2", "Bruno", "c3", "Carla")
	b := customers("c2", "Bruno B", "c4", "Dani")

	tests := []struct {
		name      string
		primary   []domain.Customer
		secondary []domain.Customer
		want      map[string]string
	}{
		{"identical inputs", a, a, namesByID(a)},
		{"empty secondary", a, nil, namesByID(a)},
		{"empty primary", nil, b, namesByID(b)},
		{"both empty", nil, nil, map[string]string{}},
		{"overlap", a, b, map[string]string{"c1": "Ana", "c2": "Bruno", "c3": "Carla", "c4": "Dani"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			merged := Merge(tc.primary, tc.secondary)
			got := namesByID(merged)
			if len(merged) != len(tc.want) || len(got) != len(tc.want) {
				t.Fatalf("expected %d ids, got %d (%v)", len(tc.want), len(merged), got)
			}
			for id, name := range tc.want {
				if got[id] != name {
					t.Fatalf("id %s: expected %q, got %q", id, name, got[id])
				}
			}
		})
	}
}

func TestMergeKeepsPrimaryOrderThenNewSecondaryRows(t *testing.T) {
	merged := Merge(customers("c2", "B", "c1", "A"), customers("c9", "Z", "c1", "X", "c5", "E"))
	order := make([]string, 0, len(merged))
	for _, c := range merged {
		order = append(order, c.ID)
	}
	want := []string{"c2", "c1", "c9", "c5"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestMergeSkipsBlankAndDuplicateSecondaryIDs(t *testing.T) {
	merged := Merge(nil, customers("", "Ghost", "c1", "First", "c1", "Second"))
	if len(merged) != 1 || merged[0].Name != "First" {
		t.Fatalf("expected only first c1, got %+v", merged)
	}
}

func TestMergeWorksForEveryEntityKind(t *testing.T) {
	products := Merge([]domain.Product{{ID: "p1", Name: "Cafe"}}, []domain.Product{{ID: "p1", Name: "Old"}, {ID: "p2", Name: "Cha"}})
	if len(products) != 2 || products[0].Name != "Cafe" {
		t.Fatalf("unexpected products merge: %+v", products)
	}
	suppliers := Merge(nil, []domain.Supplier{{ID: "s1"}})
	if len(suppliers) != 1 {
		t.Fatalf("unexpected suppliers merge: %+v", suppliers)
	}
	txns := Merge([]domain.Transaction{{ID: "t1"}}, []domain.Transaction{{ID: "t1", Description: "stale"}})
	if len(txns) != 1 || txns[0].Description != "" {
		t.Fatalf("unexpected transactions merge: %+v", txns)
	}
}
