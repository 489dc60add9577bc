package ledger_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/ledger"
	"github.com/commodex/paper-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func tempStore(t *testing.T) (*ledger.FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	return ledger.NewFileStore(path, ""), path
}

func TestFileStoreMissingFileIsEmptyTable(t *testing.T) {
	store, _ := tempStore(t)

	table, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if table == nil {
		t.Fatal("table is nil, want empty table")
	}
	if len(table) != 0 {
		t.Fatalf("len(table) = %d, want 0", len(table))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, _ := tempStore(t)
	ctx := context.Background()

	table := ledger.Table{
		"alice": {
			Username: "alice",
			Balance:  d(998800),
			Holdings: map[string]model.Holding{
				"HOG": {Position: d(10), AverageCost: d(120)},
			},
			History: []model.TradeRecord{
				{ID: "t1", Side: model.SideBuy, Symbol: "HOG", Quantity: d(10), Price: d(120), BalanceAfter: d(998800), PositionAfter: d(10), RealizedPnL: decimal.Zero},
			},
		},
	}
	if err := store.SaveAll(ctx, table); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	got, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	acct, ok := got["alice"]
	if !ok {
		t.Fatal("alice missing after round trip")
	}
	if !acct.Balance.Equal(d(998800)) {
		t.Errorf("balance = %s, want 998800", acct.Balance)
	}
	h := acct.Holdings["HOG"]
	if !h.Position.Equal(d(10)) || !h.AverageCost.Equal(d(120)) {
		t.Errorf("holding = %+v, want position 10 @ 120", h)
	}
	if len(acct.History) != 1 || acct.History[0].ID != "t1" {
		t.Errorf("history = %+v, want the single seeded record", acct.History)
	}
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	store, path := tempStore(t)

	if err := store.SaveAll(context.Background(), ledger.Table{}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreMigratesLegacySinglePosition(t *testing.T) {
	store, path := tempStore(t)
	ctx := context.Background()

	// Pre-holdings format: one implicit position per account, history
	// entries without a symbol, decimals written as bare JSON numbers.
	legacy := `{
		"bob": {
			"balance": 995000,
			"position": 25,
			"avgCost": 200.5,
			"history": [
				{"id": "old-1", "side": "buy", "quantity": 25, "price": 200.5, "balanceAfter": 995000, "positionAfter": 25, "realizedPnl": 0}
			]
		}
	}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	table, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	acct := table["bob"]
	if acct == nil {
		t.Fatal("bob missing after migration")
	}
	h, ok := acct.Holdings[ledger.DefaultLegacySymbol]
	if !ok {
		t.Fatalf("holdings = %+v, want entry under %s", acct.Holdings, ledger.DefaultLegacySymbol)
	}
	if !h.Position.Equal(d(25)) || !h.AverageCost.Equal(d(200.5)) {
		t.Errorf("migrated holding = %+v, want 25 @ 200.5", h)
	}
	if got := acct.History[0].Symbol; got != ledger.DefaultLegacySymbol {
		t.Errorf("history symbol = %q, want %q", got, ledger.DefaultLegacySymbol)
	}

	// The file must be rewritten in the current shape immediately.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var onDisk map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode rewritten file: %v", err)
	}
	if _, ok := onDisk["bob"]["position"]; ok {
		t.Error("rewritten file still carries legacy position field")
	}
	if _, ok := onDisk["bob"]["holdings"]; !ok {
		t.Error("rewritten file missing holdings mapping")
	}

	// A second load sees the converged shape and changes nothing.
	again, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("second LoadAll: %v", err)
	}
	h2 := again["bob"].Holdings[ledger.DefaultLegacySymbol]
	if !h2.Position.Equal(d(25)) || !h2.AverageCost.Equal(d(200.5)) {
		t.Errorf("holding after second load = %+v, want 25 @ 200.5", h2)
	}
}

func TestFileStoreCustomLegacySymbol(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	store := ledger.NewFileStore(path, "WTI")

	legacy := `{"carol": {"balance": 1000, "position": 3, "avgCost": 70}}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	table, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if _, ok := table["carol"].Holdings["WTI"]; !ok {
		t.Errorf("holdings = %+v, want entry under WTI", table["carol"].Holdings)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	store, path := tempStore(t)

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := store.LoadAll(context.Background()); err == nil {
		t.Fatal("LoadAll succeeded on corrupt file, want error")
	}
}

func TestFileStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "accounts.json")
	store := ledger.NewFileStore(path, "")

	if err := store.SaveAll(context.Background(), ledger.Table{}); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Stat after save: %v", err)
	}
}
