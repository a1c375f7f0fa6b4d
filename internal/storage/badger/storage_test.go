package badger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/alerting"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func newItem(id string) *models.TrackedItem {
	return models.ItemInput{
		ID:          id,
		Name:        "Item " + id,
		URL:         "https://shop.example.com/" + id,
		Selector:    ".price",
		TargetPrice: 100,
	}.ToItem()
}

func TestCatalog_AddGetList(t *testing.T) {
	catalog := newTestManager(t).CatalogStorage()
	ctx := context.Background()

	require.NoError(t, catalog.Add(ctx, newItem("a")))
	require.NoError(t, catalog.Add(ctx, newItem("b")))

	err := catalog.Add(ctx, newItem("a"))
	assert.ErrorIs(t, err, interfaces.ErrItemExists)

	item, err := catalog.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Item a", item.Name)
	assert.Equal(t, "$", item.Currency)
	assert.True(t, item.Enabled)
	assert.False(t, item.CreatedAt.IsZero())

	_, err = catalog.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrItemNotFound)

	items, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCatalog_AddGeneratesIDAndValidates(t *testing.T) {
	catalog := newTestManager(t).CatalogStorage()
	ctx := context.Background()

	item := newItem("")
	require.NoError(t, catalog.Add(ctx, item))
	assert.NotEmpty(t, item.ID)

	bad := newItem("bad")
	bad.URL = ""
	assert.Error(t, catalog.Add(ctx, bad))
}

func TestCatalog_EnableDisableToggle(t *testing.T) {
	catalog := newTestManager(t).CatalogStorage()
	ctx := context.Background()

	require.NoError(t, catalog.Add(ctx, newItem("a")))
	require.NoError(t, catalog.Add(ctx, newItem("b")))

	_, err := catalog.SetEnabled(ctx, "a", false)
	require.NoError(t, err)

	enabled, err := catalog.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "b", enabled[0].ID)

	toggled, err := catalog.Toggle(ctx, "a")
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)

	_, err = catalog.Toggle(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrItemNotFound)
}

func TestCatalog_UpdateAndRemove(t *testing.T) {
	catalog := newTestManager(t).CatalogStorage()
	ctx := context.Background()

	require.NoError(t, catalog.Add(ctx, newItem("a")))

	target := 42.5
	threshold := 0.0
	updated, err := catalog.Update(ctx, "a", models.ItemPatch{TargetPrice: &target, DropThreshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 42.5, updated.TargetPrice)
	require.NotNil(t, updated.DropThreshold)
	assert.Equal(t, 0.0, *updated.DropThreshold)

	stored, err := catalog.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 42.5, stored.TargetPrice)
	require.NotNil(t, stored.DropThreshold)
	assert.Equal(t, 0.0, *stored.DropThreshold)

	badURL := "::nope"
	_, err = catalog.Update(ctx, "a", models.ItemPatch{URL: &badURL})
	assert.Error(t, err)

	require.NoError(t, catalog.Remove(ctx, "a"))
	assert.ErrorIs(t, catalog.Remove(ctx, "a"), interfaces.ErrItemNotFound)
}

func TestCatalog_ZeroDropThresholdSurvivesReload(t *testing.T) {
	catalog := newTestManager(t).CatalogStorage()
	ctx := context.Background()

	zero := 0.0
	withZero := newItem("zero")
	withZero.DropThreshold = &zero
	require.NoError(t, catalog.Add(ctx, withZero))
	require.NoError(t, catalog.Add(ctx, newItem("unset")))

	stored, err := catalog.Get(ctx, "zero")
	require.NoError(t, err)
	require.NotNil(t, stored.DropThreshold)
	assert.Equal(t, 0.0, *stored.DropThreshold)

	unset, err := catalog.Get(ctx, "unset")
	require.NoError(t, err)
	assert.Nil(t, unset.DropThreshold)

	enabled, err := catalog.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 2)
	for _, item := range enabled {
		if item.ID == "zero" {
			require.NotNil(t, item.DropThreshold)
		}
	}

	// A 5% drop below target fires for the stored zero threshold but not for the 25% default
	policy := alerting.NewPolicy(common.AlertingConfig{DropThreshold: 25})
	stat := &models.ComparisonStat{ChangePercent: -5}

	notify, reason := policy.Decide(stored, 95, stat)
	assert.True(t, notify)
	assert.Equal(t, alerting.ReasonDropped, reason)

	notify, reason = policy.Decide(unset, 95, stat)
	assert.False(t, notify)
	assert.Equal(t, alerting.ReasonBelowTrigger, reason)
}

func TestHistory_RecentMinimumLatest(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	min, err := history.Minimum(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, min)

	for i, price := range []float64{70, 55, 60} {
		_, err := history.Append(ctx, "a", price, "$", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	_, err = history.Append(ctx, "b", 10, "$", base)
	require.NoError(t, err)

	recent, err := history.Recent(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 60.0, recent[0].Price)
	assert.Equal(t, 55.0, recent[1].Price)

	min, err = history.Minimum(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, min)
	assert.Equal(t, 55.0, min.Price)

	latest, err := history.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 60.0, latest.Price)

	ranged, err := history.Range(ctx, "a", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, 55.0, ranged[0].Price)
	assert.Equal(t, 60.0, ranged[1].Price)
}

func TestHistory_Rollup(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, price := range []float64{70, 55, 60} {
		_, err := history.Append(ctx, "a", price, "$", base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}

	rollups, err := history.Rollup(ctx)
	require.NoError(t, err)
	require.Len(t, rollups, 1)
	assert.Equal(t, models.ItemRollup{
		ItemID:      "a",
		Current:     60,
		Lowest:      55,
		Highest:     70,
		Currency:    "$",
		LastChecked: rollups[0].LastChecked,
		TotalChecks: 3,
	}, rollups[0])
	assert.True(t, rollups[0].LastChecked.Equal(base.Add(2*time.Hour)))

	require.NoError(t, history.DeleteItem(ctx, "a"))
	recent, err := history.Recent(ctx, "a", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestHistory_AppendRespectsCancellation(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := history.Append(ctx, "a", 10, "$", time.Now())
	assert.ErrorIs(t, err, context.Canceled)

	recent, err := history.Recent(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestHistory_ConcurrentAppendsForDifferentItems(t *testing.T) {
	history := newTestManager(t).HistoryStorage()
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(itemID string, n int) {
				defer wg.Done()
				_, err := history.Append(ctx, itemID, float64(n+1), "$", base.Add(time.Duration(n)*time.Second))
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		recent, err := history.Recent(ctx, id, 0)
		require.NoError(t, err)
		assert.Len(t, recent, 5)
	}
}

func TestLoadItemsFromFile(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "items.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`
[[items]]
id = "headphones"
name = "Headphones"
url = "https://shop.example.com/headphones"
selector = ".price"
target_price = 250.0
drop_threshold = 0.0

[[items]]
id = "broken"
name = "Missing URL"
selector = ".price"

[[items]]
id = "kettle"
name = "Kettle"
url = "https://shop.example.com/kettle"
selector = "#price"
currency = "£"
target_price = 40.0
enabled = false
`), 0644))

	loaded, err := manager.LoadItemsFromFile(ctx, tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	headphones, err := manager.CatalogStorage().Get(ctx, "headphones")
	require.NoError(t, err)
	require.NotNil(t, headphones.DropThreshold)
	assert.Equal(t, 0.0, *headphones.DropThreshold)
	assert.True(t, headphones.NotifyOnLowestEver)

	kettle, err := manager.CatalogStorage().Get(ctx, "kettle")
	require.NoError(t, err)
	assert.False(t, kettle.Enabled)
	assert.Equal(t, "£", kettle.Currency)

	yamlPath := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
items:
  - id: kettle
    name: Kettle v2
    url: https://shop.example.com/kettle
    selector: "#price"
    target_price: 35
`), 0644))

	loaded, err = manager.LoadItemsFromFile(ctx, yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	kettle, err = manager.CatalogStorage().Get(ctx, "kettle")
	require.NoError(t, err)
	assert.Equal(t, "Kettle v2", kettle.Name)
	assert.True(t, kettle.Enabled)

	loaded, err = manager.LoadItemsFromFile(ctx, filepath.Join(dir, "absent.toml"))
	require.NoError(t, err)
	assert.Zero(t, loaded)

	_, err = ParseItemsFile("items.json", []byte("{}"))
	assert.Error(t, err)
}

func TestInMemoryDatabase(t *testing.T) {
	logger := arbor.NewLogger()
	db, err := NewInMemoryBadgerDB(logger)
	require.NoError(t, err)
	defer db.Close()

	manager := newManager(db, logger)
	require.NoError(t, manager.CatalogStorage().Add(context.Background(), newItem("mem")))

	item, err := manager.CatalogStorage().Get(context.Background(), "mem")
	require.NoError(t, err)
	assert.Equal(t, "mem", item.ID)
}
