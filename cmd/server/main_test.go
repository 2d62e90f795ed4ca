package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discounthunter/backend/config"
	"github.com/discounthunter/backend/internal/infrastructure/cache"
	"github.com/discounthunter/backend/internal/infrastructure/jobstore"
)

func testStores() []config.StoreConfig {
	return []config.StoreConfig{
		{ID: "rimi", Name: "Rimi", Kind: config.StoreKindScrapingBee, SearchURL: "https://www.rimi.lt/e-parduotuve/lt/paieska?query={query}", RenderJS: true, WaitMS: 4000, Enabled: true},
		{ID: "aibe", Name: "Aibė", Kind: config.StoreKindPriceList, PriceList: "../../internal/infrastructure/pricelist/testdata/aibe.yaml", Enabled: true},
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := &config.Config{Stores: testStores(), Cache: config.CacheConfig{Type: "memory", TTL: time.Minute}}
	quoteCache := cache.NewMemoryCache(0)
	t.Cleanup(quoteCache.Close)

	registry, priceLists, err := buildRegistry(cfg, quoteCache)
	require.NoError(t, err)

	list := registry.List()
	require.Len(t, list, 2)
	assert.Equal(t, "rimi", list[0].ID)
	assert.Equal(t, config.StoreKindScrapingBee, list[0].Kind)
	assert.Equal(t, "aibe", list[1].ID)
	require.Len(t, priceLists, 1)
	assert.Len(t, registry.Enabled(nil), 2)
}

func TestBuildRegistry_WithoutCache(t *testing.T) {
	cfg := &config.Config{Stores: testStores()}

	registry, _, err := buildRegistry(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, registry.List(), 2)
}

func TestBuildRegistry_MissingPriceList(t *testing.T) {
	stores := testStores()
	stores[1].PriceList = "missing.yaml"

	t.Run("enabled store fails startup", func(t *testing.T) {
		_, _, err := buildRegistry(&config.Config{Stores: stores}, nil)
		assert.Error(t, err)
	})

	t.Run("disabled store is skipped", func(t *testing.T) {
		stores[1].Enabled = false
		registry, priceLists, err := buildRegistry(&config.Config{Stores: stores}, nil)
		require.NoError(t, err)
		assert.Len(t, registry.List(), 1)
		assert.Empty(t, priceLists)
	})
}

func TestNewJobRepository_Memory(t *testing.T) {
	jobs, db, err := newJobRepository(context.Background(), config.JobStoreConfig{Type: "memory"})
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.IsType(t, &jobstore.MemoryStore{}, jobs)
}
