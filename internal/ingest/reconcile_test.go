package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/stalestock/internal/domain"
)

func TestReconcileCanonicalHeaders(t *testing.T) {
	headers := []string{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"}

	mapping, err := Reconcile(headers, DefaultAliasTable)
	require.NoError(t, err)
	for _, h := range headers {
		assert.Equal(t, h, mapping[h])
	}
}

func TestReconcileAliases(t *testing.T) {
	headers := []string{"store", "product", "category", "SKU", "daily", "last_month", "this_month"}

	mapping, err := Reconcile(headers, DefaultAliasTable)
	require.NoError(t, err)
	assert.Equal(t, "SKU", mapping[domain.ColSKU])
	assert.Equal(t, "store", mapping[domain.ColStore])
	assert.Equal(t, "this_month", mapping[domain.ColCurStale])
}

func TestReconcilePrefersDeclaredOrder(t *testing.T) {
	headers := []string{"sku", "MSKU", "门店", "Shop", "品名", "品类", "日均", "上月库存", "本月库存"}

	mapping, err := Reconcile(headers, DefaultAliasTable)
	require.NoError(t, err)
	assert.Equal(t, "MSKU", mapping[domain.ColSKU])
	assert.Equal(t, "Shop", mapping[domain.ColStore])
}

func TestReconcileTrimsHeaders(t *testing.T) {
	headers := []string{" 店铺 ", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"}

	mapping, err := Reconcile(headers, DefaultAliasTable)
	require.NoError(t, err)
	assert.Equal(t, " 店铺 ", mapping[domain.ColStore])
}

func TestReconcileMissingColumns(t *testing.T) {
	headers := []string{"店铺", "品名", "产品类别", "Msku", "上月滞销", "本月滞销"}

	mapping, err := Reconcile(headers, DefaultAliasTable)
	assert.Nil(t, mapping)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"日均"}, missing.Missing)
	assert.Equal(t, headers, missing.Headers)
	assert.Contains(t, err.Error(), "缺少必要列")
}

func TestReconcileReportsAllMissingInTableOrder(t *testing.T) {
	_, err := Reconcile([]string{"foo", "本月滞销", "store"}, DefaultAliasTable)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"品名", "产品类别", "Msku", "日均", "上月滞销"}, missing.Missing)
}

func TestNormalizeHeaders(t *testing.T) {
	got := normalizeHeaders([]string{" a ", "b", "a", "", "a"})
	assert.Equal(t, []string{"a", "b", "a.1", "Unnamed: 3", "a.2"}, got)
}

func TestFindDateColumn(t *testing.T) {
	headers := []string{"店铺", "统计日期", "Date"}
	got, ok := findDateColumn(headers, map[string]string{domain.ColStore: "店铺"})
	require.True(t, ok)
	assert.Equal(t, "统计日期", got)

	got, ok = findDateColumn([]string{"Date", "统计日期", "日期"}, nil)
	require.True(t, ok)
	assert.Equal(t, "日期", got)

	_, ok = findDateColumn([]string{"店铺", "备注"}, nil)
	assert.False(t, ok)
}
