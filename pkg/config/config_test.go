package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTables(t *testing.T) {
	raw := []byte(`
tables:
  - key: merchants
    label: Merchant onboarding
    name: analytics.merchants
    identity_column: merchant_id
    row_limit: 250
    columns:
      status: status_cd
  - key: " stores "
    name: stores
    identity_column: store_id
`)
	tables, err := ParseTables(raw)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "merchants", tables[0].Key)
	assert.Equal(t, "analytics.merchants", tables[0].Name)
	assert.Equal(t, "merchant_id", tables[0].IdentityColumn)
	assert.Equal(t, 250, tables[0].RowLimit)
	assert.Equal(t, "status_cd", tables[0].Columns.Status)
	assert.Empty(t, tables[0].Columns.PendingSize)
	assert.Equal(t, "stores", tables[1].Key)
}

func TestParseTablesRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"missing name":     "tables:\n  - key: a\n    identity_column: id\n",
		"missing identity": "tables:\n  - key: a\n    name: t\n",
		"duplicate key":    "tables:\n  - key: a\n    name: t\n    identity_column: id\n  - key: a\n    name: u\n    identity_column: id\n",
		"bad yaml":         "tables: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTables([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	assert.Nil(t, splitAndTrim(""))
	assert.Equal(t, []string{"a@x.ph", "b@x.ph"}, splitAndTrim(" a@x.ph, ,b@x.ph "))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
}
