package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesAreEmbeddedInOrder(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.Equal(t, []string{"001_core_schema.sql", "002_einvoice.sql", "003_sale_request_hash.sql"}, names)

	body, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "CREATE TABLE IF NOT EXISTS batches"))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	assert.Equal(t, "r-1", nullIfEmpty("r-1"))
	assert.Nil(t, nullJSON(nil))
	assert.Equal(t, `{"a":1}`, nullJSON(json.RawMessage(`{"a":1}`)))
}
