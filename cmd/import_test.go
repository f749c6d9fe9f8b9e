package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLeadsCSV(t *testing.T) {
	path := writeCSV(t, `id,first_name,last_name,city,state,phone,email
l1,Jane,Doe,Denver,CO,303-555-1234,jane@example.com
l2,Sam,Smith,,,,sam@example.com
`)

	leads, err := loadLeadsCSV(path)
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "l1", leads[0].ID)
	assert.Equal(t, "Jane", leads[0].FirstName)
	assert.Equal(t, "Doe", leads[0].LastName)
	assert.Equal(t, "Denver", leads[0].City)
	assert.Equal(t, "303-555-1234", leads[0].Phone)
	assert.Equal(t, "sam@example.com", leads[1].Email)
}

func TestLoadLeadsCSVHeaderIsCaseInsensitive(t *testing.T) {
	path := writeCSV(t, `ID, First_Name , LAST_NAME,Phone
l1,Jane,Doe,3035551234
`)

	leads, err := loadLeadsCSV(path)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Jane", leads[0].FirstName)
	assert.Equal(t, "3035551234", leads[0].Phone)
}

func TestLoadLeadsCSVRawNameColumn(t *testing.T) {
	path := writeCSV(t, `name,phone
"Doe, Jane",3035551234
`)

	leads, err := loadLeadsCSV(path)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Doe, Jane", leads[0].RawName)
}

func TestLoadLeadsCSVAssignsPositionalIDs(t *testing.T) {
	path := writeCSV(t, `first_name,last_name
Jane,Doe
Sam,Smith
`)

	leads, err := loadLeadsCSV(path)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead-1", leads[0].ID)
	assert.Equal(t, "lead-2", leads[1].ID)
}

func TestLoadLeadsCSVSkipsEmptyRows(t *testing.T) {
	path := writeCSV(t, `id,first_name,last_name,phone,email
l1,,,,
l2,Jane,Doe,,
`)

	leads, err := loadLeadsCSV(path)
	require.NoError(t, err)
	require.Len(t, leads, 1, "rows with nothing to enrich on are dropped")
	assert.Equal(t, "l2", leads[0].ID)
}

func TestLoadLeadsCSVMissingFile(t *testing.T) {
	_, err := loadLeadsCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
