package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAddresses_English(t *testing.T) {
	t.Parallel()

	text := `Joe's Diner is located at 1234 Main Street in the heart of downtown.
Parking available at 56 Oak Avenue West behind the building.`

	got := ExtractAddresses(text, 5)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "1234 Main Street")
	assert.Contains(t, got[1], "56 Oak Avenue West")
}

func TestExtractAddresses_French(t *testing.T) {
	t.Parallel()

	text := `Situé au 3895 boulevard Saint-Laurent, près du 1234 rue Sainte-Catherine Est.`

	got := ExtractAddresses(text, 5)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "3895 boulevard Saint-Laurent")
	assert.Contains(t, got[1], "1234 rue Sainte-Catherine")
}

func TestExtractAddresses_Dedup(t *testing.T) {
	t.Parallel()

	text := `Visit us at 1234 Main Street. Again: 1234 MAIN STREET. Also 1234 main street.`

	got := ExtractAddresses(text, 5)
	assert.Len(t, got, 1)
}

func TestExtractAddresses_Cap(t *testing.T) {
	t.Parallel()

	text := `10 First Street, 20 Second Street, 30 Third Street, 40 Fourth Street`

	got := ExtractAddresses(text, 2)
	assert.Len(t, got, 2)
}

func TestExtractAddresses_NoAddresses(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ExtractAddresses("a lovely cafe near the park, around the corner", 5))
	assert.Empty(t, ExtractAddresses("", 5))
	assert.Empty(t, ExtractAddresses("1234 Main Street", 0))
}
