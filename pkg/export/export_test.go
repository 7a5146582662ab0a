package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Table{
	Title:   "Meetings for Ada Lovelace",
	Columns: []string{"Date", "Start", "End", "With"},
	Rows: [][]string{
		{"2024-06-10", "09:00", "11:00", "Grace Hopper"},
		{"2024-06-11", "23:00", "01:00", "Unknown student"},
	},
}

func TestCSVRender(t *testing.T) {
	out, err := NewCSV().Render(sample)
	require.NoError(t, err)
	assert.Equal(t, "Date,Start,End,With\n2024-06-10,09:00,11:00,Grace Hopper\n2024-06-11,23:00,01:00,Unknown student\n", string(out))
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDF().Render(sample)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRenderRejectsRaggedRows(t *testing.T) {
	bad := Table{Columns: []string{"a", "b"}, Rows: [][]string{{"x"}}}
	_, err := NewCSV().Render(bad)
	assert.Error(t, err)
	_, err = NewPDF().Render(Table{})
	assert.Error(t, err)
}
