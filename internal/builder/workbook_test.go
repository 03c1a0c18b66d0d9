package builder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stratdesk/internal/artifact"
	"stratdesk/internal/workspace"
)

func newTestBuilder(t *testing.T) (*Builder, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewBuilder(workspace.NewManager(t.TempDir()), store), store
}

func TestWorkbookScenario(t *testing.T) {
	b, store := newTestBuilder(t)

	id, err := b.InitWorkbook("s1", "Report")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, b.AddSheet("s1", id, "Summary", []string{"Metric", "Value"}, [][]string{{"Total", "3"}}))
	require.NoError(t, b.AddSheet("s1", id, "Detail", []string{"Name"}, [][]string{{"A"}, {"B"}}))

	preview, err := b.Preview("s1", id, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, preview.SheetCount)
	assert.Equal(t, StateOpen, preview.State)

	summary := preview.Sheets[0]
	assert.Equal(t, "Summary", summary.Name)
	assert.Equal(t, []string{"Metric", "Value"}, summary.Headers)
	assert.Equal(t, 1, summary.RowCount)
	assert.Equal(t, [][]string{{"Total", "3"}}, summary.SampleRows)

	detail := preview.Sheets[1]
	assert.Equal(t, "Detail", detail.Name)
	assert.Equal(t, 2, detail.RowCount)
	assert.Equal(t, [][]string{{"A"}}, detail.SampleRows, "sample must be bounded to one row")

	meta, err := b.Generate("s1", id, GenerateOptions{Author: "StratDesk", AutoFitColumns: true, StyleHeader: true})
	require.NoError(t, err)
	assert.Equal(t, artifact.TypeSpreadsheet, meta.Type)
	assert.Equal(t, "Report", meta.Title)

	// Any mutation after generation is a state error.
	err = b.AddRows("s1", id, "Detail", [][]string{{"C"}})
	assert.ErrorIs(t, err, ErrWorkbookGenerated)
	err = b.AddSheet("s1", id, "More", []string{"X"}, nil)
	assert.ErrorIs(t, err, ErrWorkbookGenerated)
	_, err = b.Generate("s1", id, GenerateOptions{})
	assert.ErrorIs(t, err, ErrWorkbookGenerated)

	// Preview still works on a generated workbook.
	preview, err = b.Preview("s1", id, 1)
	require.NoError(t, err)
	assert.Equal(t, StateGenerated, preview.State)

	// The stored payload is a readable xlsx with the right shape.
	payload, err := store.GetBytes(meta.ID)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "Detail"}, f.GetSheetList())
	rows, err := f.GetRows("Detail")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name"}, {"A"}, {"B"}}, rows)
}

func TestDuplicateSheetRejected(t *testing.T) {
	b, _ := newTestBuilder(t)
	id, err := b.InitWorkbook("s1", "Report")
	require.NoError(t, err)

	require.NoError(t, b.AddSheet("s1", id, "Data", []string{"A"}, nil))
	err = b.AddSheet("s1", id, "Data", []string{"B"}, nil)
	assert.ErrorIs(t, err, ErrDuplicateSheet)
}

func TestAddRowsToMissingSheet(t *testing.T) {
	b, _ := newTestBuilder(t)
	id, err := b.InitWorkbook("s1", "Report")
	require.NoError(t, err)

	err = b.AddRows("s1", id, "Nope", [][]string{{"x"}})
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestUnknownWorkbook(t *testing.T) {
	b, _ := newTestBuilder(t)

	err := b.AddSheet("s1", "missing-id", "S", []string{"A"}, nil)
	assert.ErrorIs(t, err, ErrWorkbookNotFound)
	_, err = b.Preview("s1", "missing-id", 1)
	assert.ErrorIs(t, err, ErrWorkbookNotFound)
	_, err = b.Generate("s1", "missing-id", GenerateOptions{})
	assert.ErrorIs(t, err, ErrWorkbookNotFound)
}

func TestWorkbookScopedToSession(t *testing.T) {
	b, _ := newTestBuilder(t)
	id, err := b.InitWorkbook("session-a", "Report")
	require.NoError(t, err)

	// The same workbook id under another session does not resolve.
	err = b.AddSheet("session-b", id, "S", []string{"A"}, nil)
	assert.ErrorIs(t, err, ErrWorkbookNotFound)
}

func TestAddRowsBatches(t *testing.T) {
	b, _ := newTestBuilder(t)
	id, err := b.InitWorkbook("s1", "Batches")
	require.NoError(t, err)

	require.NoError(t, b.AddSheet("s1", id, "Data", []string{"N"}, [][]string{{"1"}}))
	require.NoError(t, b.AddRows("s1", id, "Data", [][]string{{"2"}, {"3"}}))
	require.NoError(t, b.AddRows("s1", id, "Data", [][]string{{"4"}}))

	preview, err := b.Preview("s1", id, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Sheets[0].RowCount)
	assert.Equal(t, [][]string{{"1"}, {"2"}, {"3"}, {"4"}}, preview.Sheets[0].SampleRows)
}
