// Package builder incrementally assembles session-scoped document artifacts:
// multi-sheet workbooks and validated slide decks. Builders stage
// intermediate state through the session workspace and freeze finished
// output into the artifact store.
package builder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"stratdesk/internal/artifact"
	"stratdesk/internal/logging"
	"stratdesk/internal/workspace"
)

// State is a workbook's lifecycle position. The only transition is
// StateOpen -> StateGenerated, taken exactly once by a successful Generate.
type State string

const (
	StateOpen      State = "open"
	StateGenerated State = "generated"
)

// Sheet holds one named table: a header row plus data rows.
type Sheet struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// workbook is the in-progress state for one (session, workbook id). Its
// mutex serializes mutating calls so concurrent misuse cannot corrupt sheet
// state.
type workbook struct {
	mu        sync.Mutex
	sessionID string
	id        string
	title     string
	state     State
	sheets    []*Sheet
	byName    map[string]*Sheet
}

// GenerateOptions tune workbook serialization.
type GenerateOptions struct {
	Author         string `json:"author"`
	AutoFitColumns bool   `json:"auto_fit_columns"`
	StyleHeader    bool   `json:"style_header"`
}

// SheetPreview is the non-mutating view of one sheet.
type SheetPreview struct {
	Name       string     `json:"name"`
	Headers    []string   `json:"headers"`
	RowCount   int        `json:"row_count"`
	SampleRows [][]string `json:"sample_rows"`
}

// WorkbookPreview summarizes a workbook without materializing it.
type WorkbookPreview struct {
	Title      string         `json:"title"`
	State      State          `json:"state"`
	SheetCount int            `json:"sheet_count"`
	Sheets     []SheetPreview `json:"sheets"`
}

// Builder tracks open workbooks keyed by (session id, workbook id) and
// converts finished ones into artifacts.
type Builder struct {
	mu        sync.RWMutex
	workbooks map[string]*workbook

	workspaces *workspace.Manager
	artifacts  *artifact.Store
}

// NewBuilder wires the builder to its workspace staging area and the
// artifact store that receives generated output.
func NewBuilder(workspaces *workspace.Manager, artifacts *artifact.Store) *Builder {
	return &Builder{
		workbooks:  make(map[string]*workbook),
		workspaces: workspaces,
		artifacts:  artifacts,
	}
}

func workbookKey(sessionID, workbookID string) string {
	return sessionID + "/" + workbookID
}

// InitWorkbook opens a new workbook for the session and returns its id.
func (b *Builder) InitWorkbook(sessionID, title string) (string, error) {
	if _, err := b.workspaces.Init(sessionID); err != nil {
		return "", err
	}
	wb := &workbook{
		sessionID: sessionID,
		id:        uuid.NewString(),
		title:     title,
		state:     StateOpen,
		byName:    make(map[string]*Sheet),
	}
	b.mu.Lock()
	b.workbooks[workbookKey(sessionID, wb.id)] = wb
	b.mu.Unlock()

	logging.Get(logging.CategoryBuilder).Info("opened workbook: session=%s id=%s title=%q", sessionID, wb.id, title)
	return wb.id, nil
}

func (b *Builder) workbook(sessionID, workbookID string) (*workbook, error) {
	b.mu.RLock()
	wb, ok := b.workbooks[workbookKey(sessionID, workbookID)]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkbookNotFound, workbookID)
	}
	return wb, nil
}

// AddSheet appends a new sheet with its header row and initial rows.
func (b *Builder) AddSheet(sessionID, workbookID, sheetName string, headers []string, rows [][]string) error {
	wb, err := b.workbook(sessionID, workbookID)
	if err != nil {
		return err
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.state == StateGenerated {
		return fmt.Errorf("%w: %s", ErrWorkbookGenerated, workbookID)
	}
	if _, exists := wb.byName[sheetName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSheet, sheetName)
	}

	sheet := &Sheet{Name: sheetName, Headers: append([]string(nil), headers...)}
	for _, row := range rows {
		sheet.Rows = append(sheet.Rows, append([]string(nil), row...))
	}
	wb.sheets = append(wb.sheets, sheet)
	wb.byName[sheetName] = sheet

	b.autosave(wb)
	logging.Get(logging.CategoryBuilder).Debug("added sheet %q (%d rows) to workbook %s", sheetName, len(rows), workbookID)
	return nil
}

// AddRows appends rows to an existing sheet.
func (b *Builder) AddRows(sessionID, workbookID, sheetName string, rows [][]string) error {
	wb, err := b.workbook(sessionID, workbookID)
	if err != nil {
		return err
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.state == StateGenerated {
		return fmt.Errorf("%w: %s", ErrWorkbookGenerated, workbookID)
	}
	sheet, ok := wb.byName[sheetName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}
	for _, row := range rows {
		sheet.Rows = append(sheet.Rows, append([]string(nil), row...))
	}

	b.autosave(wb)
	logging.Get(logging.CategoryBuilder).Debug("appended %d rows to sheet %q in workbook %s", len(rows), sheetName, workbookID)
	return nil
}

// Preview returns counts and up to sampleRows sample rows per sheet without
// mutating state. It works on generated workbooks too.
func (b *Builder) Preview(sessionID, workbookID string, sampleRows int) (*WorkbookPreview, error) {
	wb, err := b.workbook(sessionID, workbookID)
	if err != nil {
		return nil, err
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if sampleRows < 0 {
		sampleRows = 0
	}
	preview := &WorkbookPreview{
		Title:      wb.title,
		State:      wb.state,
		SheetCount: len(wb.sheets),
	}
	for _, sheet := range wb.sheets {
		n := sampleRows
		if n > len(sheet.Rows) {
			n = len(sheet.Rows)
		}
		sample := make([][]string, 0, n)
		for _, row := range sheet.Rows[:n] {
			sample = append(sample, append([]string(nil), row...))
		}
		preview.Sheets = append(preview.Sheets, SheetPreview{
			Name:       sheet.Name,
			Headers:    append([]string(nil), sheet.Headers...),
			RowCount:   len(sheet.Rows),
			SampleRows: sample,
		})
	}
	return preview, nil
}

// Generate serializes the workbook to a spreadsheet payload, registers it
// with the artifact store and freezes the workbook. A second Generate, or
// any mutation afterwards, fails with ErrWorkbookGenerated.
func (b *Builder) Generate(sessionID, workbookID string, opts GenerateOptions) (*artifact.Metadata, error) {
	wb, err := b.workbook(sessionID, workbookID)
	if err != nil {
		return nil, err
	}
	wb.mu.Lock()
	defer wb.mu.Unlock()

	if wb.state == StateGenerated {
		return nil, fmt.Errorf("%w: %s", ErrWorkbookGenerated, workbookID)
	}

	payload, err := serializeWorkbook(wb, opts)
	if err != nil {
		return nil, fmt.Errorf("generate workbook %s: %w", workbookID, err)
	}
	meta, err := b.artifacts.Create(artifact.TypeSpreadsheet, wb.title, payload)
	if err != nil {
		return nil, err
	}

	wb.state = StateGenerated
	logging.Get(logging.CategoryBuilder).Info("generated workbook %s -> artifact %s (%d bytes)", workbookID, meta.ID, len(payload))
	return meta, nil
}

// autosave stages a JSON snapshot of the workbook into the session
// workspace so partial state survives an orchestrator crash. Failures are
// logged, not surfaced; the in-memory state is authoritative.
func (b *Builder) autosave(wb *workbook) {
	snapshot := struct {
		Title  string   `json:"title"`
		State  State    `json:"state"`
		Sheets []*Sheet `json:"sheets"`
	}{wb.title, wb.state, wb.sheets}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		logging.Get(logging.CategoryBuilder).Warn("autosave marshal failed for %s: %v", wb.id, err)
		return
	}
	rel := fmt.Sprintf("output/workbook-%s.json", wb.id)
	if err := b.workspaces.WriteFile(wb.sessionID, rel, data); err != nil {
		logging.Get(logging.CategoryBuilder).Warn("autosave write failed for %s: %v", wb.id, err)
	}
}

// serializeWorkbook renders the sheets into an xlsx payload.
func serializeWorkbook(wb *workbook, opts GenerateOptions) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if opts.Author != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Creator: opts.Author}); err != nil {
			return nil, fmt.Errorf("set author: %w", err)
		}
	}

	headerStyle := 0
	if opts.StyleHeader {
		var err error
		headerStyle, err = f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
		})
		if err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
	}

	for i, sheet := range wb.sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.Name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(sheet.Name); err != nil {
				return nil, fmt.Errorf("new sheet %q: %w", sheet.Name, err)
			}
		}

		if err := writeRow(f, sheet.Name, 1, sheet.Headers); err != nil {
			return nil, err
		}
		for r, row := range sheet.Rows {
			if err := writeRow(f, sheet.Name, r+2, row); err != nil {
				return nil, err
			}
		}

		if opts.StyleHeader && len(sheet.Headers) > 0 {
			lastCol, err := excelize.ColumnNumberToName(len(sheet.Headers))
			if err != nil {
				return nil, fmt.Errorf("column name: %w", err)
			}
			if err := f.SetCellStyle(sheet.Name, "A1", lastCol+"1", headerStyle); err != nil {
				return nil, fmt.Errorf("apply header style: %w", err)
			}
		}
		if opts.AutoFitColumns {
			if err := autoFitColumns(f, sheet); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheetName string, rowNum int, cells []string) error {
	if len(cells) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("row coordinates: %w", err)
	}
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// autoFitColumns sizes each column to its longest cell, clamped so one huge
// value cannot blow up the layout.
func autoFitColumns(f *excelize.File, sheet *Sheet) error {
	const minWidth, maxWidth, padding = 8.0, 60.0, 2.0

	widths := make([]int, len(sheet.Headers))
	for i, h := range sheet.Headers {
		widths[i] = len(h)
	}
	for _, row := range sheet.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		width := float64(w) + padding
		if width < minWidth {
			width = minWidth
		}
		if width > maxWidth {
			width = maxWidth
		}
		if err := f.SetColWidth(sheet.Name, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}
