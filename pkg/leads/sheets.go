package leads

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetLinkFormat = "https://docs.google.com/spreadsheets/d/%s/edit#gid=0&range=A%d"

type SheetsOptions struct {
	SpreadsheetID   string
	Tab             string
	CredentialsFile string
	// ClientOptions are appended after the credentials option.
	ClientOptions []option.ClientOption
}

// SheetsStore keeps leads in a Google Sheets tab whose first row is the
// column header. Row numbers are sheet rows (the first lead is row 2).
type SheetsStore struct {
	svc   *sheets.Service
	id    string
	tab   string
	mu    sync.Mutex
}

func NewSheetsStore(ctx context.Context, opts SheetsOptions) (*SheetsStore, error) {
	id := strings.TrimSpace(opts.SpreadsheetID)
	if id == "" {
		return nil, fmt.Errorf("sheets store: spreadsheet id is required")
	}
	tab := strings.TrimSpace(opts.Tab)
	if tab == "" {
		tab = "Leads"
	}

	clientOpts := make([]option.ClientOption, 0, len(opts.ClientOptions)+2)
	if f := strings.TrimSpace(opts.CredentialsFile); f != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(f))
	}
	clientOpts = append(clientOpts, option.WithScopes(sheets.SpreadsheetsScope))
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	store := &SheetsStore{svc: svc, id: id, tab: tab}
	if err := store.ensureTab(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SheetsStore) Close() error { return nil }

func (s *SheetsStore) rng(a1 string) string {
	return fmt.Sprintf("'%s'!%s", s.tab, a1)
}

func (s *SheetsStore) ensureTab(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.id).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet %s: %w", s.id, err)
	}
	found := false
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == s.tab {
			found = true
			break
		}
	}
	if !found {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: s.tab},
				},
			}},
		}
		if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", s.tab, err)
		}
	}

	head, err := s.svc.Spreadsheets.Values.Get(s.id, s.rng("A1:S1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(head.Values) > 0 && len(head.Values[0]) > 0 {
		return nil
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	_, err = s.svc.Spreadsheets.Values.Update(s.id, s.rng("A1:S1"), &sheets.ValueRange{
		Values: [][]interface{}{header},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (s *SheetsStore) rows(ctx context.Context) ([][]string, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(s.id, s.rng("A2:S")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read leads: %w", err)
	}
	out := make([][]string, len(vr.Values))
	for i, raw := range vr.Values {
		row := make([]string, len(raw))
		for j, v := range raw {
			row[j] = strings.TrimSpace(fmt.Sprint(v))
		}
		out[i] = row
	}
	return out, nil
}

func phoneOf(row []string) string {
	idx := columnIndex(ColPhone)
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// find returns the 0-based data index of phone.
func (s *SheetsStore) find(ctx context.Context, phone string) (int, []string, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return -1, nil, err
	}
	for i, row := range rows {
		if SamePhone(phoneOf(row), phone) {
			return i, row, nil
		}
	}
	return -1, nil, nil
}

func (s *SheetsStore) Get(ctx context.Context, phone string) (*Lead, error) {
	idx, row, err := s.find(ctx, phone)
	if err != nil || idx < 0 {
		return nil, err
	}
	l := FromRow(row)
	return &l, nil
}

func (s *SheetsStore) Create(ctx context.Context, lead Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := make([]interface{}, len(Columns))
	for i, c := range Columns {
		if c == ColMessageCount {
			row[i] = lead.MessageCount
			continue
		}
		row[i] = lead.Get(c)
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.id, s.rng("A:S"), &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append lead %s: %w", lead.Phone, err)
	}
	return nil
}

// Update writes each changed cell separately so concurrent writers touching
// different columns of the same row do not clobber each other.
func (s *SheetsStore) Update(ctx context.Context, phone string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, _, err := s.find(ctx, phone)
	if err != nil {
		return err
	}
	if idx < 0 {
		return fmt.Errorf("update lead %s: not found", phone)
	}
	sheetRow := idx + 2

	data := make([]*sheets.ValueRange, 0, len(fields))
	for _, c := range Columns {
		v, ok := fields[c]
		if !ok {
			continue
		}
		var cell interface{} = v
		if c == ColMessageCount {
			var probe Lead
			probe.Set(c, v)
			cell = probe.MessageCount
		}
		data = append(data, &sheets.ValueRange{
			Range:  s.rng(fmt.Sprintf("%s%d", columnLetter(columnIndex(c)), sheetRow)),
			Values: [][]interface{}{{cell}},
		})
	}
	_, err = s.svc.Spreadsheets.Values.BatchUpdate(s.id, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update lead %s: %w", phone, err)
	}
	return nil
}

func (s *SheetsStore) RowIndex(ctx context.Context, phone string) (int, bool, error) {
	idx, _, err := s.find(ctx, phone)
	if err != nil || idx < 0 {
		return 0, false, err
	}
	return idx + 2, true, nil
}

func (s *SheetsStore) List(ctx context.Context) ([]Lead, error) {
	rows, err := s.rows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Lead, 0, len(rows))
	for _, row := range rows {
		if phoneOf(row) == "" {
			continue
		}
		out = append(out, FromRow(row))
	}
	return out, nil
}

func (s *SheetsStore) RowLink(row int) string {
	if row <= 0 {
		return ""
	}
	return fmt.Sprintf(sheetLinkFormat, s.id, row)
}

func columnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}
