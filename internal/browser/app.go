package browser

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"receiptfix/internal/config"
	"receiptfix/internal/target"
)

// App drives the line-of-business application. It is a thin mapping from the
// driver interface onto selectors; all sequencing and failure policy lives
// in the orchestration core.
type App struct {
	s   *Session
	cfg config.TargetConfig
	sel config.SelectorsConfig
	log *zap.SugaredLogger
}

var _ target.AppDriver = (*App)(nil)

// NewApp wires the application driver over a started session.
func NewApp(s *Session, cfg config.TargetConfig, log *zap.SugaredLogger) *App {
	return &App{s: s, cfg: cfg, sel: cfg.Selectors, log: log}
}

// Start opens the application's base URL.
func (a *App) Start(ctx context.Context) error {
	if err := a.s.Start(ctx); err != nil {
		return err
	}
	return a.s.navigate(ctx, a.cfg.BaseURL)
}

// Close releases the session.
func (a *App) Close() error { return a.s.Close() }

func (a *App) OpenByKey(ctx context.Context, key int64) error {
	a.log.Debugw("opening unit", "key", key)
	if err := a.s.input(ctx, a.sel.SearchInput, strconv.FormatInt(key, 10)); err != nil {
		return err
	}
	return a.s.click(ctx, a.sel.SearchGo)
}

func (a *App) ReadField(ctx context.Context, field string) (string, error) {
	return a.s.text(ctx, fmt.Sprintf(a.sel.FieldText, field))
}

func (a *App) SelectFromFilteredList(ctx context.Context, field, value string) error {
	if err := a.s.input(ctx, a.sel.ListFilter, value); err != nil {
		return err
	}
	return a.s.click(ctx, fmt.Sprintf(a.sel.ListOption, value))
}

func (a *App) ToggleOption(ctx context.Context, option string) error {
	return a.s.click(ctx, fmt.Sprintf(a.sel.Toggle, option))
}

func (a *App) FillField(ctx context.Context, field, value string) error {
	return a.s.input(ctx, fmt.Sprintf(a.sel.FieldInput, field), value)
}

func (a *App) Submit(ctx context.Context) error {
	return a.s.click(ctx, a.sel.SubmitButton)
}

func (a *App) ReadStatusField(ctx context.Context, field string) (string, error) {
	return a.s.text(ctx, fmt.Sprintf(a.sel.StatusField, field))
}

func (a *App) DetectNotification(ctx context.Context) (string, bool, error) {
	ok, el, err := a.s.has(ctx, a.sel.Notification)
	if err != nil || !ok {
		return "", false, err
	}
	text, err := el.Text()
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (a *App) DismissNotification(ctx context.Context) error {
	return a.s.click(ctx, a.sel.NotifyClose)
}

func (a *App) CancelAndConfirm(ctx context.Context) error {
	if err := a.s.click(ctx, a.sel.CancelButton); err != nil {
		return err
	}
	return a.s.click(ctx, a.sel.ConfirmOK)
}

func (a *App) FetchPendingList(ctx context.Context) ([]target.PendingItem, error) {
	rows, err := a.s.page.Context(ctx).Elements(a.sel.PendingRows)
	if err != nil {
		return nil, fmt.Errorf("pending rows: %w", err)
	}
	items := make([]target.PendingItem, 0, len(rows))
	for _, row := range rows {
		id, err := row.Attribute("data-id")
		if err != nil || id == nil {
			continue
		}
		title, _ := row.Text()
		items = append(items, target.PendingItem{ID: *id, Title: title})
	}
	return items, nil
}

func (a *App) OpenListItem(ctx context.Context, item target.PendingItem) error {
	return a.s.click(ctx, fmt.Sprintf(a.sel.RowOpen, item.ID))
}

func (a *App) ItemClosed(ctx context.Context) (bool, error) {
	ok, _, err := a.s.has(ctx, a.sel.ItemRoot)
	return !ok, err
}

func (a *App) RemoveAllReferences(ctx context.Context) error {
	return a.s.click(ctx, a.sel.RemoveAll)
}

func (a *App) SearchAndAddReference(ctx context.Context, label string) error {
	if err := a.s.input(ctx, a.sel.RefSearch, label); err != nil {
		return err
	}
	return a.s.click(ctx, fmt.Sprintf(a.sel.RefOption, label))
}
