// Package tui is the interactive terminal front-end: a service picker, a
// region picker, the rate-code field and the results panel, all driven by
// a lookup.Controller.
package tui

import (
	"context"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/rshade/aws-ratecode-checker/internal/lookup"
	"github.com/rshade/aws-ratecode-checker/internal/picker"
)

// App holds the widgets and the pickers. Everything except ctrl is only
// touched from the tview event goroutine.
type App struct {
	app    *tview.Application
	ctrl   *lookup.Controller
	logger zerolog.Logger

	services *picker.ServicePicker
	regions  *picker.RegionPicker

	serviceField *tview.InputField
	regionField  *tview.InputField
	codeField    *tview.InputField
	status       *tview.TextView
	results      *tview.TextView

	serviceOpts []picker.Option
	regionOpts  []picker.Option
}

// New builds the layout around ctrl. The controller must not have been
// started yet.
func New(ctrl *lookup.Controller, logger zerolog.Logger) *App {
	a := &App{
		app:    tview.NewApplication(),
		ctrl:   ctrl,
		logger: logger,
	}
	a.services = picker.NewServicePicker(a.onService)
	a.regions = picker.NewRegionPicker(a.onRegion)

	a.serviceField = tview.NewInputField().
		SetLabel("Service   ").
		SetPlaceholder("type to search, e.g. EC2").
		SetFieldWidth(0)
	a.serviceField.SetAutocompleteFunc(func(text string) []string {
		a.services.SetQuery(text)
		a.serviceOpts = a.services.Options()
		return entries(a.serviceOpts)
	})
	a.serviceField.SetAutocompletedFunc(func(_ string, index, source int) bool {
		if source == tview.AutocompletedNavigate || index < 0 || index >= len(a.serviceOpts) {
			return false
		}
		a.pickService(a.serviceOpts[index])
		return true
	})
	a.serviceField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		if opt, ok := match(a.services.Options(), a.serviceField.GetText()); ok {
			a.pickService(opt)
		}
	})

	a.regionField = tview.NewInputField().
		SetLabel("Region    ").
		SetPlaceholder("type a region code or name").
		SetFieldWidth(0)
	a.regionField.SetDisabled(true)
	a.regionField.SetAutocompleteFunc(func(text string) []string {
		a.regions.SetQuery(text)
		a.regionOpts = a.regions.Options()
		return entries(a.regionOpts)
	})
	a.regionField.SetAutocompletedFunc(func(_ string, index, source int) bool {
		if source == tview.AutocompletedNavigate || index < 0 || index >= len(a.regionOpts) {
			return false
		}
		a.pickRegion(a.regionOpts[index])
		return true
	})
	a.regionField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		if opt, ok := match(a.regions.Options(), a.regionField.GetText()); ok {
			a.pickRegion(opt)
		}
	})

	a.codeField = tview.NewInputField().
		SetLabel("Rate code ").
		SetPlaceholder("SKU.OfferTermCode.RateCode").
		SetFieldWidth(0).
		SetChangedFunc(ctrl.SetInput)
	a.codeField.SetDisabled(true)
	a.codeField.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			_, _ = a.ctrl.Confirm()
		}
	})

	a.status = tview.NewTextView().SetDynamicColors(true)
	a.results = tview.NewTextView().SetWrap(true).SetScrollable(true)
	a.results.SetBorder(true).SetTitle(" Results ")

	form := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.serviceField, 1, 0, true).
		AddItem(a.regionField, 1, 0, false).
		AddItem(a.codeField, 1, 0, false).
		AddItem(a.status, 1, 0, false)
	form.SetBorder(true).SetTitle(" AWS rate code checker ")

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 6, 0, true).
		AddItem(a.results, 0, 1, false)

	focusable := []tview.Primitive{a.serviceField, a.regionField, a.codeField, a.results}
	a.app.SetRoot(root, true).SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyTab, tcell.KeyBacktab:
			a.cycleFocus(focusable, ev.Key() == tcell.KeyBacktab)
			return nil
		case tcell.KeyEscape:
			a.app.Stop()
			return nil
		}
		return ev
	})

	ctrl.Subscribe(func(lookup.State) {
		// QueueUpdateDraw blocks when called from the event goroutine.
		go a.app.QueueUpdateDraw(a.refresh)
	})
	a.refresh()
	return a
}

// Run starts the controller and blocks until the user quits or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()

	a.ctrl.Start(ctx)
	err := a.app.Run()
	a.ctrl.Close()
	return err
}

func (a *App) onService(key string) {
	if err := a.ctrl.SelectService(key); err != nil {
		a.logger.Warn().Err(err).Str("service", key).Msg("service selection rejected")
	}
}

func (a *App) onRegion(code string) {
	if err := a.ctrl.SelectRegion(code); err != nil {
		a.logger.Warn().Err(err).Str("region", code).Msg("region selection rejected")
	}
}

func (a *App) pickService(opt picker.Option) {
	a.serviceField.SetText(opt.Label)
	a.services.Close()
	if a.services.Select(opt.Value) {
		a.app.SetFocus(a.regionField)
	}
}

func (a *App) pickRegion(opt picker.Option) {
	a.regionField.SetText(opt.Label)
	a.regions.Close()
	if a.regions.Select(opt.Value) {
		a.app.SetFocus(a.codeField)
	}
}

func (a *App) cycleFocus(items []tview.Primitive, backwards bool) {
	current := a.app.GetFocus()
	idx := 0
	for i, p := range items {
		if p == current {
			idx = i
			break
		}
	}
	step := 1
	if backwards {
		step = len(items) - 1
	}
	for range items {
		idx = (idx + step) % len(items)
		if !a.focusable(items[idx]) {
			continue
		}
		a.app.SetFocus(items[idx])
		return
	}
}

func (a *App) focusable(p tview.Primitive) bool {
	switch p {
	case a.regionField:
		return !a.regions.Disabled()
	case a.codeField:
		return !a.ctrl.Snapshot().InputDisabled()
	default:
		return true
	}
}

// refresh copies the latest controller snapshot into the widgets.
func (a *App) refresh() {
	s := a.ctrl.Snapshot()

	a.services.SetCatalog(s.Offers)
	a.services.SetSelected(s.Service)
	a.regions.SetDisabled(s.RegionPickerDisabled())
	a.regions.SetRegions(s.Regions)
	a.regions.SetSelected(s.Region)

	a.regionField.SetDisabled(s.RegionPickerDisabled())
	if s.Region == "" && a.app.GetFocus() != a.regionField && a.regionField.GetText() != "" {
		a.regionField.SetText("")
	}
	if s.Service != "" && a.app.GetFocus() != a.serviceField {
		a.serviceField.SetText(labelOf(picker.ServiceOptions(s.Offers, ""), s.Service))
	}

	a.codeField.SetDisabled(s.InputDisabled())
	// The controller upper-cases input; show the normalized text.
	if a.codeField.GetText() != s.Input {
		a.codeField.SetText(s.Input)
	}

	color := "white"
	if s.FetchErr != nil || s.Stage() == lookup.StageLookupError || s.InputErr != nil {
		color = "red"
	}
	a.status.SetText("[" + color + "]" + tview.Escape(statusLine(s)))
	a.results.SetText(resultsText(s))
}
