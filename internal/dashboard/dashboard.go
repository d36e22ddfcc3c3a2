package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/pacefire/internal/metrics"
)

const historySize = 120

// RunInfo holds the run parameters shown in the header.
type RunInfo struct {
	RunID     string
	Requests  int
	Period    time.Duration
	Retention time.Duration
	Timeout   time.Duration
}

// Scheduler is the live scheduler state shown in the header.
type Scheduler interface {
	Ticks() int64
	InFlight() int64
	Interval() time.Duration
}

// Dashboard renders a live per-endpoint view in the terminal.
type Dashboard struct {
	board        *metrics.Board
	scheduler    Scheduler
	info         RunInfo
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid          *ui.Grid
	summaryPara   *widgets.Paragraph
	endpointTable *widgets.Table
	throughput    *widgets.SparklineGroup
	errorList     *widgets.List
	history       []float64
	startTime     time.Time
}

// New initializes the terminal and builds the widgets. shutdownFunc is
// called when the user presses q or Ctrl+C.
func New(board *metrics.Board, scheduler Scheduler, info RunInfo, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		board:        board,
		scheduler:    scheduler,
		info:         info,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		history:      make([]float64, 0, historySize),
		startTime:    time.Now(),
	}

	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "pacefire"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.endpointTable = widgets.NewTable()
	d.endpointTable.Title = "Endpoints"
	d.endpointTable.Rows = formatEndpointRows(nil, d.windowLabel())
	d.endpointTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.endpointTable.RowSeparator = false
	d.endpointTable.FillRow = true
	d.endpointTable.RowStyles[0] = ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)
	d.endpointTable.BorderStyle.Fg = ui.ColorCyan

	spark := widgets.NewSparkline()
	spark.LineColor = ui.ColorGreen
	spark.Data = []float64{0}
	d.throughput = widgets.NewSparklineGroup(spark)
	d.throughput.Title = "Completions in window (all endpoints)"
	d.throughput.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Last Errors"
	d.errorList.Rows = []string{"[No failures](fg:green)"}
	d.errorList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.15, ui.NewCol(1.0, d.summaryPara)),
		ui.NewRow(0.45, ui.NewCol(1.0, d.endpointTable)),
		ui.NewRow(0.40,
			ui.NewCol(0.6, d.throughput),
			ui.NewCol(0.4, d.errorList),
		),
	)
}

// Start begins the update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop ends the update loop and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	rows := d.board.Snapshot()

	d.mu.Lock()
	defer d.mu.Unlock()

	var ticks, inFlight int64
	var interval time.Duration
	if d.scheduler != nil {
		ticks = d.scheduler.Ticks()
		inFlight = d.scheduler.InFlight()
		interval = d.scheduler.Interval()
	}
	d.summaryPara.Text = fmt.Sprintf("%s\nElapsed: %s | Ticks: %d | In flight: %d",
		formatRunParams(d.info, interval),
		time.Since(d.startTime).Round(time.Second),
		ticks,
		inFlight,
	)

	d.endpointTable.Rows = formatEndpointRows(rows, d.windowLabel())

	total := 0
	for _, row := range rows {
		total += row.WindowCount
	}
	d.history = appendHistory(d.history, float64(total), historySize)
	d.throughput.Sparklines[0].Data = d.history
	d.throughput.Sparklines[0].Title = fmt.Sprintf("%d requests/%s", total, d.windowLabel())

	d.errorList.Rows = formatErrorRows(rows)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func (d *Dashboard) windowLabel() string {
	if d.info.Retention == time.Minute {
		return "m"
	}
	return d.info.Retention.String()
}

func formatRunParams(info RunInfo, interval time.Duration) string {
	parts := []string{
		fmt.Sprintf("Run: %s", info.RunID),
		fmt.Sprintf("Pacing: %d per %s per endpoint", info.Requests, info.Period),
	}
	if interval > 0 {
		parts = append(parts, fmt.Sprintf("Interval: %s", interval))
	}
	if info.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", info.Timeout))
	}
	return strings.Join(parts, " | ")
}

func formatEndpointRows(rows []metrics.EndpointSnapshot, windowLabel string) [][]string {
	table := [][]string{{"Endpoint", "Requests/" + windowLabel, "Status", "Latency (ms)"}}
	if len(rows) == 0 {
		return append(table, []string{"Awaiting data", "", "", ""})
	}
	for _, row := range rows {
		status, latency := "-", "-"
		if row.StatusCode != 0 {
			status = strconv.Itoa(row.StatusCode)
			latency = strconv.FormatFloat(row.LatencyMs, 'f', 2, 64)
		}
		table = append(table, []string{row.Endpoint, strconv.Itoa(row.WindowCount), status, latency})
	}
	return table
}

func formatErrorRows(rows []metrics.EndpointSnapshot) []string {
	var formatted []string
	for _, row := range rows {
		if row.LastError == "" {
			continue
		}
		at := ""
		if !row.LastErrorAt.IsZero() {
			at = " at " + row.LastErrorAt.Format("15:04:05")
		}
		formatted = append(formatted, fmt.Sprintf("[%s](fg:cyan) [%s](fg:red)%s", row.Endpoint, row.LastError, at))
	}
	if len(formatted) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	return formatted
}

func appendHistory(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
