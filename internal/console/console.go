// Package console runs an OpsCopilot session in a terminal.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/preferences"
)

// AssistantLabel prefixes assistant messages.
const AssistantLabel = "AI Copilot"

// commandFor is the console form of each action button.
var commandFor = map[models.ActionID]string{
	models.ActionSyncReport:          "/sync",
	models.ActionRequestChanges:      "/changes",
	models.ActionSubmitChanges:       "/changes <text>",
	models.ActionCancelChanges:       "/cancel-changes",
	models.ActionAssignDispatch:      "/dispatch",
	models.ActionApproveOrder:        "/approve <order>",
	models.ActionRequestOrderChanges: "/reject <order>",
}

const helpText = `Commands:
  <text>            talk to the assistant
  /sync             sync discrepancies and generate the report
  /changes [text]   request purchase-order changes, optionally with a description
  /cancel-changes   go back to the discrepancy list
  /dispatch         assign the logistics provider and dispatch
  /approve <order>  approve a pending order
  /reject <order>   request changes to a pending order
  /cancel           stop the current task
  /theme            toggle dark/light appearance
  /state            show the session state
  /help             show this help
  /quit             leave`

// Console reads commands from in and renders the session to out.
type Console struct {
	ctrl  *flow.Controller
	theme *preferences.Theme
	in    io.Reader
	out   io.Writer
	mu    sync.Mutex

	assistant *color.Color
	user      *color.Color
	progress  *color.Color
	action    *color.Color
	errColor  *color.Color
	dim       *color.Color
	severity  map[models.Severity]*color.Color
}

// New creates a console for one session.
func New(ctrl *flow.Controller, theme *preferences.Theme, in io.Reader, out io.Writer) *Console {
	return &Console{
		ctrl:      ctrl,
		theme:     theme,
		in:        in,
		out:       out,
		assistant: color.New(color.FgCyan, color.Bold),
		user:      color.New(color.FgGreen, color.Bold),
		progress:  color.New(color.FgYellow),
		action:    color.New(color.FgMagenta),
		errColor:  color.New(color.FgRed),
		dim:       color.New(color.Faint),
		severity: map[models.Severity]*color.Color{
			models.SeverityWarning: color.New(color.FgYellow),
			models.SeverityInfo:    color.New(color.FgBlue),
			models.SeveritySuccess: color.New(color.FgGreen),
		},
	}
}

// Run prints the transcript so far, then processes input lines until /quit,
// end of input or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	events, unsubscribe := c.ctrl.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			c.renderEvent(ev)
		}
	}()
	defer func() {
		unsubscribe()
		<-done
	}()

	for _, m := range c.ctrl.Messages() {
		c.renderMessage(m)
	}
	c.printf(c.dim, "Type /help for commands.\n")

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		quit, err := c.Execute(ctx, scanner.Text())
		if err != nil {
			c.printf(c.errColor, "! %s\n", describe(err))
		}
		if quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("Console.Run: failed to read input", "error", err)
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// Execute runs one input line. It reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		_, err := c.ctrl.Submit(ctx, line)
		return false, err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		c.printf(nil, "%s\n", helpText)
		return false, nil
	case "/sync":
		return false, c.act(ctx, models.ActionSyncReport, "", "")
	case "/changes":
		return false, c.requestChanges(ctx, arg)
	case "/cancel-changes":
		return false, c.act(ctx, models.ActionCancelChanges, "", "")
	case "/dispatch":
		return false, c.act(ctx, models.ActionAssignDispatch, "", "")
	case "/approve":
		return false, c.review(ctx, models.ActionApproveOrder, arg)
	case "/reject":
		return false, c.review(ctx, models.ActionRequestOrderChanges, arg)
	case "/cancel":
		return false, c.ctrl.CancelFlow(ctx)
	case "/theme":
		next, err := c.theme.Toggle(ctx)
		if err != nil {
			return false, err
		}
		c.printf(c.dim, "Appearance: %s\n", next)
		return false, nil
	case "/state":
		c.renderState()
		return false, nil
	}
	return false, fmt.Errorf("unknown command %s (try /help)", cmd)
}

func (c *Console) act(ctx context.Context, id models.ActionID, orderID, text string) error {
	return c.ctrl.Act(ctx, models.ActionRequest{Action: id, OrderID: orderID, Text: text})
}

// review records a decision for one order and reports what is left.
func (c *Console) review(ctx context.Context, id models.ActionID, orderID string) error {
	orderID = strings.ToUpper(orderID)
	if err := c.act(ctx, id, orderID, ""); err != nil {
		return err
	}
	if left := c.ctrl.Snapshot().Orders; len(left) > 0 {
		c.printf(c.dim, "%s %s. %d left to review.\n", orderID, reviewVerb[id], len(left))
	}
	return nil
}

var reviewVerb = map[models.ActionID]string{
	models.ActionApproveOrder:        "approved",
	models.ActionRequestOrderChanges: "sent back for changes",
}

// requestChanges opens the change form if needed and submits text when the
// form is open or text was given.
func (c *Console) requestChanges(ctx context.Context, text string) error {
	if c.ctrl.Snapshot().FlowState == models.StateFound {
		if err := c.act(ctx, models.ActionRequestChanges, "", ""); err != nil {
			return err
		}
		if text == "" {
			c.printf(c.dim, "Describe required changes with /changes <text>, or /cancel-changes.\n")
			return nil
		}
	}
	return c.act(ctx, models.ActionSubmitChanges, "", text)
}

func (c *Console) renderEvent(ev models.Event) {
	switch ev.Type {
	case models.EventMessage:
		if ev.Message != nil {
			c.renderMessage(*ev.Message)
		}
	case models.EventComposing:
		if ev.Composing {
			c.printf(c.dim, "%s is typing...\n", AssistantLabel)
		}
	case models.EventClosed:
		c.printf(c.dim, "Session closed.\n")
	}
}

func (c *Console) renderMessage(m models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.Role == models.RoleUser {
		c.user.Fprint(c.out, "You: ")
		fmt.Fprintln(c.out, m.Text())
		return
	}
	c.assistant.Fprintf(c.out, "%s: ", AssistantLabel)
	switch content := m.Content.(type) {
	case models.ProgressContent:
		c.progress.Fprintln(c.out, content.Text)
	case models.FindingsContent:
		fmt.Fprintln(c.out, content.Headline)
		for _, f := range content.Findings {
			c.colorFor(f.Severity).Fprintf(c.out, "  - Order #%s: %s\n", f.OrderID, f.Label)
		}
		if content.Question != "" {
			fmt.Fprintln(c.out, content.Question)
		}
	case models.ArtifactContent:
		fmt.Fprintln(c.out, content.Headline)
		for _, step := range content.Steps {
			c.severity[models.SeveritySuccess].Fprintf(c.out, "  ✓ %s\n", step)
		}
		if a := content.Artifact; a != nil {
			details := strings.Join(nonEmpty(a.SizeLabel, a.Note), " • ")
			fmt.Fprintf(c.out, "  [%s] %s\n", a.Name, details)
		}
	case models.OrdersContent:
		fmt.Fprintf(c.out, "Pending Review (%d)\n", len(models.ActiveOrders(content.Orders)))
		for _, o := range models.ActiveOrders(content.Orders) {
			status := c.dim
			if o.Status == models.OrderStatusUrgent {
				status = c.errColor
			}
			fmt.Fprintf(c.out, "  %s  %-10s %8s  ", o.ID, o.Client, o.Amount)
			status.Fprintln(c.out, o.Status)
			c.dim.Fprintf(c.out, "      %s\n", o.Details)
		}
	default:
		fmt.Fprintln(c.out, m.Text())
	}
	for _, a := range m.Actions {
		c.action.Fprintf(c.out, "  [%s] %s\n", commandFor[a.ID], a.Label)
	}
}

func (c *Console) renderState() {
	snap := c.ctrl.Snapshot()
	timers := c.ctrl.PendingTimers()

	c.mu.Lock()
	defer c.mu.Unlock()
	flowName := "none"
	if snap.ActiveFlow != "" {
		flowName = string(snap.ActiveFlow)
	}
	fmt.Fprintf(c.out, "Session %s\n  flow: %s (%s)\n  composing: %v\n  messages: %d\n  appearance: %s\n",
		snap.SessionID, flowName, snap.FlowState, snap.Composing, len(snap.Messages), c.theme.Appearance())
	for _, a := range snap.Actions {
		c.action.Fprintf(c.out, "  [%s] %s\n", commandFor[a.ID], a.Label)
	}
	for _, o := range snap.Orders {
		fmt.Fprintf(c.out, "  pending: %s %s\n", o.ID, o.Client)
	}
	for _, t := range timers {
		c.dim.Fprintf(c.out, "  next step in %s\n", t.Remaining)
	}
	recent := c.ctrl.Activity()
	if len(recent) > 3 {
		recent = recent[:3]
	}
	for _, e := range recent {
		c.dim.Fprintf(c.out, "  %s [%s] %s\n", e.Time.Format("15:04"), e.Level, e.Text)
	}
}

func (c *Console) colorFor(s models.Severity) *color.Color {
	if col, ok := c.severity[s]; ok {
		return col
	}
	return c.dim
}

// printf writes a line under the output lock; a nil color prints plain text.
func (c *Console) printf(col *color.Color, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if col == nil {
		fmt.Fprintf(c.out, format, args...)
		return
	}
	col.Fprintf(c.out, format, args...)
}

// describe renders controller errors for the terminal.
func describe(err error) string {
	switch {
	case errors.Is(err, flow.ErrBusy):
		return "Still working on the last request, please wait."
	case errors.Is(err, flow.ErrNoActiveFlow):
		return "Nothing in progress."
	case errors.Is(err, flow.ErrActionUnavailable):
		return "That action isn't available right now."
	case errors.Is(err, flow.ErrUnknownOrder):
		return "No such order."
	case errors.Is(err, models.ErrMissingOrderID):
		return "Which order? Add the order ID, e.g. /approve ORD-5001."
	}
	return err.Error()
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
