// Package pipeline runs the daily cycle: assemble a record, compose the
// message, deliver it and log the attempt.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Trip2025/girobot/internal/compose"
	"github.com/Trip2025/girobot/internal/database"
	"github.com/Trip2025/girobot/internal/notify"
)

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerCLI       Trigger = "cli"
)

// DeliveryLog records delivery attempts.
type DeliveryLog interface {
	InsertDelivery(d database.Delivery) (int64, error)
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full cycle.
type Result struct {
	Assembly  Assembly
	Message   string
	Channel   string
	Delivered bool
	Steps     []StepResult
	// Err is the delivery failure, if any.
	Err error
}

// Cycle wires the assembler to formatting and delivery. Runs are
// serialised so the scheduler and a manual trigger never overlap.
type Cycle struct {
	mu        sync.Mutex
	assembler *Assembler
	composer  *compose.Composer
	notifier  notify.Notifier
	log       DeliveryLog
}

// New creates a cycle. log may be nil to skip recording deliveries.
func New(assembler *Assembler, composer *compose.Composer, notifier notify.Notifier, log DeliveryLog) *Cycle {
	return &Cycle{
		assembler: assembler,
		composer:  composer,
		notifier:  notifier,
		log:       log,
	}
}

// Run executes one cycle. It makes exactly one delivery attempt.
func (c *Cycle) Run(ctx context.Context, trigger Trigger) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.prepare(ctx)
	r.Channel = c.notifier.Name()

	slog.InfoContext(ctx, "delivering message", "channel", r.Channel, "trigger", trigger, "stage", r.Assembly.Stage)
	step := StepResult{Name: "Deliver", Summary: fmt.Sprintf("Sent via %s", r.Channel)}
	if err := c.notifier.Send(ctx, r.Message); err != nil {
		slog.ErrorContext(ctx, "delivery failed", "channel", r.Channel, "err", err)
		step = StepResult{Name: "Deliver", Err: err}
		r.Err = err
	} else {
		r.Delivered = true
	}
	r.Steps = append(r.Steps, step)

	r.Steps = append(r.Steps, c.record(ctx, r, trigger))
	return r
}

// Preview assembles and composes without delivering or recording.
func (c *Cycle) Preview(ctx context.Context) *Result {
	return c.prepare(ctx)
}

// Assembler exposes the cycle's assembler for date-specific previews.
func (c *Cycle) Assembler() *Assembler { return c.assembler }

// Composer exposes the cycle's composer.
func (c *Cycle) Composer() *compose.Composer { return c.composer }

func (c *Cycle) prepare(ctx context.Context) *Result {
	asm := c.assembler.Assemble(ctx)
	r := &Result{Assembly: asm}

	summary := fmt.Sprintf("Stage %d from live results", asm.Stage)
	if asm.Source == SourceFallback {
		summary = fmt.Sprintf("Stage %d from fallback data (%v)", asm.Stage, asm.Cause)
	}
	r.Steps = append(r.Steps, StepResult{Name: "Assemble", Summary: summary})

	r.Message = c.composer.Compose(asm.Record)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Compose",
		Summary: fmt.Sprintf("Message of %d characters", len([]rune(r.Message))),
	})
	return r
}

func (c *Cycle) record(ctx context.Context, r *Result, trigger Trigger) StepResult {
	if c.log == nil {
		return StepResult{Name: "Record", Summary: "Delivery log disabled"}
	}

	d := database.Delivery{
		RunDate:   r.Assembly.Date.Format("2006-01-02"),
		Stage:     r.Assembly.Stage,
		Source:    string(r.Assembly.Source),
		Channel:   r.Channel,
		Delivered: r.Delivered,
		Trigger:   string(trigger),
	}
	if r.Assembly.Cause != nil {
		reason := r.Assembly.Cause.Error()
		d.FallbackReason = &reason
	}
	if r.Err != nil {
		msg := r.Err.Error()
		d.Error = &msg
	}

	id, err := c.log.InsertDelivery(d)
	if err != nil {
		slog.WarnContext(ctx, "could not record delivery", "err", err)
		return StepResult{Name: "Record", Err: err}
	}
	return StepResult{Name: "Record", Summary: fmt.Sprintf("Delivery #%d logged", id)}
}
