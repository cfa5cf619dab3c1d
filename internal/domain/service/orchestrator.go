package service

import (
	"context"
	"sync"
	"time"

	"github.com/planwright/planwright/internal/domain/entity"
	"github.com/planwright/planwright/internal/domain/repository"
	"github.com/planwright/planwright/pkg/safego"
	"go.uber.org/zap"
)

// Orchestrator is the single recurring background loop that drains
// generation work and drives approved plans to execution without
// blocking request handlers. Each tick runs three sweeps sequentially;
// a fault in one sweep is logged and does not abort the other two.
type Orchestrator struct {
	agents    repository.AgentRepository
	plans     repository.PlanRepository
	lifecycle *Lifecycle
	queue     *GenerationQueue
	notifier  Notifier
	logger    *zap.Logger

	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewOrchestrator creates the orchestrator. interval <= 0 selects the
// 5-second default.
func NewOrchestrator(
	agents repository.AgentRepository,
	plans repository.PlanRepository,
	lifecycle *Lifecycle,
	queue *GenerationQueue,
	notifier Notifier,
	interval time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		agents:    agents,
		plans:     plans,
		lifecycle: lifecycle,
		queue:     queue,
		notifier:  notifier,
		logger:    logger.With(zap.String("component", "orchestrator")),
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Queue exposes the generation queue for request handlers.
func (o *Orchestrator) Queue() *GenerationQueue {
	return o.queue
}

// Start begins the timer loop. Idempotent.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return
	}
	o.running = true
	o.logger.Info("Starting orchestrator", zap.Duration("interval", o.interval))

	o.wg.Add(1)
	go o.loop()
}

// Stop halts the timer loop and waits for it to exit. In-flight plan
// executions are not waited on; their progress is visible through agent
// state on restart.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
	o.logger.Info("Orchestrator stopped")
}

func (o *Orchestrator) loop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			o.Tick(o.ctx)
		}
	}
}

// Tick runs the three sweeps once, in order. Exported so callers (and
// tests) can drive the loop manually.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.runSweep(ctx, "approved_plans", o.sweepApprovedPlans)
	o.runSweep(ctx, "awaiting_approval", o.sweepAwaitingApproval)
	o.runSweep(ctx, "generation_queue", o.sweepGenerationQueue)
}

// runSweep isolates one sweep: a panic or error is logged and the tick
// continues with the next sweep.
func (o *Orchestrator) runSweep(ctx context.Context, name string, fn func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Sweep panicked",
				zap.String("sweep", name),
				zap.Any("panic", r),
			)
		}
	}()
	if err := fn(ctx); err != nil {
		o.logger.Error("Sweep failed",
			zap.String("sweep", name),
			zap.Error(err),
		)
	}
}

// sweepApprovedPlans finds agents whose current plan has been approved
// and dispatches execution. Execution runs as independent concurrent
// work; the atomic approved→executing claim inside ExecutePlan keeps
// dispatch at most once even when adjacent ticks race.
func (o *Orchestrator) sweepApprovedPlans(ctx context.Context) error {
	agents, err := o.agents.FindByStatus(ctx, entity.AgentAwaitingApproval)
	if err != nil {
		return err
	}

	for _, agent := range agents {
		if agent.CurrentPlanID == "" {
			continue
		}
		plan, err := o.plans.FindByID(ctx, agent.CurrentPlanID)
		if err != nil {
			o.logger.Warn("Current plan lookup failed",
				zap.String("agent_id", agent.ID),
				zap.String("plan_id", agent.CurrentPlanID),
				zap.Error(err),
			)
			continue
		}
		if plan.Status != entity.PlanApproved {
			continue
		}

		agentID := agent.ID
		o.logger.Info("Dispatching approved plan",
			zap.String("agent_id", agentID),
			zap.String("plan_id", plan.ID),
		)
		safego.Go(o.logger, "plan-executor", func() {
			if err := o.lifecycle.ExecutePlan(o.ctx, agentID); err != nil {
				o.logger.Error("Plan execution failed",
					zap.String("agent_id", agentID),
					zap.Error(err),
				)
			}
		})
	}
	return nil
}

// sweepAwaitingApproval re-announces every agent waiting on a human
// decision as one batched event. Safe to repeat every tick; UI
// consumers that missed the original plan_created event catch up here.
func (o *Orchestrator) sweepAwaitingApproval(ctx context.Context) error {
	agents, err := o.agents.FindByStatus(ctx, entity.AgentAwaitingApproval)
	if err != nil {
		return err
	}

	var waiting []AwaitingAgent
	for _, agent := range agents {
		if agent.CurrentPlanID == "" {
			continue
		}
		plan, err := o.plans.FindByID(ctx, agent.CurrentPlanID)
		if err != nil || plan.Status != entity.PlanAwaitingApproval {
			continue
		}
		waiting = append(waiting, AwaitingAgent{
			AgentID:   agent.ID,
			AgentName: agent.Name,
			PlanID:    plan.ID,
		})
	}

	if len(waiting) == 0 {
		return nil
	}
	o.notifier.Emit(ctx, EventAwaitingApproval, AwaitingApprovalPayload{Agents: waiting})
	return nil
}

// sweepGenerationQueue pops at most one item per tick. A failed item is
// dropped (retry is a caller responsibility) and failure isolation
// keeps the rest of the queue intact.
func (o *Orchestrator) sweepGenerationQueue(ctx context.Context) error {
	item, ok := o.queue.Dequeue()
	if !ok {
		return nil
	}

	o.logger.Info("Processing generation request",
		zap.String("agent_id", item.AgentID),
		zap.String("correlation_id", item.CorrelationID),
		zap.Int("queue_depth", o.queue.Len()),
	)

	if err := o.lifecycle.GenerateQueued(ctx, item); err != nil {
		o.logger.Error("Generation request failed, dropping item",
			zap.String("agent_id", item.AgentID),
			zap.String("correlation_id", item.CorrelationID),
			zap.Error(err),
		)
	}
	return nil
}
