package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	maintenance "iot-console/internal/maintenance/domain"
	"iot-console/internal/observability/metrics"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

const defaultInterpolationInterval = 400 * time.Millisecond

// Orchestrator drives one onboarding run through its stages: upload the
// documentation, create the device, generate rules/maintenance/safety
// content, index the knowledge base. Upload and device creation fail the run;
// generation stages degrade to fallback content instead. All state lives in
// the run, so concurrent runs do not interfere.
type Orchestrator struct {
	store      DocumentStore
	devices    DeviceCreator
	ruleGen    RuleGenerator
	maintGen   MaintenanceGenerator
	safetyGen  SafetyGenerator
	indexer    KnowledgeIndexer
	fallback   *FallbackPolicy
	policy     rules.SelectionPolicy
	publisher  EventPublisher
	maintStore MaintenanceStore
	safeStore  SafetyStore
	logger     *zap.Logger
	clock      Clock
	tick       time.Duration
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithPublisher attaches an event publisher for terminal run events.
func WithPublisher(publisher EventPublisher) Option {
	return func(o *Orchestrator) { o.publisher = publisher }
}

// WithSelectionPolicy overrides the generated-rule selection policy table.
func WithSelectionPolicy(policy rules.SelectionPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
		o.fallback = NewFallbackPolicy(policy)
	}
}

// WithStores attaches persistence for generated maintenance and safety
// content. Persistence failures are logged, never fatal.
func WithStores(maintStore MaintenanceStore, safeStore SafetyStore) Option {
	return func(o *Orchestrator) {
		o.maintStore = maintStore
		o.safeStore = safeStore
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithInterpolationInterval sets the synthesized-progress tick. Zero or
// negative disables interpolation.
func WithInterpolationInterval(interval time.Duration) Option {
	return func(o *Orchestrator) { o.tick = interval }
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(store DocumentStore, devices DeviceCreator, ruleGen RuleGenerator, maintGen MaintenanceGenerator, safetyGen SafetyGenerator, indexer KnowledgeIndexer, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("orchestrator: nil document store")
	}
	if devices == nil {
		return nil, errors.New("orchestrator: nil device creator")
	}
	if ruleGen == nil || maintGen == nil || safetyGen == nil {
		return nil, errors.New("orchestrator: nil generator")
	}
	if indexer == nil {
		return nil, errors.New("orchestrator: nil knowledge indexer")
	}
	policy := rules.DefaultSelectionPolicy()
	o := &Orchestrator{
		store:     store,
		devices:   devices,
		ruleGen:   ruleGen,
		maintGen:  maintGen,
		safetyGen: safetyGen,
		indexer:   indexer,
		policy:    policy,
		fallback:  NewFallbackPolicy(policy),
		logger:    zap.NewNop(),
		clock:     systemClock{},
		tick:      defaultInterpolationInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunParams carries one run's immutable inputs.
type RunParams struct {
	RunID string
	Draft onboarding.DeviceDraft
	Asset onboarding.DocumentationAsset
	Sink  onboarding.Sink
	Token *onboarding.CancelToken
}

// Outcome is the terminal output of a run: the read-only result summary plus
// the generated content for later selection and commit.
type Outcome struct {
	Result      onboarding.Result
	Rules       []rules.GeneratedRule
	Maintenance []maintenance.Item
	Safety      []safety.Precaution
}

// runState is the private per-run state; emit keeps the snapshot sequence
// non-decreasing.
type runState struct {
	params   RunParams
	clock    Clock
	mu       sync.Mutex
	percent  int
	stage    onboarding.Stage
	degraded []onboarding.Stage
}

func (r *runState) emit(stage onboarding.Stage, percent int, message, subMessage string) {
	r.mu.Lock()
	if percent < r.percent {
		percent = r.percent
	}
	r.percent = percent
	r.stage = stage
	r.mu.Unlock()
	if r.params.Sink != nil {
		r.params.Sink.Publish(onboarding.Snapshot{
			Stage:      stage,
			Percent:    percent,
			Message:    message,
			SubMessage: subMessage,
			At:         r.clock.Now(),
		})
	}
}

func (r *runState) currentPercent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// currentStage is the stage of the last emitted snapshot.
func (r *runState) currentStage() onboarding.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage == "" {
		return onboarding.StageUpload
	}
	return r.stage
}

func (r *runState) markDegraded(stage onboarding.Stage) {
	r.degraded = append(r.degraded, stage)
	metrics.ObserveDegradedStage(string(stage))
}

func (r *runState) cancelled() bool {
	return r.params.Token.Cancelled()
}

// Run executes the pipeline. It returns a FatalError when the documentation
// asset is missing or the upload/device-create stages fail; cancellation
// resolves normally with Result.Cancelled set.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*Outcome, error) {
	if o == nil {
		return nil, errors.New("orchestrator: nil")
	}
	if params.RunID == "" {
		params.RunID = uuid.NewString()
	}
	start := o.clock.Now()
	run := &runState{params: params, clock: o.clock}
	logger := o.logger.With(zap.String("run_id", params.RunID))

	// Preconditions: no asset means the pipeline cannot start. No remote
	// call is issued and nothing is persisted.
	if params.Asset.Empty() {
		metrics.ObserveRun(metrics.ResultFatal, o.clock.Now().Sub(start))
		return nil, onboarding.NewFatalError(onboarding.StageUpload, onboarding.ErrNoDocument)
	}
	if err := params.Draft.Validate(); err != nil {
		metrics.ObserveRun(metrics.ResultFatal, o.clock.Now().Sub(start))
		return nil, onboarding.NewFatalError(onboarding.StageDeviceCreate, err)
	}

	logger.Info("onboarding_run_start",
		zap.String("device_name", params.Draft.Name),
		zap.String("file", params.Asset.Filename),
		zap.Int64("file_size", params.Asset.Size),
	)

	outcome := &Outcome{}
	asset := params.Asset

	// Stage: upload.
	run.emit(onboarding.StageUpload, 0, "Uploading documentation", asset.Filename)
	remoteID, err := o.runUpload(ctx, run, asset)
	if err != nil {
		logger.Error("onboarding_upload_failed", zap.Error(err))
		metrics.ObserveRun(metrics.ResultFatal, o.clock.Now().Sub(start))
		return nil, onboarding.NewFatalError(onboarding.StageUpload, err)
	}
	asset.RemoteID = remoteID
	_, uploadCeiling := onboarding.StageUpload.Band()
	run.emit(onboarding.StageUpload, uploadCeiling, "Documentation uploaded", "")

	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}

	// Stage: device create.
	run.emit(onboarding.StageDeviceCreate, run.currentPercent(), "Creating device", params.Draft.Name)
	deviceID, err := o.runDeviceCreate(ctx, run, params.Draft)
	if err != nil {
		logger.Error("onboarding_device_create_failed", zap.Error(err))
		metrics.ObserveRun(metrics.ResultFatal, o.clock.Now().Sub(start))
		return nil, onboarding.NewFatalError(onboarding.StageDeviceCreate, err)
	}
	outcome.Result.DeviceID = deviceID
	_, deviceCeiling := onboarding.StageDeviceCreate.Band()
	run.emit(onboarding.StageDeviceCreate, deviceCeiling, "Device created", deviceID)

	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}

	// Stage: rule generation (degradable).
	generated, ok := o.runRuleGeneration(ctx, run, asset, logger)
	if run.cancelled() {
		// In-flight result discarded per the cancellation contract.
		return o.finishCancelled(run, outcome, start, logger), nil
	}
	if !ok {
		generated = o.fallback.Rules()
		run.markDegraded(onboarding.StageRuleGeneration)
	}
	outcome.Rules = o.prepareRules(generated, deviceID)
	outcome.Result.RuleCount = len(outcome.Rules)
	_, rulesCeiling := onboarding.StageRuleGeneration.Band()
	run.emit(onboarding.StageRuleGeneration, rulesCeiling, "Monitoring rules ready", "")

	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}

	// Stage: maintenance generation (degradable).
	items, ok := o.runMaintenanceGeneration(ctx, run, asset, logger)
	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}
	if !ok {
		items = o.fallback.Maintenance(o.clock.Now())
		run.markDegraded(onboarding.StageMaintenanceGeneration)
	}
	outcome.Maintenance = o.prepareMaintenance(items, deviceID)
	outcome.Result.MaintenanceCount = len(outcome.Maintenance)
	_, maintCeiling := onboarding.StageMaintenanceGeneration.Band()
	run.emit(onboarding.StageMaintenanceGeneration, maintCeiling, "Maintenance schedule ready", "")

	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}

	// Stage: safety generation (degradable).
	precautions, ok := o.runSafetyGeneration(ctx, run, asset, logger)
	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}
	if !ok {
		precautions = o.fallback.Safety()
		run.markDegraded(onboarding.StageSafetyGeneration)
	}
	outcome.Safety = o.prepareSafety(precautions, deviceID)
	outcome.Result.SafetyCount = len(outcome.Safety)
	_, safetyCeiling := onboarding.StageSafetyGeneration.Band()
	run.emit(onboarding.StageSafetyGeneration, safetyCeiling, "Safety precautions ready", "")

	if run.cancelled() {
		return o.finishCancelled(run, outcome, start, logger), nil
	}

	// Stage: knowledge indexing (degradable, no substitute content).
	if ok := o.runKnowledgeIndexing(ctx, run, asset, deviceID, logger); !ok {
		run.markDegraded(onboarding.StageKnowledgeIndexing)
	}

	o.persistGenerated(ctx, deviceID, outcome, logger)

	elapsed := o.clock.Now().Sub(start)
	outcome.Result.RunID = params.RunID
	outcome.Result.ElapsedMs = elapsed.Milliseconds()
	outcome.Result.DegradedStages = onboarding.SortStages(run.degraded)
	run.emit(onboarding.StageComplete, 100, "Onboarding complete", "")

	result := metrics.ResultCompleted
	if outcome.Result.Degraded() {
		result = metrics.ResultDegraded
	}
	metrics.ObserveRun(result, elapsed)
	o.publishEvents(ctx, outcome, logger)
	logger.Info("onboarding_run_complete",
		zap.String("device_id", deviceID),
		zap.Int("rule_count", outcome.Result.RuleCount),
		zap.Int("maintenance_count", outcome.Result.MaintenanceCount),
		zap.Int("safety_count", outcome.Result.SafetyCount),
		zap.Int("degraded_stages", len(outcome.Result.DegradedStages)),
		zap.Int64("elapsed_ms", outcome.Result.ElapsedMs),
	)
	return outcome, nil
}

func (o *Orchestrator) runUpload(ctx context.Context, run *runState, asset onboarding.DocumentationAsset) (string, error) {
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageUpload, run.currentPercent(), o.tick, run.emit, "Uploading documentation")
	defer interp.Stop()
	remoteID, err := o.store.Upload(ctx, asset)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStage(string(onboarding.StageUpload), result, o.clock.Now().Sub(stageStart))
	return remoteID, err
}

func (o *Orchestrator) runDeviceCreate(ctx context.Context, run *runState, draft onboarding.DeviceDraft) (string, error) {
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageDeviceCreate, run.currentPercent(), o.tick, run.emit, "Creating device")
	defer interp.Stop()
	deviceID, err := o.devices.Create(ctx, draft)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveStage(string(onboarding.StageDeviceCreate), result, o.clock.Now().Sub(stageStart))
	return deviceID, err
}

func (o *Orchestrator) runRuleGeneration(ctx context.Context, run *runState, asset onboarding.DocumentationAsset, logger *zap.Logger) ([]rules.GeneratedRule, bool) {
	run.emit(onboarding.StageRuleGeneration, run.currentPercent(), "Generating monitoring rules", "")
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageRuleGeneration, run.currentPercent(), o.tick, run.emit, "Generating monitoring rules")
	defer interp.Stop()
	generated, err := o.ruleGen.GenerateRules(ctx, asset.RemoteID)
	if err != nil {
		metrics.ObserveStage(string(onboarding.StageRuleGeneration), metrics.ResultError, o.clock.Now().Sub(stageStart))
		logger.Warn("onboarding_rule_generation_degraded", zap.Error(err))
		return nil, false
	}
	metrics.ObserveStage(string(onboarding.StageRuleGeneration), metrics.ResultSuccess, o.clock.Now().Sub(stageStart))
	return generated, true
}

func (o *Orchestrator) runMaintenanceGeneration(ctx context.Context, run *runState, asset onboarding.DocumentationAsset, logger *zap.Logger) ([]maintenance.Item, bool) {
	run.emit(onboarding.StageMaintenanceGeneration, run.currentPercent(), "Creating maintenance schedule", "")
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageMaintenanceGeneration, run.currentPercent(), o.tick, run.emit, "Creating maintenance schedule")
	defer interp.Stop()
	items, err := o.maintGen.GenerateMaintenance(ctx, asset.RemoteID)
	if err != nil {
		metrics.ObserveStage(string(onboarding.StageMaintenanceGeneration), metrics.ResultError, o.clock.Now().Sub(stageStart))
		logger.Warn("onboarding_maintenance_generation_degraded", zap.Error(err))
		return nil, false
	}
	metrics.ObserveStage(string(onboarding.StageMaintenanceGeneration), metrics.ResultSuccess, o.clock.Now().Sub(stageStart))
	return items, true
}

func (o *Orchestrator) runSafetyGeneration(ctx context.Context, run *runState, asset onboarding.DocumentationAsset, logger *zap.Logger) ([]safety.Precaution, bool) {
	run.emit(onboarding.StageSafetyGeneration, run.currentPercent(), "Extracting safety precautions", "")
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageSafetyGeneration, run.currentPercent(), o.tick, run.emit, "Extracting safety precautions")
	defer interp.Stop()
	precautions, err := o.safetyGen.GenerateSafety(ctx, asset.RemoteID)
	if err != nil {
		metrics.ObserveStage(string(onboarding.StageSafetyGeneration), metrics.ResultError, o.clock.Now().Sub(stageStart))
		logger.Warn("onboarding_safety_generation_degraded", zap.Error(err))
		return nil, false
	}
	metrics.ObserveStage(string(onboarding.StageSafetyGeneration), metrics.ResultSuccess, o.clock.Now().Sub(stageStart))
	return precautions, true
}

func (o *Orchestrator) runKnowledgeIndexing(ctx context.Context, run *runState, asset onboarding.DocumentationAsset, deviceID string, logger *zap.Logger) bool {
	run.emit(onboarding.StageKnowledgeIndexing, run.currentPercent(), "Indexing knowledge base", "")
	stageStart := o.clock.Now()
	interp := startInterpolation(onboarding.StageKnowledgeIndexing, run.currentPercent(), o.tick, run.emit, "Indexing knowledge base")
	defer interp.Stop()
	err := o.indexer.Index(ctx, asset, deviceID)
	if err != nil {
		metrics.ObserveStage(string(onboarding.StageKnowledgeIndexing), metrics.ResultError, o.clock.Now().Sub(stageStart))
		logger.Warn("onboarding_knowledge_indexing_degraded", zap.Error(err))
		return false
	}
	metrics.ObserveStage(string(onboarding.StageKnowledgeIndexing), metrics.ResultSuccess, o.clock.Now().Sub(stageStart))
	_, ceiling := onboarding.StageKnowledgeIndexing.Band()
	run.emit(onboarding.StageKnowledgeIndexing, ceiling, "Knowledge base updated", "")
	return true
}

// prepareRules applies the selection policy table, scopes unscoped conditions
// to the new device and guarantees unique rule ids within the run.
func (o *Orchestrator) prepareRules(generated []rules.GeneratedRule, deviceID string) []rules.GeneratedRule {
	out := o.policy.ApplyDefaults(generated)
	seen := make(map[string]struct{}, len(out))
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
		if _, dup := seen[out[i].ID]; dup {
			out[i].ID = uuid.NewString()
		}
		seen[out[i].ID] = struct{}{}
		if out[i].Condition.DeviceID == "" {
			out[i].Condition.DeviceID = deviceID
		}
	}
	return out
}

func (o *Orchestrator) prepareMaintenance(items []maintenance.Item, deviceID string) []maintenance.Item {
	now := o.clock.Now()
	out := make([]maintenance.Item, 0, len(items))
	for _, item := range items {
		item = item.WithSchedule(now)
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.DeviceID = deviceID
		out = append(out, item)
	}
	return out
}

func (o *Orchestrator) prepareSafety(precautions []safety.Precaution, deviceID string) []safety.Precaution {
	out := make([]safety.Precaution, 0, len(precautions))
	for _, p := range precautions {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.DeviceID = deviceID
		out = append(out, p)
	}
	return out
}

func (o *Orchestrator) persistGenerated(ctx context.Context, deviceID string, outcome *Outcome, logger *zap.Logger) {
	if o.maintStore != nil && len(outcome.Maintenance) > 0 {
		if err := o.maintStore.SaveAll(ctx, deviceID, outcome.Maintenance); err != nil {
			logger.Warn("onboarding_maintenance_persist_failed", zap.Error(err))
		}
	}
	if o.safeStore != nil && len(outcome.Safety) > 0 {
		if err := o.safeStore.SaveAll(ctx, deviceID, outcome.Safety); err != nil {
			logger.Warn("onboarding_safety_persist_failed", zap.Error(err))
		}
	}
}

// finishCancelled resolves a cancelled run at the percent reached. Already
// completed stages stay counted; nothing further is invoked.
func (o *Orchestrator) finishCancelled(run *runState, outcome *Outcome, start time.Time, logger *zap.Logger) *Outcome {
	elapsed := o.clock.Now().Sub(start)
	outcome.Result.RunID = run.params.RunID
	outcome.Result.Cancelled = true
	outcome.Result.ElapsedMs = elapsed.Milliseconds()
	outcome.Result.DegradedStages = onboarding.SortStages(run.degraded)
	percent := run.currentPercent()
	// Keep the last active stage on the final snapshot; an out-of-set stage
	// would break consumers that key on the fixed stage list.
	run.emit(run.currentStage(), percent, "Onboarding cancelled", "")
	metrics.ObserveRun(metrics.ResultCancelled, elapsed)
	logger.Info("onboarding_run_cancelled",
		zap.String("device_id", outcome.Result.DeviceID),
		zap.Int("percent", percent),
	)
	return outcome
}

func (o *Orchestrator) publishEvents(ctx context.Context, outcome *Outcome, logger *zap.Logger) {
	if o.publisher == nil {
		return
	}
	event := DeviceOnboarded{
		RunID:            outcome.Result.RunID,
		DeviceID:         outcome.Result.DeviceID,
		RuleCount:        outcome.Result.RuleCount,
		MaintenanceCount: outcome.Result.MaintenanceCount,
		SafetyCount:      outcome.Result.SafetyCount,
		DegradedStages:   stageNames(outcome.Result.DegradedStages),
		OccurredAt:       o.clock.Now(),
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		logger.Warn("onboarding_event_publish_failed", zap.Error(err))
	}
	if outcome.Result.Degraded() {
		degraded := OnboardingDegraded{
			RunID:      outcome.Result.RunID,
			DeviceID:   outcome.Result.DeviceID,
			Stages:     stageNames(outcome.Result.DegradedStages),
			OccurredAt: o.clock.Now(),
		}
		if err := o.publisher.Publish(ctx, degraded); err != nil {
			logger.Warn("onboarding_event_publish_failed", zap.Error(err))
		}
	}
}

func stageNames(stages []onboarding.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, string(s))
	}
	return out
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
