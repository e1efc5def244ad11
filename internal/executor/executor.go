package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/metrics"
	"github.com/t77yq/self-healing/internal/model"
)

const (
	unknownLabel   = "unknown"
	timeoutDetail  = "Playbook execution timed out"
	abortedDetail  = "Playbook execution aborted: service shutting down"
	pipeWaitDelay  = 5 * time.Second
	defaultTimeout = 300 * time.Second
)

// ExecutorConfig defines how the remediation runner is invoked
type ExecutorConfig struct {
	Command    string
	Inventory  string
	Connection string
	Timeout    time.Duration
}

// Recorder persists the outcome of a remediation attempt
type Recorder interface {
	Record(ctx context.Context, alertName string, outcome model.Outcome, details string) *model.HealingAction
}

// HostSnapshotter provides the latest host resource snapshot
type HostSnapshotter interface {
	Latest() *model.HostStats
}

// ExtraVars is the argument payload handed to the playbook
type ExtraVars struct {
	AlertName     string `json:"alert_name"`
	AlertInstance string `json:"alert_instance"`
	AlertSeverity string `json:"alert_severity"`
}

// RunningRemediation describes a playbook that is currently executing
type RunningRemediation struct {
	ID        string    `json:"id"`
	AlertName string    `json:"alert_name"`
	Playbook  string    `json:"playbook"`
	StartedAt time.Time `json:"started_at"`

	cancel context.CancelFunc
}

// Executor runs remediation playbooks with a bounded wall-clock time and
// records every attempt
type Executor struct {
	logger   *zap.Logger
	config   ExecutorConfig
	recorder Recorder
	host     HostSnapshotter
	running  sync.Map
	inflight sync.WaitGroup
}

// Option configures optional executor collaborators
type Option func(*Executor)

// WithHostSnapshotter logs a host snapshot before each playbook run
func WithHostSnapshotter(host HostSnapshotter) Option {
	return func(e *Executor) {
		e.host = host
	}
}

// NewExecutor creates a new executor
func NewExecutor(config ExecutorConfig, recorder Recorder, logger *zap.Logger, opts ...Option) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	e := &Executor{
		logger:   logger.Named("executor"),
		config:   config,
		recorder: recorder,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the wall-clock bound applied to each playbook run
func (e *Executor) Timeout() time.Duration {
	return e.config.Timeout
}

// Execute runs the playbook for one alert. It reports true only when the
// playbook exited successfully. Every outcome except a missing playbook is
// recorded before Execute returns. The run is not tied to ctx cancellation;
// only the configured timeout and Stop bound it.
func (e *Executor) Execute(ctx context.Context, playbook string, alert *model.Alert) (bool, *model.RemediationResult) {
	alertName := alert.Name()
	result := &model.RemediationResult{
		AlertName: alertName,
		Playbook:  playbook,
		StartedAt: time.Now(),
	}

	if _, err := os.Stat(playbook); err != nil {
		result.Outcome = model.OutcomeNotFound
		result.Err = fmt.Errorf("%w: %s", ErrPlaybookNotFound, playbook)
		result.Detail = result.Err.Error()
		e.logger.Error("Playbook not found",
			zap.String("alert_name", alertName),
			zap.String("playbook", playbook),
			zap.Error(err))
		return false, result
	}

	e.inflight.Add(1)
	defer e.inflight.Done()

	// Detached from the request so a disconnecting caller cannot abort the
	// run or drop its audit record.
	runCtx := context.WithoutCancel(ctx)

	e.run(runCtx, result, alert)
	result.Duration = time.Since(result.StartedAt)

	switch result.Outcome {
	case model.OutcomeSuccess:
		e.logger.Info("Playbook executed successfully",
			zap.String("alert_name", alertName),
			zap.String("playbook", playbook),
			zap.Duration("duration", result.Duration),
			zap.String("stdout", result.Detail))
	case model.OutcomeFailed:
		e.logger.Error("Playbook execution failed",
			zap.String("alert_name", alertName),
			zap.String("playbook", playbook),
			zap.Duration("duration", result.Duration),
			zap.String("stderr", result.Detail))
	case model.OutcomeTimeout:
		e.logger.Error("Playbook execution timed out",
			zap.String("alert_name", alertName),
			zap.String("playbook", playbook),
			zap.Duration("timeout", e.config.Timeout))
	default:
		e.logger.Error("Error executing playbook",
			zap.String("alert_name", alertName),
			zap.String("playbook", playbook),
			zap.Error(result.Err))
	}

	metrics.RemediationsTotal.WithLabelValues(alertName, string(result.Outcome)).Inc()
	metrics.RemediationDuration.WithLabelValues(alertName).Observe(result.Duration.Seconds())

	if result.Outcome.Recorded() {
		e.recorder.Record(runCtx, alertName, result.Outcome, result.Detail)
	}

	return result.Outcome == model.OutcomeSuccess, result
}

// run invokes the runner and classifies its outcome into result
func (e *Executor) run(ctx context.Context, result *model.RemediationResult, alert *model.Alert) {
	args, err := e.buildArgs(result.Playbook, alert)
	if err != nil {
		result.Outcome = model.OutcomeError
		result.Err = err
		result.Detail = err.Error()
		return
	}

	cmdCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, e.config.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay
	setProcessGroup(cmd)

	running := &RunningRemediation{
		ID:        uuid.New().String(),
		AlertName: result.AlertName,
		Playbook:  result.Playbook,
		StartedAt: result.StartedAt,
		cancel:    cancel,
	}
	e.running.Store(running.ID, running)
	defer e.running.Delete(running.ID)

	metrics.RemediationsInFlight.Inc()
	defer metrics.RemediationsInFlight.Dec()

	fields := []zap.Field{
		zap.String("alert_name", result.AlertName),
		zap.String("command", e.config.Command+" "+strings.Join(args, " ")),
	}
	if e.host != nil {
		if stats := e.host.Latest(); stats != nil {
			fields = append(fields,
				zap.Float64("host_cpu_usage", stats.CPUUsage),
				zap.Float64("host_memory_usage", stats.MemoryUsage),
				zap.Float64("host_load1", stats.Load1))
		}
	}
	e.logger.Info("Executing command", fields...)

	err = cmd.Run()

	switch {
	case err != nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded):
		result.Outcome = model.OutcomeTimeout
		result.Err = ErrTimeout
		result.Detail = timeoutDetail
	case err != nil && errors.Is(cmdCtx.Err(), context.Canceled):
		result.Outcome = model.OutcomeError
		result.Err = ErrAborted
		result.Detail = abortedDetail
	case err == nil, errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success():
		result.Outcome = model.OutcomeSuccess
		result.Detail = stdout.String()
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Outcome = model.OutcomeFailed
			result.Err = fmt.Errorf("playbook exited with code %d", exitErr.ExitCode())
			result.Detail = stderr.String()
			return
		}
		result.Outcome = model.OutcomeError
		result.Err = err
		result.Detail = err.Error()
	}
}

// buildArgs assembles the runner arguments for one alert
func (e *Executor) buildArgs(playbook string, alert *model.Alert) ([]string, error) {
	vars := ExtraVars{
		AlertName:     alert.Name(),
		AlertInstance: alert.Label(model.LabelInstance, unknownLabel),
		AlertSeverity: alert.Label(model.LabelSeverity, unknownLabel),
	}

	extraVars, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extra vars: %w", err)
	}

	args := []string{playbook}
	if e.config.Inventory != "" {
		args = append(args, "-i", e.config.Inventory)
	}
	if e.config.Connection != "" {
		args = append(args, "--connection", e.config.Connection)
	}
	return append(args, "--extra-vars", string(extraVars)), nil
}

// GetRunning returns the playbooks currently executing
func (e *Executor) GetRunning() []*RunningRemediation {
	var runs []*RunningRemediation
	e.running.Range(func(key, value interface{}) bool {
		if run, ok := value.(*RunningRemediation); ok {
			runs = append(runs, run)
		}
		return true
	})
	return runs
}

// Wait blocks until every started remediation has been recorded
func (e *Executor) Wait() {
	e.inflight.Wait()
}

// Stop aborts every running playbook. Aborted runs are still recorded;
// call Wait to block until they are.
func (e *Executor) Stop() {
	e.logger.Info("Stopping executor")

	e.running.Range(func(key, value interface{}) bool {
		if run, ok := value.(*RunningRemediation); ok {
			e.logger.Warn("Aborting running playbook",
				zap.String("alert_name", run.AlertName),
				zap.String("playbook", run.Playbook))
			run.cancel()
		}
		return true
	})
}
