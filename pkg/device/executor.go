package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog/log"
)

// DefaultExecutionTimeout bounds a single command invocation.
const DefaultExecutionTimeout = 30 * time.Second

// ParameterValidator checks command arguments before an execution is recorded.
type ParameterValidator interface {
	ValidateParameters(cmd *Command, params map[string]any) error
}

// Executor runs commands against devices. Commands against the same device
// are serialized; commands against different devices run concurrently.
type Executor struct {
	registry  *Registry
	adapters  *Adapters
	validator ParameterValidator
	events    *Hub
	timeout   time.Duration
	now       func() time.Time

	executions cmap.ConcurrentMap[string, *Execution]
	byDevice   cmap.ConcurrentMap[string, []string]
	locks      cmap.ConcurrentMap[string, *sync.Mutex]
	mu         sync.RWMutex // guards Execution values held in executions
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutionTimeout overrides DefaultExecutionTimeout. Zero disables it.
func WithExecutionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithParameterValidator validates arguments against command parameter declarations.
func WithParameterValidator(v ParameterValidator) ExecutorOption {
	return func(e *Executor) { e.validator = v }
}

// WithEvents publishes execution transitions to hub.
func WithEvents(hub *Hub) ExecutorOption {
	return func(e *Executor) { e.events = hub }
}

// NewExecutor creates an executor over the given registry and adapters.
func NewExecutor(registry *Registry, adapters *Adapters, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:   registry,
		adapters:   adapters,
		timeout:    DefaultExecutionTimeout,
		now:        time.Now,
		executions: cmap.New[*Execution](),
		byDevice:   cmap.New[[]string](),
		locks:      cmap.New[*sync.Mutex](),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one command. Unknown device or command ids fail with
// ErrNotFound before anything is recorded. When the adapter fails, the
// failed execution is returned together with the error.
func (e *Executor) Execute(ctx context.Context, deviceID, commandID string, params map[string]any) (*Execution, error) {
	d, cmd, adapter, err := e.resolve(deviceID, commandID)
	if err != nil {
		return nil, err
	}

	args := withDefaults(cmd, params)
	if e.validator != nil {
		if err := e.validator.ValidateParameters(cmd, args); err != nil {
			return nil, err
		}
	}

	exec := &Execution{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		CommandID:  commandID,
		Parameters: args,
		Timestamp:  e.now().UTC(),
		Status:     ExecutionPending,
		History:    []ExecutionStatus{ExecutionPending},
	}
	e.record(exec)

	lock := e.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	logger := log.With().Str("device_id", deviceID).Str("command_id", commandID).Str("execution_id", exec.ID).Logger()

	// The device may have changed or gone while this call waited for the lock.
	d, cmd, adapter, err = e.resolve(deviceID, commandID)
	if err != nil {
		e.transition(exec, ExecutionFailed, nil, err.Error())
		logger.Warn().Err(err).Msg("Device changed before command ran")
		return e.snapshot(exec), err
	}

	e.transition(exec, ExecutionExecuting, nil, "")
	logger.Debug().Str("protocol", string(d.Protocol)).Msg("Executing command")

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := adapter.Send(runCtx, d, cmd, args)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		e.transition(exec, ExecutionFailed, nil, err.Error())
		logger.Warn().Err(err).Msg("Command failed")
		return e.snapshot(exec), err
	}

	e.transition(exec, ExecutionCompleted, result, "")
	seen := e.now()
	if _, err := e.registry.SetStatus(context.WithoutCancel(ctx), deviceID, StatusOnline, &seen); err != nil {
		logger.Warn().Err(err).Msg("Failed to record device as seen")
	}

	logger.Info().Msg("Command completed")
	return e.snapshot(exec), nil
}

// resolve looks up the device, its command and the protocol adapter.
func (e *Executor) resolve(deviceID, commandID string) (*Device, *Command, Adapter, error) {
	d, err := e.registry.Get(deviceID)
	if err != nil {
		return nil, nil, nil, err
	}
	cmd := d.FindCommand(commandID)
	if cmd == nil {
		return nil, nil, nil, fmt.Errorf("command %q on device %q: %w", commandID, deviceID, ErrNotFound)
	}
	adapter, err := e.adapters.For(d.Protocol)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, cmd, adapter, nil
}

// Execution returns a recorded execution by id.
func (e *Executor) Execution(id string) (*Execution, error) {
	exec, ok := e.executions.Get(id)
	if !ok {
		return nil, fmt.Errorf("execution %q: %w", id, ErrNotFound)
	}
	return e.snapshot(exec), nil
}

// Executions returns the executions recorded for a device, oldest first.
// Executions live for the lifetime of the process only.
func (e *Executor) Executions(deviceID string) []Execution {
	ids, _ := e.byDevice.Get(deviceID)
	out := make([]Execution, 0, len(ids))
	for _, id := range ids {
		if exec, ok := e.executions.Get(id); ok {
			out = append(out, *e.snapshot(exec))
		}
	}
	return out
}

// Forget drops the execution history and lock of a removed device.
func (e *Executor) Forget(deviceID string) {
	ids, _ := e.byDevice.Pop(deviceID)
	for _, id := range ids {
		e.executions.Remove(id)
	}
	e.locks.Remove(deviceID)
}

func (e *Executor) record(exec *Execution) {
	e.executions.Set(exec.ID, exec)
	e.byDevice.Upsert(exec.DeviceID, nil, func(exist bool, ids []string, _ []string) []string {
		return append(ids, exec.ID)
	})
	e.events.Publish(Event{Type: EventExecutionUpdated, DeviceID: exec.DeviceID, Execution: e.snapshot(exec)})
}

func (e *Executor) transition(exec *Execution, to ExecutionStatus, result any, errMsg string) {
	e.mu.Lock()
	ok := exec.advance(to)
	if ok {
		exec.Result = result
		exec.Error = errMsg
	}
	e.mu.Unlock()

	if ok {
		e.events.Publish(Event{Type: EventExecutionUpdated, DeviceID: exec.DeviceID, Execution: e.snapshot(exec)})
	}
}

func (e *Executor) snapshot(exec *Execution) *Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c := *exec
	c.Parameters = cloneMap(exec.Parameters)
	c.History = append([]ExecutionStatus{}, exec.History...)
	return &c
}

func (e *Executor) deviceLock(deviceID string) *sync.Mutex {
	return e.locks.Upsert(deviceID, nil, func(exist bool, current *sync.Mutex, _ *sync.Mutex) *sync.Mutex {
		if exist {
			return current
		}
		return &sync.Mutex{}
	})
}

// withDefaults copies params and fills in declared defaults for missing arguments.
func withDefaults(cmd *Command, params map[string]any) map[string]any {
	args := make(map[string]any, len(params)+len(cmd.Parameters))
	for k, v := range params {
		args[k] = v
	}
	for _, p := range cmd.Parameters {
		if _, ok := args[p.Name]; !ok && p.Default != nil {
			args[p.Name] = p.Default
		}
	}
	return args
}
