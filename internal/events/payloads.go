package events

import (
	"time"

	"github.com/haasonsaas/agentcore/internal/extensions"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// Payload is the kind-specific body of an event. The set of
// implementations is closed to this package.
type Payload interface {
	Kind() Kind
	isPayload()
}

type stoppable interface {
	Payload
	stoppable()
}

type payload struct{}

func (payload) isPayload() {}

// stop marks a payload variant as stoppable.
type stop struct{ payload }

func (stop) stoppable() {}

// BeforeInit fires when a session starts initializing.
type BeforeInit struct {
	payload
	SessionID string
}

func (BeforeInit) Kind() Kind { return KindBeforeInit }

// AfterInit fires once a session is ready to accept messages.
type AfterInit struct {
	payload
	SessionID string
	Tools     []string
}

func (AfterInit) Kind() Kind { return KindAfterInit }

// BeforeLLMRequest fires before the model endpoint is called.
type BeforeLLMRequest struct {
	stop
	Iteration int
	Messages  int
	Tools     int
}

func (BeforeLLMRequest) Kind() Kind { return KindBeforeLLMRequest }

// AfterLLMRequest fires after the model endpoint returns, successfully or not.
type AfterLLMRequest struct {
	stop
	Iteration int
	Provider  string
	Response  *models.Message
	Usage     models.Usage
	Duration  time.Duration
	Err       error
}

func (AfterLLMRequest) Kind() Kind { return KindAfterLLMRequest }

// BeforeToolCall fires after arguments validate and before the handler runs.
type BeforeToolCall struct {
	stop
	CallID    string
	ToolName  string
	Arguments map[string]any
	Store     *extensions.Store
}

func (BeforeToolCall) Kind() Kind { return KindBeforeToolCall }

// AfterToolCall fires after the handler returns, panics or is cancelled.
type AfterToolCall struct {
	stop
	CallID    string
	ToolName  string
	Arguments map[string]any
	Store     *extensions.Store
	Result    models.ToolResult
	Duration  time.Duration
}

func (AfterToolCall) Kind() Kind { return KindAfterToolCall }

// FileCreated fires when a file appears in the workspace.
type FileCreated struct {
	stop
	Path   string
	Size   int64
	Source string
}

func (FileCreated) Kind() Kind { return KindFileCreated }

// FileUpdated fires when an existing workspace file changes.
type FileUpdated struct {
	stop
	Path   string
	Size   int64
	Source string
}

func (FileUpdated) Kind() Kind { return KindFileUpdated }

// FileDeleted fires when a workspace file is removed.
type FileDeleted struct {
	stop
	Path   string
	Source string
}

func (FileDeleted) Kind() Kind { return KindFileDeleted }

// AgentSuspended fires when a tool asks the loop to wait for the user.
type AgentSuspended struct {
	payload
	ToolName string
	Reason   string
}

func (AgentSuspended) Kind() Kind { return KindAgentSuspended }

// Error fires for failures that end or degrade a session.
type Error struct {
	payload
	Stage string
	Err   error
}

func (Error) Kind() Kind { return KindError }

// MessageAppended fires when a message enters the history.
type MessageAppended struct {
	stop
	Message models.Message
	Cost    int
}

func (MessageAppended) Kind() Kind { return KindMessageAppended }

// HistoryCompressed fires after a prefix was replaced by a summary.
type HistoryCompressed struct {
	payload
	Replaced   int
	CostBefore int
	CostAfter  int
}

func (HistoryCompressed) Kind() Kind { return KindHistoryCompressed }

// SessionStateChanged fires on every agent loop state transition.
type SessionStateChanged struct {
	payload
	From string
	To   string
}

func (SessionStateChanged) Kind() Kind { return KindSessionStateChanged }
