package reconcile

import "tjsync/matcher"

// Target names the system an action mutates.
type Target string

const (
	TargetSource    Target = "source"
	TargetReference Target = "reference"
)

// Kind is the mutation an action requests.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Value keys used in Action.Values.
const (
	FieldBillable  = "billable"
	FieldProjectID = "pid"
	FieldStart     = "start"
	FieldStop      = "stop"

	FieldStarted          = "started"
	FieldTimeSpentSeconds = "timeSpentSeconds"
	FieldComment          = "comment"
)

// Action is one requested mutation against Toggl or Jira. Executors must
// apply the actions of a pairing in order.
type Action struct {
	Target Target         `json:"target"`
	Kind   Kind           `json:"kind"`
	ID     string         `json:"id,omitempty"`
	Issue  string         `json:"issue"`
	Values map[string]any `json:"values,omitempty"`
}

// Level is the severity of a message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

type Message struct {
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

// ProjectSetting holds the locally enforced metadata of one Jira project key.
type ProjectSetting struct {
	// SourceProject is the Toggl project name entries must be assigned to.
	// Empty leaves the Toggl project alone.
	SourceProject  string
	SourceBillable bool
	ReferenceSkip  bool
}

// Settings is the read-only input shared by every Reconcile call of a run.
type Settings struct {
	Projects map[string]ProjectSetting
	// ProjectIDs resolves Toggl project names to ids.
	ProjectIDs map[string]int64
}

type Result struct {
	Actions  []Action  `json:"actions"`
	Messages []Message `json:"messages"`
}

// Row is one pairing together with its reconciliation result.
type Row struct {
	Pairing matcher.Pairing
	Result
}
