// Package reconcile derives, per pairing, the corrective actions that make
// Jira mirror Toggl and keep Toggl metadata in line with the project settings.
package reconcile

import (
	"fmt"
	"math"
	"time"

	"tjsync/internal/timeutil"
	"tjsync/matcher"
	"tjsync/worklog"
)

// workingContext holds the expected state of one pairing. Rules that emit a
// correction store the corrected value here so later rules build on it.
type workingContext struct {
	settings Settings

	hasSource bool
	sourceID  string
	issue     string
	comment   string
	start     time.Time
	stop      time.Time
	billable  bool
	projectID int64
	key       string

	hasReference   bool
	referenceID    string
	referenceIssue string
	referenceRaw   map[string]any

	setting ProjectSetting
	payload referencePayload
}

type referencePayload struct {
	started          time.Time
	timeSpentSeconds int64
	comment          string
}

func (p referencePayload) values() map[string]any {
	return map[string]any{
		FieldStarted:          worklog.FormatReferenceTime(p.started),
		FieldTimeSpentSeconds: p.timeSpentSeconds,
		FieldComment:          p.comment,
	}
}

type fieldValue struct {
	key   string
	value any
}

// emission is what a single rule produces.
type emission struct {
	source    []fieldValue
	reference []Action
	messages  []Message
	done      bool
}

type rule struct {
	name  string
	apply func(workingContext) (workingContext, emission)
}

// rules run in this order; a rule whose emission is done ends evaluation.
var rules = []rule{
	{name: "no-source", apply: ruleNoSource},
	{name: "unknown-project", apply: ruleUnknownProject},
	{name: "billable", apply: ruleBillable},
	{name: "project", apply: ruleProjectID},
	{name: "start-rounding", apply: ruleStartRounding},
	{name: "stop-rounding", apply: ruleStopRounding},
	{name: "skip-reference", apply: ruleSkipReference},
	{name: "reference-payload", apply: ruleBuildPayload},
	{name: "create", apply: ruleCreate},
	{name: "move", apply: ruleMove},
	{name: "field-sync", apply: ruleFieldSync},
}

// Reconcile evaluates the rule table for one pairing. It panics if the
// pairing has neither side, which the matcher never produces.
func Reconcile(p matcher.Pairing, settings Settings) Result {
	c := newWorkingContext(p, settings)

	var (
		sourceValues []fieldValue
		reference    []Action
		messages     []Message
	)
	for _, r := range rules {
		var e emission
		c, e = r.apply(c)
		sourceValues = append(sourceValues, e.source...)
		reference = append(reference, e.reference...)
		messages = append(messages, e.messages...)
		if e.done {
			break
		}
	}

	actions := make([]Action, 0, len(reference)+1)
	if len(sourceValues) > 0 {
		values := make(map[string]any, len(sourceValues))
		for _, fv := range sourceValues {
			values[fv.key] = fv.value
		}
		actions = append(actions, Action{
			Target: TargetSource,
			Kind:   KindUpdate,
			ID:     c.sourceID,
			Issue:  c.issue,
			Values: values,
		})
	}
	actions = append(actions, reference...)

	return Result{Actions: actions, Messages: messages}
}

// ReconcileAll reconciles every pairing independently.
func ReconcileAll(pairings []matcher.Pairing, settings Settings) []Row {
	rows := make([]Row, 0, len(pairings))
	for _, p := range pairings {
		rows = append(rows, Row{Pairing: p, Result: Reconcile(p, settings)})
	}
	return rows
}

func newWorkingContext(p matcher.Pairing, settings Settings) workingContext {
	if p.Source == nil && p.Reference == nil {
		panic("reconcile: pairing has neither a source nor a reference entry")
	}

	c := workingContext{settings: settings}
	if p.Source != nil {
		tag, _ := p.Source.SourceTag()
		c.hasSource = true
		c.sourceID = tag.ID
		c.issue = p.Source.Issue
		c.comment = p.Source.Comment
		c.start = p.Source.Start
		c.stop = p.Source.Stop
		c.billable = tag.Billable
		c.projectID = tag.ProjectID
		c.key = tag.ProjectKey
	}
	if p.Reference != nil {
		tag, _ := p.Reference.ReferenceTag()
		c.hasReference = true
		c.referenceID = tag.ID
		c.referenceIssue = p.Reference.Issue
		c.referenceRaw = tag.Raw
	}
	return c
}

func ruleNoSource(c workingContext) (workingContext, emission) {
	if c.hasSource {
		return c, emission{}
	}
	return c, emission{
		reference: []Action{c.deleteReference()},
		messages:  []Message{danger("Jira worklog on %s has no Toggl entry and will be removed", c.referenceIssue)},
		done:      true,
	}
}

func ruleUnknownProject(c workingContext) (workingContext, emission) {
	setting, ok := c.settings.Projects[c.key]
	if !ok {
		return c, emission{
			messages: []Message{warning("Project %q is not set up", c.key)},
			done:     true,
		}
	}
	c.setting = setting
	return c, emission{}
}

func ruleBillable(c workingContext) (workingContext, emission) {
	expected := c.setting.SourceBillable
	if c.billable == expected {
		return c, emission{}
	}
	c.billable = expected
	return c, emission{
		source:   []fieldValue{{key: FieldBillable, value: expected}},
		messages: []Message{info("Toggl entry will be marked %s", billableLabel(expected))},
	}
}

func ruleProjectID(c workingContext) (workingContext, emission) {
	name := c.setting.SourceProject
	if name == "" {
		return c, emission{}
	}
	expected, ok := c.settings.ProjectIDs[name]
	if !ok {
		return c, emission{
			messages: []Message{warning("Toggl project %q does not exist", name)},
		}
	}
	if c.projectID == expected {
		return c, emission{}
	}
	c.projectID = expected
	return c, emission{
		source:   []fieldValue{{key: FieldProjectID, value: expected}},
		messages: []Message{warning("Toggl entry will be moved to project %q", name)},
	}
}

func ruleStartRounding(c workingContext) (workingContext, emission) {
	expected := timeutil.FloorMinute(c.start)
	if expected.Equal(c.start) {
		return c, emission{}
	}
	original := c.start
	c.start = expected
	return c, emission{
		source:   []fieldValue{{key: FieldStart, value: worklog.FormatSourceTime(expected)}},
		messages: []Message{info("Toggl start %s will be rounded to %s", clock(original), clock(expected))},
	}
}

func ruleStopRounding(c workingContext) (workingContext, emission) {
	expected := timeutil.FloorMinute(c.stop)
	if expected.Equal(c.stop) {
		return c, emission{}
	}
	original := c.stop
	c.stop = expected
	return c, emission{
		source:   []fieldValue{{key: FieldStop, value: worklog.FormatSourceTime(expected)}},
		messages: []Message{info("Toggl stop %s will be rounded to %s", clock(original), clock(expected))},
	}
}

func ruleSkipReference(c workingContext) (workingContext, emission) {
	if !c.setting.ReferenceSkip {
		return c, emission{}
	}
	if c.hasReference {
		return c, emission{
			reference: []Action{c.deleteReference()},
			messages:  []Message{danger("Project %q is skipped for Jira; worklog on %s will be removed", c.key, c.referenceIssue)},
			done:      true,
		}
	}
	return c, emission{
		messages: []Message{info("Skipped for Jira")},
		done:     true,
	}
}

func ruleBuildPayload(c workingContext) (workingContext, emission) {
	c.payload = referencePayload{
		started:          c.start,
		timeSpentSeconds: int64(math.Round(c.stop.Sub(c.start).Seconds())),
		comment:          c.comment,
	}
	return c, emission{}
}

func ruleCreate(c workingContext) (workingContext, emission) {
	if c.hasReference {
		return c, emission{}
	}
	return c, emission{
		reference: []Action{c.createReference()},
		messages:  []Message{danger("Jira worklog will be created on %s", c.issue)},
		done:      true,
	}
}

func ruleMove(c workingContext) (workingContext, emission) {
	if c.referenceIssue == c.issue {
		return c, emission{}
	}
	return c, emission{
		reference: []Action{c.deleteReference(), c.createReference()},
		messages:  []Message{danger("Jira worklog will be moved from %s to %s", c.referenceIssue, c.issue)},
		done:      true,
	}
}

func ruleFieldSync(c workingContext) (workingContext, emission) {
	var e emission
	values := map[string]any{}

	raw := c.referenceRaw
	if started, ok := rawTime(raw, FieldStarted); !ok || !started.Equal(c.payload.started) {
		values[FieldStarted] = worklog.FormatReferenceTime(c.payload.started)
		e.messages = append(e.messages, danger("Jira start %s will be changed to %s", rawLabel(raw, FieldStarted), clock(c.payload.started)))
	}
	if spent, ok := rawSeconds(raw, FieldTimeSpentSeconds); !ok || spent != c.payload.timeSpentSeconds {
		values[FieldTimeSpentSeconds] = c.payload.timeSpentSeconds
		e.messages = append(e.messages, danger("Jira time spent %s will be changed to %s", rawLabel(raw, FieldTimeSpentSeconds), time.Duration(c.payload.timeSpentSeconds)*time.Second))
	}
	if comment := rawString(raw, FieldComment); comment != c.payload.comment {
		values[FieldComment] = c.payload.comment
		e.messages = append(e.messages, warning("Jira comment %q will be changed to %q", comment, c.payload.comment))
	}

	if len(values) > 0 {
		e.reference = []Action{{
			Target: TargetReference,
			Kind:   KindUpdate,
			ID:     c.referenceID,
			Issue:  c.referenceIssue,
			Values: values,
		}}
	}
	return c, e
}

func (c workingContext) deleteReference() Action {
	return Action{
		Target: TargetReference,
		Kind:   KindDelete,
		ID:     c.referenceID,
		Issue:  c.referenceIssue,
	}
}

func (c workingContext) createReference() Action {
	return Action{
		Target: TargetReference,
		Kind:   KindCreate,
		Issue:  c.issue,
		Values: c.payload.values(),
	}
}

func rawTime(raw map[string]any, key string) (time.Time, bool) {
	value, ok := raw[key].(string)
	if !ok {
		return time.Time{}, false
	}
	parsed, err := worklog.ParseReferenceTime(value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func rawSeconds(raw map[string]any, key string) (int64, bool) {
	switch value := raw[key].(type) {
	case float64:
		return int64(math.Round(value)), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	default:
		return 0, false
	}
}

// rawString treats a missing comment as empty, as Jira omits empty comments.
func rawString(raw map[string]any, key string) string {
	value, _ := raw[key].(string)
	return value
}

func rawLabel(raw map[string]any, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return "(none)"
	}
	return fmt.Sprint(value)
}

func billableLabel(billable bool) string {
	if billable {
		return "billable"
	}
	return "non-billable"
}

func clock(value time.Time) string {
	return value.Format("15:04:05")
}

func info(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...), Level: LevelInfo}
}

func warning(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...), Level: LevelWarning}
}

func danger(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...), Level: LevelDanger}
}
