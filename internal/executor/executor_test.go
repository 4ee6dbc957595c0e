package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/repository"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
	"github.com/kyle-gehring/sqlsentinel/internal/notify"
)

type memStateRepo struct {
	states map[string]*entities.AlertState
	saves  int
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[string]*entities.AlertState)}
}

func (m *memStateRepo) GetState(_ context.Context, name string) (*entities.AlertState, error) {
	if s, ok := m.states[name]; ok {
		cp := *s
		return &cp, nil
	}
	return &entities.AlertState{AlertName: name}, nil
}

func (m *memStateRepo) SaveState(_ context.Context, state *entities.AlertState) error {
	cp := *state
	m.states[state.AlertName] = &cp
	m.saves++
	return nil
}

func (m *memStateRepo) Silence(_ context.Context, name string, d time.Duration) error {
	s, ok := m.states[name]
	if !ok {
		s = &entities.AlertState{AlertName: name}
		m.states[name] = s
	}
	until := time.Now().UTC().Add(d)
	s.SilencedUntil = &until
	return nil
}

func (m *memStateRepo) Unsilence(_ context.Context, name string) error {
	if s, ok := m.states[name]; ok {
		s.SilencedUntil = nil
	}
	return nil
}

func (m *memStateRepo) DeleteState(_ context.Context, name string) error {
	delete(m.states, name)
	return nil
}

func (m *memStateRepo) ListStates(context.Context) ([]entities.AlertState, error) {
	out := make([]entities.AlertState, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, *s)
	}
	return out, nil
}

type memHistoryRepo struct {
	records []entities.Execution
}

func (m *memHistoryRepo) Record(_ context.Context, r *entities.Execution) (uint, error) {
	r.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *r)
	return r.ID, nil
}

func (m *memHistoryRepo) List(_ context.Context, _ repository.HistoryFilter) ([]entities.Execution, error) {
	return m.records, nil
}

func (m *memHistoryRepo) Latest(context.Context, string) (*entities.Execution, error) {
	if len(m.records) == 0 {
		return nil, nil
	}
	last := m.records[len(m.records)-1]
	return &last, nil
}

func (m *memHistoryRepo) PurgeOlderThan(context.Context, string, int) (int64, error) {
	return 0, nil
}

func (m *memHistoryRepo) Statistics(context.Context, string, int) (*repository.ExecutionStats, error) {
	return &repository.ExecutionStats{}, nil
}

type fakeDispatcher struct {
	calls   int
	results []notify.TargetResult
}

func (f *fakeDispatcher) DispatchAll(_ context.Context, targets []conf.NotifyTarget, _ *notify.Message) []notify.TargetResult {
	f.calls++
	if f.results != nil {
		return f.results
	}
	out := make([]notify.TargetResult, len(targets))
	for i, target := range targets {
		out[i] = notify.TargetResult{Channel: target.Channel}
	}
	return out
}

type fakeAdapter struct {
	rows []map[string]any
	err  error
}

func (f *fakeAdapter) Connect(context.Context) error { return nil }
func (f *fakeAdapter) Close() error                  { return nil }
func (f *fakeAdapter) ExecuteQuery(context.Context, string) ([]map[string]any, error) {
	return f.rows, f.err
}

type fixture struct {
	exec       *Executor
	states     *memStateRepo
	history    *memHistoryRepo
	dispatcher *fakeDispatcher
}

func newFixture(t *testing.T, minInterval time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		states:     newMemStateRepo(),
		history:    &memHistoryRepo{},
		dispatcher: &fakeDispatcher{},
	}
	settings := &conf.Settings{MinAlertInterval: conf.Duration(minInterval)}
	f.exec = New(f.states, f.history, f.dispatcher, nil, settings, logger.NewDiscardLogger())
	return f
}

func revenueCheck() *conf.AlertDefinition {
	return &conf.AlertDefinition{
		Name:     "revenue_check",
		Query:    "SELECT CASE WHEN SUM(total) < 1000 THEN 'ALERT' ELSE 'OK' END AS status FROM orders",
		Schedule: "0 9 * * *",
		Notify: []conf.NotifyTarget{{
			Channel: conf.ChannelEmail,
			Email:   &conf.EmailTarget{Recipients: []string{"oncall@example.com"}},
		}},
		Enabled: true,
	}
}

func alertRows() []map[string]any {
	return []map[string]any{{"status": "ALERT", "actual_value": 850.0, "threshold": 1000.0}}
}

func TestExecute_AlertNotifiesAndPersists(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	result, err := f.exec.Execute(ctx, revenueCheck(), &fakeAdapter{rows: alertRows()}, Options{TriggeredBy: alert.TriggeredByCron})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultFailure, result.Status)
	assert.Equal(t, 1, f.dispatcher.calls)

	state := f.states.states["revenue_check"]
	require.NotNil(t, state)
	assert.Equal(t, alert.StatusAlert, state.CurrentStatus)
	assert.Equal(t, 1, state.ConsecutiveAlerts)
	assert.Equal(t, "email", state.LastNotificationChannel)

	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.Equal(t, alert.StatusAlert, rec.Status)
	assert.Equal(t, alert.TriggeredByCron, rec.TriggeredBy)
	assert.True(t, rec.NotificationSent)
	require.NotNil(t, rec.ActualValue)
	assert.InDelta(t, 850, *rec.ActualValue, 0.001)
}

func TestExecute_RepeatAlertIsDeduplicated(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	adapter := &fakeAdapter{rows: alertRows()}

	_, err := f.exec.Execute(ctx, revenueCheck(), adapter, Options{})
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, revenueCheck(), adapter, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.dispatcher.calls, "second consecutive ALERT must not dispatch")
	assert.Equal(t, 2, f.states.states["revenue_check"].ConsecutiveAlerts)
	assert.Len(t, f.history.records, 2, "history still records every run")
}

func TestExecute_RecoveryReArmsNotifications(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	def := revenueCheck()

	_, err := f.exec.Execute(ctx, def, &fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)
	result, err := f.exec.Execute(ctx, def, &fakeAdapter{rows: []map[string]any{{"status": "OK"}}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, alert.ResultSuccess, result.Status)

	_, err = f.exec.Execute(ctx, def, &fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.dispatcher.calls, "first ALERT and post-recovery ALERT notify")
}

func TestExecute_SilencedAlertDoesNotNotify(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.states.Silence(ctx, "revenue_check", time.Hour))

	result, err := f.exec.Execute(ctx, revenueCheck(), &fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultFailure, result.Status)
	assert.Equal(t, 0, f.dispatcher.calls)
	assert.Equal(t, 1, f.states.states["revenue_check"].ConsecutiveAlerts,
		"state keeps updating while silenced")
	assert.Len(t, f.history.records, 1)
}

func TestExecute_MinIntervalSuppressesReNotification(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()
	def := revenueCheck()

	_, err := f.exec.Execute(ctx, def, &fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, def, &fakeAdapter{rows: []map[string]any{{"status": "OK"}}}, Options{})
	require.NoError(t, err)
	_, err = f.exec.Execute(ctx, def, &fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.dispatcher.calls,
		"transition within the minimum interval of the last ALERT stays quiet")
}

func TestExecute_QueryErrorRecordsError(t *testing.T) {
	f := newFixture(t, 0)

	result, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{err: fmt.Errorf("connection refused")}, Options{})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultError, result.Status)
	assert.Contains(t, result.Error, "connection refused")
	assert.Equal(t, 0, f.dispatcher.calls)

	state := f.states.states["revenue_check"]
	assert.Equal(t, alert.StatusError, state.CurrentStatus)
	assert.Zero(t, state.ConsecutiveAlerts, "errors freeze the counters")

	require.Len(t, f.history.records, 1)
	assert.Equal(t, alert.StatusError, f.history.records[0].Status)
	assert.Contains(t, f.history.records[0].ErrorMessage, "connection refused")
}

func TestExecute_ContractViolationIsError(t *testing.T) {
	f := newFixture(t, 0)

	result, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{rows: []map[string]any{{"count": 3}}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultError, result.Status)
	assert.Contains(t, result.Error, "status")
}

func TestExecute_DryRunSkipsDispatchAndPersistence(t *testing.T) {
	f := newFixture(t, 0)

	result, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{rows: alertRows()}, Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultFailure, result.Status)
	assert.Equal(t, 0, f.dispatcher.calls)
	assert.Zero(t, f.states.saves)
	assert.Empty(t, f.history.records)
}

func TestExecute_DisabledAlertDoesNotDispatch(t *testing.T) {
	f := newFixture(t, 0)
	def := revenueCheck()
	def.Enabled = false

	result, err := f.exec.Execute(context.Background(), def,
		&fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	assert.Equal(t, alert.ResultFailure, result.Status)
	assert.Equal(t, 0, f.dispatcher.calls, "disabled alert must not dispatch notifications")

	// The manual run still updates state and history.
	state := f.states.states["revenue_check"]
	require.NotNil(t, state)
	assert.Equal(t, 1, state.ConsecutiveAlerts)
	assert.Len(t, f.history.records, 1)
	assert.False(t, f.history.records[0].NotificationSent)
}

func TestExecute_NotificationFailureIsRecorded(t *testing.T) {
	f := newFixture(t, 0)
	f.dispatcher.results = []notify.TargetResult{{
		Channel: conf.ChannelEmail,
		Err:     errors.New(errors.CategoryNotification, "smtp unreachable"),
	}}

	_, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	state := f.states.states["revenue_check"]
	assert.Equal(t, 1, state.NotificationFailures)
	assert.Empty(t, state.LastNotificationChannel,
		"only successful deliveries are recorded as the last channel")

	require.Len(t, f.history.records, 1)
	rec := f.history.records[0]
	assert.False(t, rec.NotificationSent)
	assert.Contains(t, rec.NotificationError, "smtp unreachable")
}

func TestExecute_LastChannelTracksSuccessfulDelivery(t *testing.T) {
	f := newFixture(t, 0)
	f.dispatcher.results = []notify.TargetResult{
		{Channel: conf.ChannelEmail, Err: errors.New(errors.CategoryNotification, "smtp unreachable")},
		{Channel: conf.ChannelSlack},
	}

	_, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{rows: alertRows()}, Options{})
	require.NoError(t, err)

	state := f.states.states["revenue_check"]
	assert.Equal(t, "slack", state.LastNotificationChannel)
	assert.Equal(t, 1, state.NotificationFailures)
	assert.True(t, f.history.records[0].NotificationSent)
}

func TestExecute_DefaultsTriggeredByToManual(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.exec.Execute(context.Background(), revenueCheck(),
		&fakeAdapter{rows: []map[string]any{{"status": "OK"}}}, Options{})
	require.NoError(t, err)

	require.Len(t, f.history.records, 1)
	assert.Equal(t, alert.TriggeredByManual, f.history.records[0].TriggeredBy)
}
