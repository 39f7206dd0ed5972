package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/cache"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
	"github.com/fairyhunter13/intake-qa-agent/internal/usecase"
)

const passReply = `{"QA_Status":"PASS","QA_Risk_Level":"LOW","QA_Summary":"All good.","QA_Key_Findings":["Complete application"],"QA_Concerns":[],"QA_Advisory_Notes":""}`

const actionableBody = `{
	"ActivityEventName": "IntakeApplication",
	"ProspectActivityId": "act-100",
	"Current": {"mx_Program": "BSc CS", "mx_Citizenship": "International", "mx_College_GPA": "3.4"}
}`

type fakeAI struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	reports []string
}

func (f *fakeAI) Decide(_ domain.Context, report string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.reports = append(f.reports, report)
	return f.reply, f.err
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCRM struct {
	mu          sync.Mutex
	leadFields  map[string]any
	leadErr     error
	gotLeadIDs  []string
	updates     map[string]map[string]string
	updateErr   error
}

func (f *fakeCRM) GetLead(_ domain.Context, leadID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLeadIDs = append(f.gotLeadIDs, leadID)
	return f.leadFields, f.leadErr
}

func (f *fakeCRM) UpdateActivityFields(_ domain.Context, activityID string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]map[string]string)
	}
	f.updates[activityID] = fields
	return f.updateErr
}

type fakeAudit struct {
	mu   sync.Mutex
	recs []domain.AuditRecord
}

func (f *fakeAudit) Upsert(_ domain.Context, rec domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
}

func (f *fakePublisher) PublishDecision(_ domain.Context, activityID string, _ domain.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, activityID)
	return nil
}

func testConfig() config.Config {
	return config.Config{AppEnv: "test", DedupTTL: time.Minute, CRMWritebackOn: true}
}

func TestProcess_InvalidBody(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)

	res := svc.Process(context.Background(), []byte(`[1,2,3]`))
	assert.Equal(t, domain.StatusIgnoredInvalidWebhook, res.Status)
	assert.Nil(t, res.Decision)
	assert.Zero(t, aiClient.callCount())
}

func TestProcess_PingSkipsPipeline(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	crmClient := &fakeCRM{}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), crmClient, nil, nil)

	res := svc.Process(context.Background(), []byte(`{"ActivityEventName": "ping"}`))
	assert.Equal(t, domain.StatusAcknowledged, res.Status)
	assert.Zero(t, aiClient.callCount())
	assert.Empty(t, crmClient.updates)
}

func TestProcess_CompletedAndDeduplicated(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)

	first := svc.Process(context.Background(), []byte(actionableBody))
	require.Equal(t, domain.StatusCompleted, first.Status)
	require.NotNil(t, first.Decision)
	assert.Equal(t, domain.QAStatusPass, first.Decision.Status)
	assert.False(t, first.FromCache)

	second := svc.Process(context.Background(), []byte(actionableBody))
	require.Equal(t, domain.StatusCompleted, second.Status)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Decision.Status, second.Decision.Status)
	assert.Equal(t, 1, aiClient.callCount(), "redelivery within the TTL must not re-invoke the decision service")
}

func TestProcess_ConcurrentRedeliveriesSingleDecision(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)

	var wg sync.WaitGroup
	results := make([]usecase.IntakeResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Process(context.Background(), []byte(actionableBody))
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		assert.Equal(t, domain.StatusCompleted, res.Status)
	}
	assert.Equal(t, 1, aiClient.callCount())
}

func TestProcess_FailureNotCached(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{err: domain.ErrUpstreamTimeout}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)

	res := svc.Process(context.Background(), []byte(actionableBody))
	require.Equal(t, domain.StatusFailed, res.Status)
	require.NotNil(t, res.Decision)
	assert.Equal(t, domain.QAStatusReview, res.Decision.Status)
	assert.Equal(t, domain.RiskMedium, res.Decision.RiskLevel)
	assert.Equal(t, "UPSTREAM_TIMEOUT", res.ErrType)

	// The decision service recovers; the retry must reach it.
	aiClient.mu.Lock()
	aiClient.err = nil
	aiClient.reply = passReply
	aiClient.mu.Unlock()

	res = svc.Process(context.Background(), []byte(actionableBody))
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, aiClient.callCount())
}

func TestProcess_ErrTypeMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrUpstreamTimeout, "UPSTREAM_TIMEOUT"},
		{context.DeadlineExceeded, "UPSTREAM_TIMEOUT"},
		{domain.ErrUpstreamFailure, "UPSTREAM_ERROR"},
		{domain.ErrSchemaInvalid, "SCHEMA_INVALID"},
		{errors.New("boom"), "INTERNAL"},
	}
	for _, c := range cases {
		aiClient := &fakeAI{err: c.err}
		svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)
		res := svc.Process(context.Background(), []byte(actionableBody))
		assert.Equal(t, domain.StatusFailed, res.Status)
		assert.Equal(t, c.want, res.ErrType, "err=%v", c.err)
	}
}

func TestProcess_SinksReceiveDecision(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	crmClient := &fakeCRM{}
	audit := &fakeAudit{}
	pub := &fakePublisher{}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), crmClient, audit, pub)

	res := svc.Process(context.Background(), []byte(actionableBody))
	require.Equal(t, domain.StatusCompleted, res.Status)

	require.Contains(t, crmClient.updates, "act-100")
	fields := crmClient.updates["act-100"]
	assert.Equal(t, "PASS", fields["mx_QA_Status"])
	assert.Equal(t, "LOW", fields["mx_QA_Risk_Level"])
	assert.Equal(t, "Complete application", fields["mx_QA_Key_Findings"])

	require.Len(t, audit.recs, 1)
	assert.Equal(t, "act-100", audit.recs[0].ActivityID)
	assert.NotEmpty(t, audit.recs[0].ID)
	assert.Equal(t, []string{"act-100"}, pub.published)

	// A cache hit answers from the stored decision without re-running sinks.
	_ = svc.Process(context.Background(), []byte(actionableBody))
	assert.Len(t, audit.recs, 1)
	assert.Equal(t, []string{"act-100"}, pub.published)
}

func TestProcess_LeadEnrichment(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	crmClient := &fakeCRM{leadFields: map[string]any{"EmailAddress": "found@example.com"}}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), crmClient, nil, nil)

	body := `{
		"ActivityEventName": "IntakeApplication",
		"ProspectActivityId": "act-200",
		"RelatedProspectId": "lead-5",
		"Current": {"mx_Program": "MBA", "mx_Citizenship": "International", "mx_College_GPA": "3.1"}
	}`
	res := svc.Process(context.Background(), []byte(body))
	require.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, []string{"lead-5"}, crmClient.gotLeadIDs)
	require.Len(t, aiClient.reports, 1)
	assert.Contains(t, aiClient.reports[0], "found@example.com")
}

func TestProcess_LeadEnrichmentFailureDegrades(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	crmClient := &fakeCRM{leadErr: errors.New("crm down")}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), crmClient, nil, nil)

	body := `{
		"ActivityEventName": "IntakeApplication",
		"ProspectActivityId": "act-201",
		"RelatedProspectId": "lead-6",
		"Current": {"mx_Program": "MBA", "mx_Citizenship": "International", "mx_College_GPA": "3.1"}
	}`
	res := svc.Process(context.Background(), []byte(body))
	assert.Equal(t, domain.StatusCompleted, res.Status)
	require.Len(t, aiClient.reports, 1)
	assert.Contains(t, aiClient.reports[0], "Email: "+domain.NotProvided)
}

func TestProcess_NoActivityIDStillCompletes(t *testing.T) {
	t.Parallel()
	aiClient := &fakeAI{reply: passReply}
	svc := usecase.NewIntakeService(testConfig(), config.DefaultPolicy(), aiClient, cache.NewMemory(), nil, nil, nil)

	body := `{"Data": {"mx_Custom_5": "BSc CS", "mx_Custom_1": "US Citizen", "Country": "United States"}}`
	res := svc.Process(context.Background(), []byte(body))
	require.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 1, aiClient.callCount())

	// Without an activity id there is no dedup key; a redelivery runs again.
	res = svc.Process(context.Background(), []byte(body))
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 2, aiClient.callCount())
}
