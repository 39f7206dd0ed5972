package crm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/intake-qa-agent/internal/adapter/crm"
	"github.com/fairyhunter13/intake-qa-agent/internal/config"
	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

func crmConfig(base string) config.Config {
	return config.Config{
		AppEnv:       "test",
		CRMAPIBase:   base,
		CRMAccessKey: "ak-1",
		CRMSecretKey: "sk-1",
		CRMTimeout:   5 * time.Second,
	}
}

func TestGetLead_ArrayReply(t *testing.T) {
	t.Parallel()
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/LeadManagement.svc/Leads.GetById", r.URL.Path)
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`[{"FirstName": "Ada", "EmailAddress": "ada@example.com"}]`))
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	fields, err := c.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", fields["FirstName"])
	assert.Equal(t, "ada@example.com", fields["EmailAddress"])

	assert.Equal(t, []string{"lead-1"}, gotQuery["id"])
	assert.Equal(t, []string{"ak-1"}, gotQuery["accessKey"])
	assert.Equal(t, []string{"sk-1"}, gotQuery["secretKey"])
}

func TestGetLead_ObjectReply(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"FirstName": "Grace"}`))
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	fields, err := c.GetLead(context.Background(), "lead-2")
	require.NoError(t, err)
	assert.Equal(t, "Grace", fields["FirstName"])
}

func TestGetLead_EmptyArrayIsNotFound(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	_, err := c.GetLead(context.Background(), "lead-3")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetLead_4xxIsPermanent(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	_, err := c.GetLead(context.Background(), "lead-4")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetLead_RetriesAfter5xx(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"FirstName": "Ada"}]`))
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	fields, err := c.GetLead(context.Background(), "lead-5")
	require.NoError(t, err)
	assert.Equal(t, "Ada", fields["FirstName"])
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestUpdateActivityFields(t *testing.T) {
	t.Parallel()
	var gotQuery map[string][]string
	var gotPayload struct {
		Fields []struct {
			SchemaName string `json:"SchemaName"`
			Value      string `json:"Value"`
		} `json:"Fields"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/ProspectActivity.svc/Activity.Update", r.URL.Path)
		gotQuery = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"Status": "Success"}`))
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	err := c.UpdateActivityFields(context.Background(), "act-1", map[string]string{
		"mx_QA_Status":     "PASS",
		"mx_QA_Risk_Level": "LOW",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"act-1"}, gotQuery["activityId"])
	require.Len(t, gotPayload.Fields, 2)
	seen := map[string]string{}
	for _, f := range gotPayload.Fields {
		seen[f.SchemaName] = f.Value
	}
	assert.Equal(t, "PASS", seen["mx_QA_Status"])
	assert.Equal(t, "LOW", seen["mx_QA_Risk_Level"])
}

func TestUpdateActivityFields_4xx(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := crm.New(crmConfig(ts.URL))
	err := c.UpdateActivityFields(context.Background(), "act-2", map[string]string{"mx_QA_Status": "PASS"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamFailure)
}
