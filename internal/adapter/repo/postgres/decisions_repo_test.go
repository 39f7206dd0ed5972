package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

type fakePool struct {
	execSQL  []string
	execArgs [][]any
	execTag  pgconn.CommandTag
	execErr  error
	row      pgx.Row
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return f.execTag, f.execErr
}

func (f *fakePool) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch v := r.values[i].(type) {
		case string:
			*d.(*string) = v
		case time.Time:
			*d.(*time.Time) = v
		}
	}
	return nil
}

func TestDecisionRepo_Upsert(t *testing.T) {
	t.Parallel()
	pool := &fakePool{}
	repo := NewDecisionRepo(pool)

	rec := domain.AuditRecord{
		ID:         "id-1",
		ActivityID: "act-1",
		LeadID:     "lead-1",
		Decision: domain.Decision{
			Status:      "PASS",
			RiskLevel:   "LOW",
			Summary:     "Complete.",
			KeyFindings: []string{"finding one", "finding two"},
			Concerns:    []string{},
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Upsert(context.Background(), rec))

	require.Len(t, pool.execSQL, 1)
	assert.Contains(t, pool.execSQL[0], "ON CONFLICT (activity_id)")
	args := pool.execArgs[0]
	require.Len(t, args, 10)
	assert.Equal(t, "act-1", args[1])
	assert.Equal(t, "finding one"+listSep+"finding two", args[6])
	assert.Equal(t, "", args[7], "empty list stores as empty string")
}

func TestDecisionRepo_UpsertError(t *testing.T) {
	t.Parallel()
	pool := &fakePool{execErr: errors.New("connection refused")}
	repo := NewDecisionRepo(pool)
	err := repo.Upsert(context.Background(), domain.AuditRecord{ActivityID: "act-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=decision.upsert")
}

func TestDecisionRepo_GetByActivityID(t *testing.T) {
	t.Parallel()
	pool := &fakePool{row: fakeRow{values: []any{
		"id-1", "act-1", "lead-1", "PASS", "LOW", "Complete.",
		"finding one" + listSep + "finding two", "", "Advice.", time.Time{},
	}}}
	repo := NewDecisionRepo(pool)

	rec, err := repo.GetByActivityID(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, "act-1", rec.ActivityID)
	assert.Equal(t, []string{"finding one", "finding two"}, rec.Decision.KeyFindings)
	assert.Equal(t, []string{}, rec.Decision.Concerns)
}

func TestDecisionRepo_GetByActivityID_NotFound(t *testing.T) {
	t.Parallel()
	pool := &fakePool{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewDecisionRepo(pool)
	_, err := repo.GetByActivityID(context.Background(), "missing")
	require.Error(t, err)
}

func Test_splitList_RoundTrip(t *testing.T) {
	t.Parallel()
	lists := [][]string{
		{},
		{"one"},
		{"one", "two", "three"},
		{"has; semicolons, and commas", "second"},
	}
	for _, l := range lists {
		joined := strings.Join(l, listSep)
		assert.Equal(t, l, splitList(joined))
	}
}

func TestCleanupService_CleanupOldDecisions(t *testing.T) {
	t.Parallel()
	pool := &fakePool{execTag: pgconn.NewCommandTag("DELETE 3")}
	svc := NewCleanupService(pool, 30)

	require.NoError(t, svc.CleanupOldDecisions(context.Background()))
	require.Len(t, pool.execSQL, 1)
	assert.Contains(t, pool.execSQL[0], "DELETE FROM qa_decisions")

	cutoff, ok := pool.execArgs[0][0].(time.Time)
	require.True(t, ok)
	wantCutoff := time.Now().AddDate(0, 0, -30)
	assert.WithinDuration(t, wantCutoff, cutoff, time.Minute)
}

func TestNewCleanupService_DefaultsRetention(t *testing.T) {
	t.Parallel()
	svc := NewCleanupService(&fakePool{}, 0)
	assert.Equal(t, 90, svc.RetentionDays)
}
