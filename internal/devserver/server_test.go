package devserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/initiativehq/initiativectl/internal/client"
	"github.com/initiativehq/initiativectl/internal/devserver"
	"github.com/initiativehq/initiativectl/internal/poller"
	"github.com/initiativehq/initiativectl/pkg/models"
)

const testAPIKey = "test-api-key"

func setup(t *testing.T) *client.HTTPClient {
	t.Helper()

	srv := devserver.New(devserver.Options{
		APIKey:  testAPIKey,
		JobStep: 5 * time.Millisecond,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return client.NewHTTPClient(ts.URL, testAPIKey, 5*time.Second)
}

// watch polls jobID against c until a terminal callback fires and returns
// the outcome.
func watch(t *testing.T, c *client.HTTPClient, jobID string) (json.RawMessage, error) {
	t.Helper()

	var (
		result json.RawMessage
		outErr error
	)
	s := poller.New(c.GetJob).Watch(jobID, poller.Config{
		Interval:    10 * time.Millisecond,
		MaxDuration: 5 * time.Second,
		MaxRetries:  3,
		OnComplete:  func(r json.RawMessage) { result = r },
		OnError:     func(err error) { outErr = err },
	})

	select {
	case <-s.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("job watch did not finish")
	}
	return result, outErr
}

func TestAuth_RejectsMissingAndWrongCredentials(t *testing.T) {
	srv := devserver.New(devserver.Options{APIKey: testAPIKey})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/initiatives", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong-key")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin_TokenGrantsAccess(t *testing.T) {
	srv := devserver.New(devserver.Options{APIKey: testAPIKey})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	c := client.NewHTTPClient(ts.URL, "", 5*time.Second)
	session, err := c.Login(context.Background(), "pm@example.com", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "pm@example.com", session.User.Email)

	// Unauthenticated call fails, then succeeds with the session token.
	_, _, err = c.ListInitiatives(context.Background(), 1, 10)
	require.ErrorIs(t, err, client.ErrUnauthorized)

	c.SetToken(session.Token)
	_, _, err = c.ListInitiatives(context.Background(), 1, 10)
	require.NoError(t, err)
}

func TestInitiativeCRUD(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	created, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{
		Title:       "Mobile checkout revamp",
		Description: "Reduce cart abandonment",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InitiativeStatusDraft, created.Status)

	got, err := c.GetInitiative(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)

	newTitle := "Mobile checkout revamp v2"
	updated, err := c.UpdateInitiative(ctx, created.ID, client.UpdateInitiativeRequest{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, updated.Title)

	initiatives, meta, err := c.ListInitiatives(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, initiatives, 1)
	assert.Equal(t, 1, meta.Total)
	assert.False(t, meta.HasNext)

	require.NoError(t, c.DeleteInitiative(ctx, created.ID))
	_, err = c.GetInitiative(ctx, created.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestListInitiatives_Pagination(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "Initiative"})
		require.NoError(t, err)
	}

	first, meta, err := c.ListInitiatives(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, 5, meta.Total)
	assert.True(t, meta.HasNext)

	last, meta, err := c.ListInitiatives(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, last, 1)
	assert.False(t, meta.HasNext)
}

func TestQuestionGeneration_EndToEnd(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "Self-serve onboarding"})
	require.NoError(t, err)

	job, err := c.GenerateQuestions(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeQuestionGeneration, job.Type)
	assert.Equal(t, models.JobStatusPending, job.Status)

	result, watchErr := watch(t, c, job.ID)
	require.NoError(t, watchErr)

	var payload struct {
		QuestionCount int `json:"question_count"`
	}
	require.NoError(t, json.Unmarshal(result, &payload))
	assert.Equal(t, 8, payload.QuestionCount)

	questions, err := c.ListQuestions(ctx, in.ID)
	require.NoError(t, err)
	assert.Len(t, questions, 8)

	// Generation moves the initiative into discovery.
	got, err := c.GetInitiative(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InitiativeStatusDiscovery, got.Status)
}

func TestAnswerQuestionsAndReadiness(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "Self-serve onboarding"})
	require.NoError(t, err)

	job, err := c.GenerateQuestions(ctx, in.ID)
	require.NoError(t, err)
	_, watchErr := watch(t, c, job.ID)
	require.NoError(t, watchErr)

	questions, err := c.ListQuestions(ctx, in.ID)
	require.NoError(t, err)
	require.Len(t, questions, 8)

	// Nothing answered yet.
	readiness, err := c.EvaluateReadiness(ctx, in.ID)
	require.NoError(t, err)
	assert.False(t, readiness.Ready)
	assert.Zero(t, readiness.Percent)

	for _, q := range questions {
		answered, err := c.AnswerQuestion(ctx, in.ID, q.ID, "Because discovery said so")
		require.NoError(t, err)
		require.NotNil(t, answered.Answer)
	}

	readiness, err = c.EvaluateReadiness(ctx, in.ID)
	require.NoError(t, err)
	assert.True(t, readiness.Ready)
	assert.Equal(t, 100, readiness.Percent)
	require.NotEmpty(t, readiness.Categories)
	for _, cat := range readiness.Categories {
		assert.Equal(t, cat.Total, cat.Answered)
	}
}

func TestMRDGeneration_EndToEnd(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{
		Title:       "Mobile checkout revamp",
		Description: "Reduce cart abandonment",
	})
	require.NoError(t, err)

	_, err = c.GetMRD(ctx, in.ID)
	require.ErrorIs(t, err, client.ErrNotFound)

	job, err := c.GenerateMRD(ctx, in.ID)
	require.NoError(t, err)
	result, watchErr := watch(t, c, job.ID)
	require.NoError(t, watchErr)

	var payload struct {
		MRDID   string `json:"mrd_id"`
		Version int    `json:"version"`
	}
	require.NoError(t, json.Unmarshal(result, &payload))
	assert.Equal(t, 1, payload.Version)

	mrd, err := c.GetMRD(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, mrd.Version)
	assert.Contains(t, mrd.Content, "# Mobile checkout revamp")

	// Regeneration bumps the version.
	job, err = c.GenerateMRD(ctx, in.ID)
	require.NoError(t, err)
	_, watchErr = watch(t, c, job.ID)
	require.NoError(t, watchErr)

	mrd, err = c.GetMRD(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mrd.Version)
}

func TestScoreCalculation_EndToEnd(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "Self-serve onboarding"})
	require.NoError(t, err)

	job, err := c.CalculateScore(ctx, in.ID)
	require.NoError(t, err)
	_, watchErr := watch(t, c, job.ID)
	require.NoError(t, watchErr)

	score, err := c.GetScore(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, score.InitiativeID)
	assert.Positive(t, score.RICE.Total)
	assert.Positive(t, score.FDV.Total)

	got, err := c.GetInitiative(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InitiativeStatusScored, got.Status)
}

func TestJobFailure_SurfacesBackendMessage(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "FAIL: doomed initiative"})
	require.NoError(t, err)

	job, err := c.GenerateQuestions(ctx, in.ID)
	require.NoError(t, err)

	_, watchErr := watch(t, c, job.ID)
	require.Error(t, watchErr)
	assert.ErrorIs(t, watchErr, poller.ErrJobFailed)
	assert.Contains(t, watchErr.Error(), "doomed initiative")
}

func TestGetJob_ProgressAdvances(t *testing.T) {
	c := setup(t)
	ctx := context.Background()

	in, err := c.CreateInitiative(ctx, client.CreateInitiativeRequest{Title: "Self-serve onboarding"})
	require.NoError(t, err)

	job, err := c.GenerateMRD(ctx, in.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := c.GetJob(ctx, job.ID)
		return err == nil && j.Terminal()
	}, 5*time.Second, 5*time.Millisecond)

	j, err := c.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	require.NotNil(t, j.ProgressPercent)
	assert.Equal(t, 100, *j.ProgressPercent)
	assert.NotEmpty(t, j.ResultData)
}

func TestGetJob_Unknown(t *testing.T) {
	c := setup(t)

	_, err := c.GetJob(context.Background(), "no-such-job")
	assert.ErrorIs(t, err, client.ErrNotFound)
}
