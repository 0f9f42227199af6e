package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fluxo-ledger/fluxo/internal/classify"
	"github.com/fluxo-ledger/fluxo/internal/dedupe"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/pipeline"
	"github.com/fluxo-ledger/fluxo/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := testutil.SetupTestDB(t)
	testutil.SeedRules(t, store, model.ClassificationRule{
		Priority: 10,
		Patterns: []string{"uber"},
		Group:    "Transporte",
		Subgroup: "Aplicativo",
		IsActive: true,
	})

	p := pipeline.New(store, classify.DefaultConfig(), dedupe.DefaultConfig())
	server := httptest.NewServer(NewServer(p).Router())

	t.Cleanup(func() {
		server.Close()
		p.Close()
	})

	return server
}

func stageBody() []byte {
	return []byte(`{
		"meta": {"institution": "Nubank", "invoice_month": "2024-03"},
		"records": [
			{"date": "2024-03-04T00:00:00Z", "description": "UBER *TRIP SAO PAULO", "amount": "-23.50"},
			{"date": "2024-03-05T00:00:00Z", "description": "PADARIA ESTRELA", "amount": "-18.00"}
		]
	}`)
}

func stageSession(t *testing.T, server *httptest.Server) string {
	t.Helper()

	resp, err := http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader(stageBody()))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func TestStageEndpoint(t *testing.T) {
	server := setupServer(t)
	sessionID := stageSession(t, server)

	resp, err := http.Get(fmt.Sprintf("%s/v1/sessions/%s", server.URL, sessionID))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var preview pipeline.Preview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&preview))

	require.Len(t, preview.Records, 2)
	assert.Equal(t, 2, preview.TotalRecords)
	assert.Equal(t, "Transporte", preview.Records[0].Group)
	assert.Equal(t, model.OriginRule, preview.Records[0].ClassificationOrigin)
	assert.Equal(t, model.DuplicateNone, preview.Records[0].DuplicateStatus)
}

func TestStageEndpoint_Validation(t *testing.T) {
	server := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing institution", `{"meta": {"invoice_month": "2024-03"}, "records": [{"date": "2024-03-04T00:00:00Z", "description": "X", "amount": "-1"}]}`},
		{"no records", `{"meta": {"institution": "Nubank", "invoice_month": "2024-03"}, "records": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/v1/sessions", "application/json", bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCommitEndpoint(t *testing.T) {
	server := setupServer(t)
	sessionID := stageSession(t, server)

	resp, err := http.Post(
		fmt.Sprintf("%s/v1/sessions/%s/commit", server.URL, sessionID),
		"application/json",
		bytes.NewReader([]byte(`{"confirm_all": true}`)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result model.CommitResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Inserted)

	// The session is consumed by the commit.
	resp, err = http.Get(fmt.Sprintf("%s/v1/sessions/%s", server.URL, sessionID))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommitEndpoint_RequiresSelection(t *testing.T) {
	server := setupServer(t)
	sessionID := stageSession(t, server)

	resp, err := http.Post(
		fmt.Sprintf("%s/v1/sessions/%s/commit", server.URL, sessionID),
		"application/json",
		bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpoint(t *testing.T) {
	server := setupServer(t)
	sessionID := stageSession(t, server)

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/v1/sessions/%s", server.URL, sessionID), http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(fmt.Sprintf("%s/v1/sessions/%s", server.URL, sessionID))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewEndpoint_UnknownSession(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get(server.URL + "/v1/sessions/unknown")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "expired")
}
