package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payline-engine/api"
	"github.com/warp/payline-engine/benefit"
	"github.com/warp/payline-engine/payline"
	"github.com/warp/payline-engine/payline/store"
)

// echoSimulator agrees with whatever the candidate lines prescribe.
var echoSimulator = payline.SimulatorFunc(
	func(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
		tl, err := payline.Project(lines)
		if err != nil {
			return payline.SimulationResult{}, err
		}
		var result payline.SimulationResult
		for _, m := range period.Months() {
			if entry, ok := tl.EntryForMonth(m); ok {
				result.Months = append(result.Months, payline.SimulatedMonth{
					Month:       m,
					Amount:      entry.Amount,
					Overpayment: payline.ZeroAmount(),
				})
			}
		}
		return result, nil
	})

func newTestServer(t *testing.T, sim payline.Simulator) (*httptest.Server, *benefit.Service) {
	t.Helper()
	svc := benefit.NewService(store.NewMemory(), sim, nil)
	router := api.NewRouter(api.NewHandler(svc, nil), nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, svc
}

func postChange(t *testing.T, server *httptest.Server, caseID string, body api.ChangeRequestDTO) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/api/cases/"+caseID+"/changes", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestAPI_GrantThenReadBack(t *testing.T) {
	server, _ := newTestServer(t, echoSimulator)

	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{
		Kind:        "grant",
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-12-31",
		Amount:      "1000",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.ChangeResultDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Committed)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "new", result.Lines[0].Kind)
	assert.Len(t, result.Timeline, 12)

	// History and timeline endpoints reflect the committed change.
	linesResp, err := http.Get(server.URL + "/api/cases/case-1/lines")
	require.NoError(t, err)
	defer linesResp.Body.Close()
	require.Equal(t, http.StatusOK, linesResp.StatusCode)
	var lines []api.PaymentLineDTO
	require.NoError(t, json.NewDecoder(linesResp.Body).Decode(&lines))
	assert.Len(t, lines, 1)

	tlResp, err := http.Get(server.URL + "/api/cases/case-1/timeline")
	require.NoError(t, err)
	defer tlResp.Body.Close()
	var months []api.TimelineMonthDTO
	require.NoError(t, json.NewDecoder(tlResp.Body).Decode(&months))
	require.Len(t, months, 12)
	assert.Equal(t, "2024-01", months[0].Month)
	assert.Equal(t, "1000", months[0].Amount)
}

func TestAPI_CrossCheckFailureReturns409WithDiscrepancies(t *testing.T) {
	server, svc := newTestServer(t, echoSimulator)

	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{
		Kind:        "grant",
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-12-31",
		Amount:      "1000",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Swap in an oracle that claims July still pays out after the stop.
	svc.Checker = payline.NewCrossChecker(payline.SimulatorFunc(
		func(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
			return payline.SimulationResult{
				Months: []payline.SimulatedMonth{{
					Month:       payline.Month{Year: 2024, Month: 7},
					Amount:      payline.NewAmount(1000),
					Overpayment: payline.ZeroAmount(),
				}},
			}, nil
		}))

	resp = postChange(t, server, "case-1", api.ChangeRequestDTO{Kind: "stop", From: "2024-06-01"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	require.Len(t, errResp.Discrepancies, 1)
	assert.Equal(t, "amount mismatch", errResp.Discrepancies[0].Kind)
	assert.Equal(t, "2024-07", errResp.Discrepancies[0].Month)
	assert.Equal(t, "1000", errResp.Discrepancies[0].SimulatedAmount)
}

func TestAPI_BadRequestOnUnknownKind(t *testing.T) {
	server, _ := newTestServer(t, echoSimulator)

	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{Kind: "bogus"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_BadRequestOnMalformedAmount(t *testing.T) {
	server, _ := newTestServer(t, echoSimulator)

	// "abc" must be rejected, not accepted as a zero-amount grant.
	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{
		Kind:        "grant",
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-12-31",
		Amount:      "abc",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	linesResp, err := http.Get(server.URL + "/api/cases/case-1/lines")
	require.NoError(t, err)
	defer linesResp.Body.Close()
	var lines []api.PaymentLineDTO
	require.NoError(t, json.NewDecoder(linesResp.Body).Decode(&lines))
	assert.Empty(t, lines)
}

func TestAPI_BadRequestOnMalformedDate(t *testing.T) {
	server, _ := newTestServer(t, echoSimulator)

	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{Kind: "stop", From: "June 1st"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DryRunReportsWithoutCommitting(t *testing.T) {
	server, _ := newTestServer(t, echoSimulator)

	resp := postChange(t, server, "case-1", api.ChangeRequestDTO{
		Kind:        "grant",
		PeriodStart: "2024-01-01",
		PeriodEnd:   "2024-06-30",
		Amount:      "1500",
		DryRun:      true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.ChangeResultDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Committed)

	linesResp, err := http.Get(server.URL + "/api/cases/case-1/lines")
	require.NoError(t, err)
	defer linesResp.Body.Close()
	var lines []api.PaymentLineDTO
	require.NoError(t, json.NewDecoder(linesResp.Body).Decode(&lines))
	assert.Empty(t, lines)
}
