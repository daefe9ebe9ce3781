/*
oracle.go - HTTP client for the external simulation oracle

PURPOSE:
  Implements payline.Simulator against the accounting system's simulate
  endpoint. The engine treats simulation as an opaque synchronous call;
  this client is the one place that knows it happens over HTTP.

CONTRACT:
  POST {base}/simulate with the candidate lines and the period to
  simulate. A 200 carries the month-by-month simulated disbursements;
  anything else is an oracle failure, which the cross-check wraps as
  SimulationFailed. No retries here - retry policy belongs to whoever
  reruns the whole change operation.
*/
package benefit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/warp/payline-engine/payline"
)

// HTTPOracle calls the accounting system's simulation endpoint.
type HTTPOracle struct {
	client *resty.Client
}

func NewHTTPOracle(baseURL string) *HTTPOracle {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second)
	return &HTTPOracle{client: client}
}

type simulateRequest struct {
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	Lines       []simulateLine `json:"lines"`
}

type simulateLine struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Amount      string `json:"amount"`
	PreviousID  string `json:"previous_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
}

type simulateResponse struct {
	Months []simulatedMonth `json:"months"`
}

type simulatedMonth struct {
	Month       string `json:"month"` // YYYY-MM
	Amount      string `json:"amount"`
	Overpayment string `json:"overpayment"`
}

// Simulate implements payline.Simulator.
func (o *HTTPOracle) Simulate(ctx context.Context, lines []payline.PaymentLine, period payline.Period) (payline.SimulationResult, error) {
	req := simulateRequest{
		PeriodStart: period.Start.String(),
		PeriodEnd:   period.End.String(),
	}
	for _, l := range lines {
		req.Lines = append(req.Lines, simulateLine{
			ID:          string(l.ID),
			Kind:        l.Kind.String(),
			PeriodStart: l.Period.Start.String(),
			PeriodEnd:   l.Period.End.String(),
			Amount:      l.Amount.String(),
			PreviousID:  string(l.PreviousID),
			TargetID:    string(l.TargetID),
		})
	}

	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/simulate")
	if err != nil {
		return payline.SimulationResult{}, fmt.Errorf("simulate request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return payline.SimulationResult{}, fmt.Errorf("simulate request status: %d", resp.StatusCode())
	}

	var body simulateResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return payline.SimulationResult{}, fmt.Errorf("simulate response malformed: %w", err)
	}

	var result payline.SimulationResult
	for _, m := range body.Months {
		first, err := payline.ParseDate(m.Month + "-01")
		if err != nil {
			return payline.SimulationResult{}, fmt.Errorf("simulate response month %q malformed: %w", m.Month, err)
		}
		amount, err := payline.ParseAmount(m.Amount)
		if err != nil {
			return payline.SimulationResult{}, fmt.Errorf("simulate response amount for %s malformed: %w", m.Month, err)
		}
		overpayment, err := payline.ParseAmount(m.Overpayment)
		if err != nil {
			return payline.SimulationResult{}, fmt.Errorf("simulate response overpayment for %s malformed: %w", m.Month, err)
		}
		result.Months = append(result.Months, payline.SimulatedMonth{
			Month:       payline.MonthOf(first),
			Amount:      amount,
			Overpayment: overpayment,
		})
	}
	return result, nil
}
