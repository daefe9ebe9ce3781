package api

import (
	"time"

	"github.com/warp/payline-engine/benefit"
	"github.com/warp/payline-engine/payline"
)

// =============================================================================
// REQUEST / RESPONSE DTOs
// =============================================================================

type ChangeRequestDTO struct {
	Kind string `json:"kind"` // grant | stop | resume | write-off

	// Grant only.
	PeriodStart string `json:"period_start,omitempty"` // YYYY-MM-DD
	PeriodEnd   string `json:"period_end,omitempty"`
	Amount      string `json:"amount,omitempty"`

	// Stop / resume / write-off only.
	From string `json:"from,omitempty"`

	DryRun bool `json:"dry_run,omitempty"`
}

type PaymentLineDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	CreatedAt   string `json:"created_at"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Amount      string `json:"amount"`
	PreviousID  string `json:"previous_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
}

type TimelineMonthDTO struct {
	Month      string `json:"month"` // YYYY-MM
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	LineID     string `json:"line_id"`
	Terminated bool   `json:"terminated,omitempty"`
}

type ChangeResultDTO struct {
	Committed bool               `json:"committed"`
	Lines     []PaymentLineDTO   `json:"lines"`
	Timeline  []TimelineMonthDTO `json:"timeline"`
}

type DiscrepancyDTO struct {
	Kind            string `json:"kind"`
	Month           string `json:"month"`
	TimelineKind    string `json:"timeline_kind,omitempty"`
	TimelineAmount  string `json:"timeline_amount,omitempty"`
	SimulatedAmount string `json:"simulated_amount,omitempty"`
	Overpayment     string `json:"overpayment,omitempty"`
}

type ErrorResponse struct {
	Error         string           `json:"error"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toLineDTO(l payline.PaymentLine) PaymentLineDTO {
	return PaymentLineDTO{
		ID:          string(l.ID),
		Kind:        l.Kind.String(),
		CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339Nano),
		PeriodStart: l.Period.Start.String(),
		PeriodEnd:   l.Period.End.String(),
		Amount:      l.Amount.String(),
		PreviousID:  string(l.PreviousID),
		TargetID:    string(l.TargetID),
	}
}

func toLineDTOs(lines []payline.PaymentLine) []PaymentLineDTO {
	out := make([]PaymentLineDTO, 0, len(lines))
	for _, l := range lines {
		out = append(out, toLineDTO(l))
	}
	return out
}

func toTimelineDTO(tl *payline.Timeline) []TimelineMonthDTO {
	var out []TimelineMonthDTO
	for _, m := range tl.Months() {
		entry, _ := tl.EntryForMonth(m)
		out = append(out, TimelineMonthDTO{
			Month:      m.String(),
			Kind:       entry.Kind.String(),
			Amount:     entry.Amount.String(),
			LineID:     string(entry.Line.ID),
			Terminated: entry.Terminated,
		})
	}
	return out
}

func toDiscrepancyDTOs(ds []payline.Discrepancy) []DiscrepancyDTO {
	out := make([]DiscrepancyDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, DiscrepancyDTO{
			Kind:            d.Kind.String(),
			Month:           d.Month.String(),
			TimelineKind:    d.TimelineKind.String(),
			TimelineAmount:  d.TimelineAmount.String(),
			SimulatedAmount: d.SimulatedAmount.String(),
			Overpayment:     d.Overpayment.String(),
		})
	}
	return out
}

// toChangeRequest validates and converts the wire request.
func toChangeRequest(caseID payline.CaseID, dto ChangeRequestDTO) (benefit.ChangeRequest, error) {
	req := benefit.ChangeRequest{
		CaseID: caseID,
		Kind:   benefit.ChangeKind(dto.Kind),
		DryRun: dto.DryRun,
	}
	if dto.PeriodStart != "" {
		start, err := payline.ParseDate(dto.PeriodStart)
		if err != nil {
			return benefit.ChangeRequest{}, err
		}
		req.Period.Start = start
	}
	if dto.PeriodEnd != "" {
		end, err := payline.ParseDate(dto.PeriodEnd)
		if err != nil {
			return benefit.ChangeRequest{}, err
		}
		req.Period.End = end
	}
	if dto.Amount != "" {
		amount, err := payline.ParseAmount(dto.Amount)
		if err != nil {
			return benefit.ChangeRequest{}, err
		}
		req.Amount = amount
	}
	if dto.From != "" {
		from, err := payline.ParseDate(dto.From)
		if err != nil {
			return benefit.ChangeRequest{}, err
		}
		req.From = from
	}
	return req, nil
}
