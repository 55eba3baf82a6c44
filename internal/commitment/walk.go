// Package commitment runs the commitment lifecycle: consuming open
// commitments when orders arrive, listing the pending pipeline, and expiring
// or cancelling commitments that will never convert.
package commitment

import "github.com/sells-group/fieldops/internal/model"

// Allocation is the quantity one commitment absorbs from an order.
type Allocation struct {
	Commitment model.Commitment
	Take       int
	Converted  int
	Status     model.CommitmentStatus
	Kind       string
}

// Match is the outcome of walking an order across open commitments.
type Match struct {
	Allocations []Allocation
	Consumed    int
	Unmatched   int
}

// Walk matches orderQty against open commitments sorted by expected order
// date ascending. Commitments due on or before today are consumed backward;
// those due up to forwardUntil are consumed forward. The walk stops at the
// first commitment beyond forwardUntil or once the order is exhausted.
// Walk does not mutate its input.
func Walk(open []model.Commitment, orderQty int, today, forwardUntil string) Match {
	left := orderQty
	var m Match

	for _, c := range open {
		if left <= 0 {
			break
		}
		if c.ExpectedOrderDate > forwardUntil {
			break
		}
		remaining := c.Remaining()
		if remaining == 0 {
			continue
		}

		kind := model.ConsumptionForward
		if c.ExpectedOrderDate <= today {
			kind = model.ConsumptionBackward
		}

		take := min(left, remaining)
		converted := c.ConvertedQuantity + take
		m.Allocations = append(m.Allocations, Allocation{
			Commitment: c,
			Take:       take,
			Converted:  converted,
			Status:     model.StatusFor(c.QuantityPromised, converted),
			Kind:       kind,
		})
		left -= take
	}

	m.Consumed = orderQty - max(left, 0)
	m.Unmatched = orderQty - m.Consumed
	return m
}

// Details renders the allocations as consumption detail records.
func (m Match) Details() []model.ConsumptionDetail {
	details := make([]model.ConsumptionDetail, 0, len(m.Allocations))
	for _, a := range m.Allocations {
		details = append(details, model.ConsumptionDetail{
			CommitmentID: a.Commitment.ID,
			ExpectedDate: a.Commitment.ExpectedOrderDate,
			Consumed:     a.Take,
			Converted:    a.Converted,
			Status:       a.Status,
			Kind:         a.Kind,
		})
	}
	return details
}
