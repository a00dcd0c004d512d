package decision

import (
	"math"
	"sort"
)

// EconomicParams are the scalar cost inputs the NRV Calculator blends
// against an option's OutcomeEstimate. These are tuned over
// time by the learning loop, not derived.
type EconomicParams struct {
	Volume              float64
	AvgTicket           float64
	CostPerIntervention float64
	LatencyPenaltyPerMs float64
}

// DefaultEconomicParams returns representative values for a mid-size UPI
// payment flow; callers override from config.
func DefaultEconomicParams() EconomicParams {
	return EconomicParams{
		Volume:              1000,
		AvgTicket:            500,
		CostPerIntervention:  10,
		LatencyPenaltyPerMs:  0.01,
	}
}

// NRV computes the net recovery value of a single option:
//
//	NRV = Δsuccess · ⌊volume·blast_radius⌋ · avg_ticket
//	      − (cost_per_intervention + |Δcost|)
//	      − |Δlatency| · latency_penalty_per_ms
func NRV(opt InterventionOption, p EconomicParams) float64 {
	affected := math.Floor(p.Volume * opt.BlastRadius)
	gain := opt.Estimate.DeltaSuccess * affected * p.AvgTicket
	cost := p.CostPerIntervention + math.Abs(opt.Estimate.DeltaCost)
	latencyCost := math.Abs(opt.Estimate.DeltaLatency) * p.LatencyPenaltyPerMs
	return gain - cost - latencyCost
}

// ShouldAct reports whether an NRV value justifies acting.
func ShouldAct(nrv float64) bool {
	return nrv > 0
}

// ScoredOption pairs an option with its computed NRV.
type ScoredOption struct {
	Option InterventionOption
	NRV    float64
}

// RankByNRV scores every option and returns them sorted by descending NRV.
func RankByNRV(options []InterventionOption, p EconomicParams) []ScoredOption {
	scored := make([]ScoredOption, 0, len(options))
	for _, opt := range options {
		scored = append(scored, ScoredOption{Option: opt, NRV: NRV(opt, p)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].NRV > scored[j].NRV
	})
	return scored
}
