package domain

type KPI struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"`
}

// KPIEntry is one logged value in a KPI's history.
type KPIEntry struct {
	Value     float64   `json:"value"`
	Timestamp Timestamp `json:"timestamp"`
}

// ProgressPct is current/target as a percentage, or 0 when no positive
// target is set. It is not clamped.
func (k KPI) ProgressPct() float64 {
	if k.TargetValue <= 0 {
		return 0
	}
	return k.CurrentValue / k.TargetValue * 100
}

// DisplayPct is ProgressPct clamped to [0, 100] for progress bars.
func (k KPI) DisplayPct() float64 {
	return clampPct(k.ProgressPct())
}

type Budget struct {
	ID          int       `json:"id"`
	ActivityID  int       `json:"activity_id,omitempty"`
	TotalAmount float64   `json:"total_amount"`
	Expenses    []Expense `json:"expenses"`
}

type Expense struct {
	ID          int       `json:"id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	Timestamp   Timestamp `json:"timestamp"`
}

func clampPct(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
