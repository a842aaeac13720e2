// Household behavior: the yearly phase rules.
// Phases run in order: InitStep, ReceiveEarlyWarning, CheckNeighbours,
// ReceiveFlood, then EndStep (FixDamage + UpdateSentiments).
package agents

const (
	// perceptionToEvacuate is the perception at which a trusting household evacuates on warning.
	perceptionToEvacuate = 0.5
	// trustToComply is the trust needed to act on a warning.
	trustToComply = 0.5
	// majority is the neighbor share that triggers imitation.
	majority = 0.5
	// awarenessShare is the share of flooded neighbors that makes a household fully aware.
	awarenessShare = 0.25
	// severeDamage forces full awareness.
	severeDamage = 0.1
	// recoveredDamage is the damage below which a household returns home.
	recoveredDamage = 0.25

	daysPerYear = 365
)

// InitStep clears the per-year flags. Preparation lapses once a household has evacuated.
func (h *Household) InitStep() {
	h.Alerted = false
	h.ReceivedFlood = false
	h.Recovered = false
	if h.Status == StatusEvacuated {
		h.Prepared = false
	}
}

// ReceiveEarlyWarning applies a broadcast warning.
// Households at home and above the poverty line comply if they trust the
// authority: evacuating when their perception is high, preparing otherwise.
func (h *Household) ReceiveEarlyWarning(r Rules) {
	h.Alerted = true

	if h.Status != StatusNormal || h.Income < r.PovertyLine {
		return
	}
	if h.Trust < trustToComply {
		return
	}
	if h.Perception() >= perceptionToEvacuate {
		h.Status = StatusEvacuated
	} else {
		h.Prepared = true
	}
}

// CheckNeighbours imitates the majority of neighbors: preparing if more than
// half prepared and evacuating if more than half evacuated.
func (h *Household) CheckNeighbours(neighbors []View) {
	if len(neighbors) == 0 {
		return
	}

	prepared, evacuated := 0, 0
	for _, n := range neighbors {
		if n.Prepared {
			prepared++
		}
		if n.Status == StatusEvacuated {
			evacuated++
		}
	}

	total := float64(len(neighbors))
	if float64(prepared)/total > majority {
		h.Prepared = true
	}
	if float64(evacuated)/total > majority {
		h.Status = StatusEvacuated
	}
}

// ReceiveFlood applies this year's combined flood intensity (mm).
// Damage is proportional to intensity, halved for prepared households, and
// skipped entirely for prepared households below the damage threshold.
func (h *Household) ReceiveFlood(intensity float64, r Rules) {
	if !(intensity > 0) {
		h.ReceivedFlood = false
		return
	}
	h.ReceivedFlood = true

	if h.Prepared && intensity < r.DamageThreshold {
		return
	}

	newDamage := intensity / r.DamageMax
	if h.Prepared {
		newDamage /= 2
	}
	h.Damage = clamp01(h.Damage + newDamage)

	if newDamage > severeDamage {
		h.Awareness = 1
	}
	if h.Damage >= r.DisplaceThreshold {
		h.Status = StatusDisplaced
	}
}

// DisplaceByPerception is the probabilistic displacement policy, applied in
// flood years after ReceiveFlood. z is a standard normal draw supplied by the
// caller: a damaged household leaves when damage + 0.2·z falls below its
// perception.
func (h *Household) DisplaceByPerception(z float64, r Rules) {
	if h.Status == StatusDisplaced {
		return
	}
	switch {
	case h.Damage >= r.DisplaceThreshold:
		h.Status = StatusDisplaced
	case h.Damage >= severeDamage:
		if h.Damage+0.2*z < h.Perception() {
			h.Status = StatusDisplaced
		}
	}
}

// EndStep closes the year: households that were neither flooded nor alerted
// repair damage, then everyone updates sentiments.
func (h *Household) EndStep(neighbors []View, r Rules) {
	if h.RepairsThisYear() {
		h.FixDamage(r)
	}
	h.UpdateSentiments(neighbors)
}

// RepairsThisYear reports whether the household gets to repair at year end.
func (h *Household) RepairsThisYear() bool {
	return !(h.ReceivedFlood || h.Alerted)
}

// FixDamage repairs one year's worth of damage. A full repair takes a year,
// three years when displaced, and 180 more days per income unit below 10.
// Households at or below the poverty line cannot repair.
func (h *Household) FixDamage(r Rules) {
	if h.Income <= r.PovertyLine {
		return
	}
	h.Recovered = true

	recoveryTime := float64(daysPerYear)
	if h.Status == StatusDisplaced {
		recoveryTime = 3 * daysPerYear
	}
	if h.Income < 10 {
		recoveryTime += (10 - h.Income) * 180
	}

	h.Damage = clamp01(h.Damage - daysPerYear/recoveryTime)
	h.returnHomeIfRepaired()
}

// ReceiveAid applies mutual aid: a flat repair when any neighbor recovered this year.
func (h *Household) ReceiveAid(neighbors []View, r Rules) {
	if !(r.MutualAid > 0) {
		return
	}
	for _, n := range neighbors {
		if n.Recovered {
			h.Damage = clamp01(h.Damage - r.MutualAid)
			h.returnHomeIfRepaired()
			return
		}
	}
}

// UpdateSentiments feeds this year's experience back into awareness, trust and fear.
//
//	alerted, someone flooded       → trust = 1
//	alerted, nobody flooded        → trust halves
//	not alerted, someone flooded   → fear += 0.1
func (h *Household) UpdateSentiments(neighbors []View) {
	flooded := 0
	for _, n := range neighbors {
		if n.ReceivedFlood {
			flooded++
		}
	}
	anyoneFlooded := h.ReceivedFlood || flooded > 0

	if h.ReceivedFlood {
		h.Awareness = 1
	} else if len(neighbors) > 0 && float64(flooded)/float64(len(neighbors)) > awarenessShare {
		h.Awareness = 1
	}

	switch {
	case h.Alerted && anyoneFlooded:
		h.Trust = 1
	case h.Alerted && !anyoneFlooded:
		h.Trust = clamp01(h.Trust * 0.5)
	case !h.Alerted && anyoneFlooded:
		h.Fear = clamp01(h.Fear + 0.1)
	}
}

func (h *Household) returnHomeIfRepaired() {
	if h.Damage < recoveredDamage && h.Status != StatusNormal {
		h.Status = StatusNormal
	}
}
