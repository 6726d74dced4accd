package mesh

import "github.com/thewriterben/wildcam-mesh/internal/models"

// Reassignment scoring weights. Battery and signal each contribute up to
// 50 points, an on-board accelerator is worth a flat 50 for the task types
// that can use it, and every task already on the node costs 10.
const (
	acceleratedBonus   = 50.0
	batteryWeight      = 50.0
	signalWeight       = 50.0
	loadPenaltyPerTask = 10.0

	// Signal strength maps linearly onto [0, 1] between these bounds:
	// -100 dBm scores nothing, -30 dBm scores full marks.
	signalFloorDBm = -100.0
	signalRangeDBm = 70.0
)

// SelectNode picks the best live node for a task. Candidates must be
// active and not the excluded (failed) node; the highest score wins, with
// ties broken by smallest node id so selection is reproducible. Returns
// false when no eligible candidate exists.
//
// The function is pure: it reads the snapshots it is given and touches no
// coordinator state.
func SelectNode(candidates []models.NodeSnapshot, taskType models.TaskType, excluded models.NodeID) (models.NodeID, bool) {
	var (
		bestID    models.NodeID
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if !c.Active || c.ID == excluded {
			continue
		}
		score := ScoreNode(c, taskType)
		if !found || score > bestScore || (score == bestScore && c.ID < bestID) {
			bestID = c.ID
			bestScore = score
			found = true
		}
	}
	return bestID, found
}

// ScoreNode computes a candidate's suitability for a task type.
func ScoreNode(n models.NodeSnapshot, taskType models.TaskType) float64 {
	score := 0.0
	if taskType.WantsAcceleration() && n.Capabilities.Has(models.CapAcceleratedProcessing) {
		score += acceleratedBonus
	}
	score += float64(n.BatteryLevel) / 100.0 * batteryWeight
	score += clamp01((float64(n.SignalStrength)-signalFloorDBm)/signalRangeDBm) * signalWeight
	score -= loadPenaltyPerTask * float64(n.ActiveTaskCount)
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
