package hybrid

import "github.com/HerbHall/coldguard/pkg/models"

// Combine assembles the verdict for one reading. RawAnomaly is reported but
// only reaches HybridAlert through persistenceAlert.
func Combine(temperature float64, eval AnomalyEvaluation, persistenceAlert, boundsBreach bool) models.HybridResult {
	return models.HybridResult{
		Temperature:         temperature,
		ReconstructionError: eval.ReconstructionError,
		RawAnomaly:          eval.RawAnomaly,
		PersistenceAlert:    persistenceAlert,
		BoundsBreach:        boundsBreach,
		HybridAlert:         persistenceAlert || boundsBreach,
	}
}
