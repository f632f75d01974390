package booking

import (
	"math"

	"opdportal/models"
)

// DefaultRegistrationFee is charged on top of every consultation.
const DefaultRegistrationFee = 20.0

// Quote computes the fee breakdown for booking the given doctor. Negative or
// non-finite fees are treated as zero.
func Quote(registrationFee float64, doctor models.Doctor) models.Fees {
	return models.NewFees(sanitizeFee(registrationFee), sanitizeFee(doctor.ConsultationFee))
}

func sanitizeFee(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
