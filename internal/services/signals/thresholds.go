package signals

// Thresholds configures every rule trigger. Fractions unless noted.
type Thresholds struct {
	FundingOverheated   float64 // |funding_rate_24h|
	FundingExtreme      float64 // |funding_rate_24h| for critical, |funding_rate| for the single-period rule
	OISurgeCritical     float64
	OISurgeWarn         float64
	VolatilityCritical  float64
	VolatilityWarn      float64
	VolumeZScore        float64
	PriceOIPrice        float64
	PriceOIOpenInterest float64
	PanicPriceDrop      float64 // negative
	PanicVolumeChange   float64
	LongShortExtreme    float64
	LongShortWarn       float64
	LiquidationRatio    float64
	DivergencePrice     float64 // percent
	DivergenceFunding   float64
	DivergenceOI        float64
	DominanceShift      float64
	VolumeWindow        int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FundingOverheated:   0.01,
		FundingExtreme:      0.05,
		OISurgeCritical:     0.30,
		OISurgeWarn:         0.15,
		VolatilityCritical:  0.15,
		VolatilityWarn:      0.10,
		VolumeZScore:        2.0,
		PriceOIPrice:        0.05,
		PriceOIOpenInterest: 0.20,
		PanicPriceDrop:      -0.05,
		PanicVolumeChange:   0.50,
		LongShortExtreme:    1.5,
		LongShortWarn:       1.3,
		LiquidationRatio:    0.10,
		DivergencePrice:     5,
		DivergenceFunding:   0.0005,
		DivergenceOI:        0.10,
		DominanceShift:      0.02,
		VolumeWindow:        5,
	}
}
