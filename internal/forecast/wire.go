package forecast

// Wire format of the generator response. Pointer fields distinguish a
// missing value from a zero one.

type wireResponse struct {
	Historical []wireHistorical `json:"historical" validate:"required,min=1,dive"`
	Forecast   *wireForecast    `json:"forecast" validate:"required"`
}

type wireHistorical struct {
	Date  *string  `json:"date" validate:"required,datetime=2006-01-02"`
	High  *float64 `json:"high" validate:"required"`
	Low   *float64 `json:"low" validate:"required"`
	Close *float64 `json:"close" validate:"required"`
}

type wireForecast struct {
	Predictions []wirePrediction `json:"predictions" validate:"required,len=3,dive"`
	Outlook     *string          `json:"outlook" validate:"required,oneof=raise drop stable"`
	Rationale   *string          `json:"rationale" validate:"required"`
	Confidence  *int             `json:"confidence" validate:"required,min=0,max=100"`
}

type wirePrediction struct {
	Date           *string  `json:"date" validate:"required,datetime=2006-01-02"`
	PredictedHigh  *float64 `json:"predicted_high" validate:"required"`
	PredictedLow   *float64 `json:"predicted_low" validate:"required"`
	PredictedClose *float64 `json:"predicted_close" validate:"required"`
}
