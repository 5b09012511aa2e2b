package forecast

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tylerle0/InvestAnalytics/internal/contracts"
)

var responseValidator = newResponseValidator()

func newResponseValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Parse decodes raw generator text into a ParsedForecast. Anything other
// than exactly one well-formed JSON object matching the contract is a
// ParseError; nothing is partially extracted.
func Parse(raw string) (*contracts.ParsedForecast, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var resp wireResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, parseError(fmt.Errorf("decode: %w", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, parseError(errors.New("trailing data after JSON object"))
	}

	if err := responseValidator.Struct(&resp); err != nil {
		return nil, parseError(validationError(err))
	}

	out := &contracts.ParsedForecast{
		Historical:  make([]contracts.PricePoint, 0, len(resp.Historical)),
		Predictions: make([]contracts.PricePoint, 0, len(resp.Forecast.Predictions)),
		Outlook:     contracts.Outlook(*resp.Forecast.Outlook),
		Rationale:   *resp.Forecast.Rationale,
		Confidence:  *resp.Forecast.Confidence,
	}

	for _, h := range resp.Historical {
		date, err := time.Parse(contracts.DateLayout, *h.Date)
		if err != nil {
			return nil, parseError(err)
		}
		out.Historical = append(out.Historical, contracts.PricePoint{
			Date:  date,
			High:  *h.High,
			Low:   *h.Low,
			Close: *h.Close,
			Kind:  contracts.PointHistorical,
		})
	}

	for _, p := range resp.Forecast.Predictions {
		date, err := time.Parse(contracts.DateLayout, *p.Date)
		if err != nil {
			return nil, parseError(err)
		}
		out.Predictions = append(out.Predictions, contracts.PricePoint{
			Date:  date,
			High:  *p.PredictedHigh,
			Low:   *p.PredictedLow,
			Close: *p.PredictedClose,
			Kind:  contracts.PointPredicted,
		})
	}

	if err := checkDateOrder(out); err != nil {
		return nil, parseError(err)
	}

	return out, nil
}

// checkDateOrder requires strictly increasing dates in both series and
// predictions that start after the last historical point.
func checkDateOrder(f *contracts.ParsedForecast) error {
	for i := 1; i < len(f.Historical); i++ {
		if !f.Historical[i].Date.After(f.Historical[i-1].Date) {
			return fmt.Errorf("historical[%d].date %s is not after %s", i,
				f.Historical[i].Date.Format(contracts.DateLayout), f.Historical[i-1].Date.Format(contracts.DateLayout))
		}
	}

	last := f.Historical[len(f.Historical)-1].Date
	for i, p := range f.Predictions {
		if !p.Date.After(last) {
			return fmt.Errorf("forecast.predictions[%d].date %s is not after %s", i,
				p.Date.Format(contracts.DateLayout), last.Format(contracts.DateLayout))
		}
		last = p.Date
	}
	return nil
}

// encodeResponse renders a forecast in the wire format Parse accepts
func encodeResponse(f *contracts.ParsedForecast) ([]byte, error) {
	str := func(s string) *string { return &s }
	num := func(v float64) *float64 { return &v }

	resp := wireResponse{
		Historical: make([]wireHistorical, 0, len(f.Historical)),
		Forecast: &wireForecast{
			Predictions: make([]wirePrediction, 0, len(f.Predictions)),
			Outlook:     str(string(f.Outlook)),
			Rationale:   str(f.Rationale),
			Confidence:  &f.Confidence,
		},
	}
	for _, h := range f.Historical {
		resp.Historical = append(resp.Historical, wireHistorical{
			Date:  str(h.Date.Format(contracts.DateLayout)),
			High:  num(h.High),
			Low:   num(h.Low),
			Close: num(h.Close),
		})
	}
	for _, p := range f.Predictions {
		resp.Forecast.Predictions = append(resp.Forecast.Predictions, wirePrediction{
			Date:           str(p.Date.Format(contracts.DateLayout)),
			PredictedHigh:  num(p.High),
			PredictedLow:   num(p.Low),
			PredictedClose: num(p.Close),
		})
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

func parseError(err error) error {
	return contracts.NewError(contracts.KindParse, "parse forecast", err)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "wireResponse.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "len":
		return fmt.Sprintf("%s must have exactly %s entries", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "datetime":
		return fmt.Sprintf("%s must be a %s date", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}
