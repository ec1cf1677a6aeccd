// internal/forecast/forecaster.go
package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/types"
)

// DefaultWindow – число часовых свечей на входе модели.
const DefaultWindow = 10

// CandleFetcher – источник свечей для прогноза.
type CandleFetcher interface {
	Fetch(ctx context.Context, mint solana.PublicKey, limit int) ([]Candle, error)
}

// Predictor – модель, предсказывающая следующую волатильность по окну наблюдений.
type Predictor interface {
	Predict(input []float64) (float64, error)
}

// Forecaster прогнозирует ширину ценового диапазона для новой позиции.
type Forecaster struct {
	source CandleFetcher
	model  Predictor
	token  types.TokenSpec
	window int
	logger *zap.Logger
}

// NewForecaster создаёт прогнозист для token.
func NewForecaster(source CandleFetcher, model Predictor, token types.TokenSpec, window int, logger *zap.Logger) (*Forecaster, error) {
	if source == nil || model == nil || logger == nil {
		return nil, fmt.Errorf("source, model and logger cannot be nil")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Forecaster{
		source: source,
		model:  model,
		token:  token,
		window: window,
		logger: logger.Named("forecaster"),
	}, nil
}

// Volatilities переводит свечи в наблюдения (high - low) / 10^decimals.
func Volatilities(candles []Candle, decimals uint8) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.High.Sub(c.Low).Shift(-int32(decimals))
	}
	return out
}

// ForecastRange возвращает прогнозируемую ширину диапазона (в единицах цены).
func (f *Forecaster) ForecastRange(ctx context.Context) (decimal.Decimal, error) {
	candles, err := f.source.Fetch(ctx, f.token.Mint, f.window)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) < f.window {
		return decimal.Zero, fmt.Errorf("need %d candles, got %d", f.window, len(candles))
	}
	candles = candles[len(candles)-f.window:]

	observations := Volatilities(candles, f.token.Decimals)
	input := make([]float64, len(observations))
	for i, v := range observations {
		input[i] = v.InexactFloat64()
	}

	prediction, err := f.model.Predict(input)
	if err != nil {
		return decimal.Zero, fmt.Errorf("predict: %w", err)
	}
	if math.IsNaN(prediction) || math.IsInf(prediction, 0) || prediction <= 0 {
		return decimal.Zero, fmt.Errorf("model produced unusable width %v", prediction)
	}

	width := decimal.NewFromFloat(prediction)
	f.logger.Info("Range forecast",
		zap.String("mint", f.token.Mint.String()),
		zap.Int("window", f.window),
		zap.String("last_volatility", observations[len(observations)-1].String()),
		zap.String("width", width.String()))
	return width, nil
}
