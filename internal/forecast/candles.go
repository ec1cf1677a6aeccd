// internal/forecast/candles.go
package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL      = "https://rest-api.hellomoon.io"
	candlesticksPath   = "/v0/token/candlesticks"
	granularityOneHour = "ONE_HOUR"
	maxFetchTries      = 3
)

// Candle – часовая OHLC-свеча цены токена.
type Candle struct {
	StartTime int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// CandleSource загружает свечи из HelloMoon-совместимого REST API.
type CandleSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *zap.Logger

	newBackOff func() backoff.BackOff
}

// NewCandleSource создаёт источник свечей.
func NewCandleSource(baseURL, apiKey string, logger *zap.Logger) *CandleSource {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &CandleSource{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.Named("candles"),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

type candlesRequest struct {
	Mint        string `json:"mint"`
	Granularity string `json:"granularity"`
	Limit       int    `json:"limit"`
}

// FetchRaw возвращает JSON-массив свечей ("data") как есть.
func (s *CandleSource) FetchRaw(ctx context.Context, mint solana.PublicKey, limit int) ([]byte, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("candle limit must be positive, got %d", limit)
	}
	body, err := json.Marshal(candlesRequest{Mint: mint.String(), Granularity: granularityOneHour, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	op := func() ([]byte, error) {
		return s.doRequest(ctx, body)
	}
	raw, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(maxFetchTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Warn("Candle request failed, retrying",
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", mint, err)
	}

	data := gjson.GetBytes(raw, "data")
	if !data.IsArray() {
		return nil, fmt.Errorf("fetch candles for %s: response has no data array", mint)
	}
	return []byte(data.Raw), nil
}

// Fetch загружает до limit свечей. Порядок свечей совпадает с ответом API и с файлом
// download-candles, на котором обучается модель.
func (s *CandleSource) Fetch(ctx context.Context, mint solana.PublicKey, limit int) ([]Candle, error) {
	raw, err := s.FetchRaw(ctx, mint, limit)
	if err != nil {
		return nil, err
	}
	candles, err := ParseCandles(raw)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Candles fetched",
		zap.String("mint", mint.String()),
		zap.Int("requested", limit),
		zap.Int("received", len(candles)))
	return candles, nil
}

func (s *CandleSource) doRequest(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+candlesticksPath, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(payload))
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(payload)))
	}

	if !gjson.ValidBytes(payload) {
		return nil, backoff.Permanent(fmt.Errorf("invalid JSON response"))
	}
	return payload, nil
}

// ParseCandles разбирает JSON-массив свечей, сохраняя порядок элементов.
// Числа допускаются как в виде строк, так и чисел.
func ParseCandles(raw []byte) ([]Candle, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid candles JSON")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsArray() {
		return nil, fmt.Errorf("candles JSON is not an array")
	}

	var (
		candles  []Candle
		parseErr error
	)
	parsed.ForEach(func(key, value gjson.Result) bool {
		c, err := parseCandle(value)
		if err != nil {
			parseErr = fmt.Errorf("candle %d: %w", key.Int(), err)
			return false
		}
		candles = append(candles, c)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return candles, nil
}

func parseCandle(value gjson.Result) (Candle, error) {
	var c Candle
	var err error
	if c.High, err = decimalField(value, "high"); err != nil {
		return c, err
	}
	if c.Low, err = decimalField(value, "low"); err != nil {
		return c, err
	}
	// open/close/volume не участвуют в прогнозе и могут отсутствовать
	c.Open, _ = decimalField(value, "open")
	c.Close, _ = decimalField(value, "close")
	c.Volume, _ = decimalField(value, "volume")
	c.StartTime = value.Get("startTime").Int()
	return c, nil
}

func decimalField(value gjson.Result, name string) (decimal.Decimal, error) {
	field := value.Get(name)
	if !field.Exists() {
		return decimal.Zero, fmt.Errorf("missing field %q", name)
	}
	d, err := decimal.NewFromString(field.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q: %w", name, err)
	}
	return d, nil
}
