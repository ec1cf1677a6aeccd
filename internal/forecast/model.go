// internal/forecast/model.go
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Activation – функция активации слоя.
type Activation string

const (
	ActivationReLU   Activation = "relu"
	ActivationLinear Activation = "linear"
)

// Layer – полносвязный слой. Weights имеет форму [входы][выходы].
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation Activation  `json:"activation"`
}

// Model – небольшая регрессионная сеть, загружаемая из JSON с весами.
type Model struct {
	Layers []Layer `json:"layers"`
}

// LoadModel читает модель из файла и проверяет согласованность размерностей.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// Validate проверяет, что слои стыкуются и модель выдаёт одно значение.
func (m *Model) Validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}
	for i, l := range m.Layers {
		if len(l.Weights) == 0 {
			return fmt.Errorf("layer %d has no weights", i)
		}
		out := len(l.Weights[0])
		for j, row := range l.Weights {
			if len(row) != out {
				return fmt.Errorf("layer %d row %d has %d outputs, want %d", i, j, len(row), out)
			}
		}
		if len(l.Bias) != out {
			return fmt.Errorf("layer %d bias has %d values, want %d", i, len(l.Bias), out)
		}
		switch l.Activation {
		case ActivationReLU, ActivationLinear, "":
		default:
			return fmt.Errorf("layer %d: unsupported activation %q", i, l.Activation)
		}
		if i > 0 && len(m.Layers[i-1].Bias) != len(l.Weights) {
			return fmt.Errorf("layer %d expects %d inputs, previous layer produces %d",
				i, len(l.Weights), len(m.Layers[i-1].Bias))
		}
	}
	if last := m.Layers[len(m.Layers)-1]; len(last.Bias) != 1 {
		return fmt.Errorf("model must produce a single output, got %d", len(last.Bias))
	}
	return nil
}

// InputSize – ожидаемая длина входного вектора.
func (m *Model) InputSize() int {
	return len(m.Layers[0].Weights)
}

// Predict прогоняет вход через сеть.
func (m *Model) Predict(input []float64) (float64, error) {
	if len(input) != m.InputSize() {
		return 0, fmt.Errorf("model expects %d inputs, got %d", m.InputSize(), len(input))
	}

	x := input
	for _, l := range m.Layers {
		y := make([]float64, len(l.Bias))
		copy(y, l.Bias)
		for i, xi := range x {
			for j, w := range l.Weights[i] {
				y[j] += xi * w
			}
		}
		if l.Activation == ActivationReLU {
			for j := range y {
				y[j] = math.Max(0, y[j])
			}
		}
		x = y
	}
	return x[0], nil
}
