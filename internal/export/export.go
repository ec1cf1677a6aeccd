package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/bot"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/storage/models"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DefaultLimit – сколько последних циклов выгружается по умолчанию.
const DefaultLimit = 1000

// JournalReader – часть журнала, нужная для выгрузки.
type JournalReader interface {
	ListCycles(ctx context.Context, limit, offset int) ([]*models.Cycle, error)
	ListOperations(ctx context.Context, cycleID string) ([]*models.Operation, error)
}

// Options configures the export behavior
type Options struct {
	Format     Format
	Since      time.Time
	Until      time.Time
	Operation  string // close_position, swap, open_position
	OnlyFailed bool   // только неудачные операции
	Limit      int
	OutputDir  string
}

// CycleRecord – цикл вместе с его операциями.
type CycleRecord struct {
	*models.Cycle
	Operations []*models.Operation `json:"operations"`
}

// Exporter выгружает журнал циклов в CSV или JSON.
type Exporter struct {
	reader JournalReader
	logger *zap.Logger
	now    func() time.Time
}

func NewExporter(reader JournalReader, logger *zap.Logger) *Exporter {
	return &Exporter{
		reader: reader,
		logger: logger.Named("export"),
		now:    time.Now,
	}
}

// Export выгружает журнал и возвращает путь к созданному файлу.
func (e *Exporter) Export(ctx context.Context, options Options) (string, error) {
	records, err := e.load(ctx, options)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("no cycles match the export criteria")
	}

	if options.OutputDir == "" {
		options.OutputDir = "."
	}
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, e.filename(options))

	switch options.Format {
	case FormatCSV:
		err = exportToCSV(records, outputPath)
	case FormatJSON:
		err = e.exportToJSON(records, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Journal exported",
		zap.String("file", outputPath),
		zap.Int("cycles", len(records)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

// load читает циклы и операции, применяя фильтры. Результат упорядочен по времени начала цикла.
func (e *Exporter) load(ctx context.Context, options Options) ([]CycleRecord, error) {
	limit := options.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	cycles, err := e.reader.ListCycles(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}

	var records []CycleRecord
	for _, c := range cycles {
		if !options.Since.IsZero() && c.StartedAt.Before(options.Since) {
			continue
		}
		if !options.Until.IsZero() && c.StartedAt.After(options.Until) {
			continue
		}

		ops, err := e.reader.ListOperations(ctx, c.CycleID)
		if err != nil {
			return nil, fmt.Errorf("list operations of %s: %w", c.CycleID, err)
		}
		ops = filterOperations(ops, options)
		if len(ops) == 0 && (options.Operation != "" || options.OnlyFailed) {
			continue
		}
		records = append(records, CycleRecord{Cycle: c, Operations: ops})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

func filterOperations(ops []*models.Operation, options Options) []*models.Operation {
	var filtered []*models.Operation
	for _, op := range ops {
		if options.Operation != "" && op.Operation != options.Operation {
			continue
		}
		if options.OnlyFailed && op.Status != models.OperationFailed {
			continue
		}
		filtered = append(filtered, op)
	}
	return filtered
}

func (e *Exporter) filename(options Options) string {
	prefix := "cycles_all"
	if options.Operation != "" {
		prefix = "cycles_" + options.Operation
	}
	if options.OnlyFailed {
		prefix += "_failed"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, e.now().Format("20060102_150405"), options.Format)
}

var csvHeaders = []string{
	"cycle_id", "cycle_status", "cycle_started_at", "step", "operation",
	"subject", "amount", "status", "signature", "error", "executed_at",
}

// exportToCSV пишет по строке на операцию. Цикл без операций даёт одну строку с пустыми полями операции.
func exportToCSV(records []CycleRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		started := r.StartedAt.UTC().Format(time.RFC3339)
		if len(r.Operations) == 0 {
			row := []string{r.CycleID, r.Status, started, r.Step, "", "", "", "", "", r.ErrorMessage, ""}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write cycle: %w", err)
			}
			continue
		}
		for _, op := range r.Operations {
			row := []string{
				r.CycleID, r.Status, started, op.Step, op.Operation,
				op.Subject, op.Amount, op.Status, op.Signature, op.ErrorMessage,
				op.ExecutedAt.UTC().Format(time.RFC3339),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write operation: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *Exporter) exportToJSON(records []CycleRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		CycleCount int           `json:"cycle_count"`
		Summary    Summary       `json:"summary"`
		Cycles     []CycleRecord `json:"cycles"`
	}{
		ExportTime: e.now().UTC(),
		CycleCount: len(records),
		Summary:    Summarize(records),
		Cycles:     records,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary – сводка по выгруженным циклам.
type Summary struct {
	Cycles        int            `json:"cycles"`
	Completed     int            `json:"completed"`
	Failed        int            `json:"failed"`
	Closes        int            `json:"closes"`
	CloseFailures int            `json:"close_failures"`
	Swaps         int            `json:"swaps"`
	SwapFailures  int            `json:"swap_failures"`
	SkippedSwaps  int            `json:"skipped_swaps"`
	Opens         int            `json:"opens"`
	OpenFailures  int            `json:"open_failures"`
	AvgDurationMs int64          `json:"avg_duration_ms"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	FailedByStep  map[string]int `json:"failed_by_step,omitempty"`
}

// Summarize считает сводку. records должны быть упорядочены по времени.
func Summarize(records []CycleRecord) Summary {
	summary := Summary{Cycles: len(records)}
	if len(records) == 0 {
		return summary
	}
	summary.StartDate = records[0].StartedAt
	summary.EndDate = records[len(records)-1].StartedAt

	var totalMs int64
	for _, r := range records {
		switch r.Status {
		case models.CycleCompleted:
			summary.Completed++
		case models.CycleFailed:
			summary.Failed++
			if summary.FailedByStep == nil {
				summary.FailedByStep = make(map[string]int)
			}
			summary.FailedByStep[r.Step]++
		}
		totalMs += r.DurationMs

		for _, op := range r.Operations {
			failed := op.Status == models.OperationFailed
			switch op.Operation {
			case bot.OpClosePosition:
				summary.Closes++
				if failed {
					summary.CloseFailures++
				}
			case bot.OpSwap:
				switch op.Status {
				case models.OperationSkipped:
					summary.SkippedSwaps++
				default:
					summary.Swaps++
					if failed {
						summary.SwapFailures++
					}
				}
			case bot.OpOpenPosition:
				summary.Opens++
				if failed {
					summary.OpenFailures++
				}
			}
		}
	}
	summary.AvgDurationMs = totalMs / int64(len(records))
	return summary
}
