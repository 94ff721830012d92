package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/logging"
	"digidoc/internal/port"
)

// tesseract TSV columns.
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const wordLevel = 5

// TesseractEngine runs `tesseract <image> stdout -l <lang> tsv` and converts
// the TSV into text, token confidences and word boxes.
type TesseractEngine struct {
	cfg    config.OCRConfig
	runner Runner
	logger *slog.Logger
}

// NewTesseractEngine creates an OCR engine. A nil runner uses os/exec.
func NewTesseractEngine(cfg config.OCRConfig, runner Runner, logger *slog.Logger) port.OCREngine {
	logger = logging.OrDiscard(logger)
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	if cfg.TesseractPath == "" {
		cfg.TesseractPath = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &TesseractEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractEngine) ProcessImage(ctx context.Context, imagePath string) (*domain.OCRResult, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	args := []string{imagePath, "stdout", "-l", e.cfg.Language, "tsv"}
	out, errb, err := e.runner.Run(ctx, e.cfg.TesseractPath, args...)
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "timed out after " + e.cfg.Timeout.String()
		}
		return nil, fmt.Errorf("ocr.TesseractEngine.ProcessImage: %w: %v: %s", domain.ErrOCRFailure, err, truncate(msg, 500))
	}

	res, err := ParseTSV(string(out))
	if err != nil {
		return nil, fmt.Errorf("ocr.TesseractEngine.ProcessImage: %w: %v", domain.ErrOCRFailure, err)
	}
	e.logger.Debug("ocr.TesseractEngine.ProcessImage: done",
		"path", imagePath,
		"words", len(res.Words),
		"text_length", len(res.Text),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// ParseTSV converts tesseract TSV output. Only word rows contribute tokens;
// words on the same block, paragraph and line are joined by spaces and lines
// are separated by newlines.
func ParseTSV(tsv string) (*domain.OCRResult, error) {
	rows := strings.Split(strings.ReplaceAll(tsv, "\r\n", "\n"), "\n")
	if len(rows) == 0 || !strings.HasPrefix(rows[0], "level") {
		return nil, errors.New("missing TSV header")
	}

	res := &domain.OCRResult{Confidences: []float64{}, Words: []domain.OCRWord{}}
	var (
		text    strings.Builder
		lastKey [3]int
		started bool
	)
	for _, row := range rows[1:] {
		if row == "" {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < tsvColumns-1 {
			continue
		}
		if atoi(cols[colLevel]) != wordLevel {
			continue
		}
		word := ""
		if len(cols) > colText {
			word = strings.TrimSpace(cols[colText])
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[colConf]), 64)
		if err != nil {
			conf = -1
		}
		if word == "" {
			continue
		}

		w := domain.OCRWord{
			Text:       word,
			Confidence: conf,
			Left:       atoi(cols[colLeft]),
			Top:        atoi(cols[colTop]),
			Width:      atoi(cols[colWidth]),
			Height:     atoi(cols[colHeight]),
			Block:      atoi(cols[colBlock]),
			Line:       atoi(cols[colLine]),
		}
		res.Words = append(res.Words, w)
		res.Confidences = append(res.Confidences, conf)

		key := [3]int{w.Block, atoi(cols[colPar]), w.Line}
		switch {
		case !started:
			started = true
		case key != lastKey:
			text.WriteByte('\n')
		default:
			text.WriteByte(' ')
		}
		lastKey = key
		text.WriteString(word)
	}
	res.Text = text.String()
	return res, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
