package classifier

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/tphakala/go-tflite"

	"github.com/mealsnap/mealsnap-go/internal/errors"
	"github.com/mealsnap/mealsnap-go/internal/logger"
)

// ModelConfig locates a TFLite image classification model and its labels.
type ModelConfig struct {
	ModelPath string
	LabelPath string
	Threads   int // 0 uses all CPUs
}

// TFLiteModel runs a MobileNet style classifier with an NHWC RGB input and one score per label.
type TFLiteModel struct {
	name        string
	labels      []string
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputSize   int
	inputType   tflite.TensorType
	mu          sync.Mutex
}

// NewTFLiteModel loads the model and labels and allocates an interpreter.
func NewTFLiteModel(cfg ModelConfig) (*TFLiteModel, error) {
	start := time.Now()
	log := GetLogger()

	labels, err := LoadLabels(cfg.LabelPath)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(cfg.ModelPath, filepath.Base(cfg.ModelPath)).
			Timing("model-load", time.Since(start)).
			Build()
	}

	threads := determineThreadCount(cfg.Threads)
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.Newf("cannot create interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, filepath.Base(cfg.ModelPath)).
			Build()
	}

	m := &TFLiteModel{
		name:        strings.TrimSuffix(filepath.Base(cfg.ModelPath), filepath.Ext(cfg.ModelPath)),
		labels:      labels,
		model:       model,
		options:     options,
		interpreter: interpreter,
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		_ = m.Close()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(cfg.ModelPath, m.name).
			Build()
	}

	if err := m.inspectTensors(); err != nil {
		_ = m.Close()
		return nil, err
	}

	log.Info("classification model initialized",
		logger.String("model", m.name),
		logger.Int("labels", len(labels)),
		logger.Int("input_size", m.inputSize),
		logger.Int("threads", threads),
		logger.Duration("load_time", time.Since(start)))
	return m, nil
}

// inspectTensors checks the input is [1, H, W, 3] float32 or uint8 and the output has one
// score per label.
func (m *TFLiteModel) inspectTensors() error {
	input := m.interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 || input.Dim(3) != 3 || input.Dim(1) != input.Dim(2) {
		return errors.Newf("unexpected model input shape, want [1 N N 3]").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	switch input.Type() {
	case tflite.Float32, tflite.UInt8:
	default:
		return errors.Newf("unsupported model input type %v", input.Type()).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	m.inputSize = input.Dim(1)
	m.inputType = input.Type()

	output := m.interpreter.GetOutputTensor(0)
	if output == nil {
		return errors.Newf("cannot get output tensor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	if classes := output.Dim(output.NumDims() - 1); classes != len(m.labels) {
		return errors.Newf("mismatched labels and model outputs: %d labels vs %d classes", len(m.labels), classes).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return nil
}

func (m *TFLiteModel) Name() string {
	return m.name
}

// InputSize is the square edge the model expects.
func (m *TFLiteModel) InputSize() int {
	return m.inputSize
}

// Predict scores img, which must be InputSize x InputSize. Inference is serialised.
func (m *TFLiteModel) Predict(ctx context.Context, img *image.NRGBA) ([]Prediction, error) {
	if b := img.Bounds(); b.Dx() != m.inputSize || b.Dy() != m.inputSize {
		return nil, fmt.Errorf("image is %dx%d, model expects %dx%d", b.Dx(), b.Dy(), m.inputSize, m.inputSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.interpreter == nil {
		return nil, fmt.Errorf("model is closed")
	}

	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	if m.inputType == tflite.UInt8 {
		fillUint8Input(input.UInt8s(), img)
	} else {
		fillFloat32Input(input.Float32s(), img)
	}

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := m.interpreter.GetOutputTensor(0)
	var scores []float32
	if output.Type() == tflite.UInt8 {
		scores = dequantize(output.UInt8s(), output.QuantizationParams())
	} else {
		scores = slices.Clone(output.Float32s())
	}

	return rankPredictions(m.labels, scores)
}

// Close frees the interpreter and model. It is safe to call more than once.
func (m *TFLiteModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.interpreter != nil {
		m.interpreter.Delete()
		m.interpreter = nil
	}
	if m.options != nil {
		m.options.Delete()
		m.options = nil
	}
	if m.model != nil {
		m.model.Delete()
		m.model = nil
	}
	return nil
}

// fillFloat32Input writes RGB pixels normalised to [-1, 1] in NHWC order.
func fillFloat32Input(dst []float32, img *image.NRGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+3]
			dst[i] = float32(px[0])/127.5 - 1
			dst[i+1] = float32(px[1])/127.5 - 1
			dst[i+2] = float32(px[2])/127.5 - 1
			i += 3
		}
	}
}

func fillUint8Input(dst []uint8, img *image.NRGBA) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			copy(dst[i:i+3], row[x*4:x*4+3])
			i += 3
		}
	}
}

// dequantize maps quantised scores back to probabilities with
// real = scale * (q - zeroPoint). Tensors without a scale are read as q/255.
func dequantize(raw []uint8, q tflite.QuantizationParams) []float32 {
	scale, zero := q.Scale, q.ZeroPoint
	if scale <= 0 {
		scale, zero = 1.0/255, 0
	}
	scores := make([]float32, len(raw))
	for i, v := range raw {
		scores[i] = float32(scale * float64(int(v)-zero))
	}
	return scores
}

// rankPredictions pairs labels with scores and sorts by confidence, highest first.
func rankPredictions(labels []string, scores []float32) ([]Prediction, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("mismatched labels and predictions lengths: %d vs %d", len(labels), len(scores))
	}
	predictions := make([]Prediction, len(labels))
	for i, label := range labels {
		predictions[i] = Prediction{Label: label, Confidence: scores[i]}
	}
	slices.SortStableFunc(predictions, func(a, b Prediction) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})
	return predictions, nil
}

// LoadLabels reads one label per line. Leading "<id> " or "<id>," prefixes are stripped and
// underscores become spaces.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open label file: %w", err)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			FileContext(path, 0).
			Build()
	}
	defer file.Close() //nolint:errcheck // read only

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if label := parseLabelLine(scanner.Text()); label != "" {
			labels = append(labels, label)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			FileContext(path, 0).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("label file %s is empty", filepath.Base(path)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}

func parseLabelLine(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	if idx := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) }); idx > 0 {
		if sep := line[idx]; sep == ' ' || sep == ',' || sep == '\t' || sep == ':' {
			line = strings.TrimSpace(line[idx+1:])
		}
	}
	return strings.ReplaceAll(line, "_", " ")
}

func determineThreadCount(configured int) int {
	cpus := runtime.NumCPU()
	if configured <= 0 || configured > cpus {
		return cpus
	}
	return configured
}
