package classify

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cyclopcam/logs"
	"github.com/dentavision/dentavision/pkg/xray"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrModelUnavailable means the model weights could not be loaded. Inference
// can never succeed until the weights on disk are fixed, so callers should
// fail fast rather than retry.
var ErrModelUnavailable = errors.New("Classification model unavailable")

// InferenceError is an unexpected runtime failure during a forward pass.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("Inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// The ONNX Runtime environment is process-wide
var ortInitOnce sync.Once
var ortInitErr error

func initOrtEnvironment(sharedLibPath string) error {
	ortInitOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// Model is a lazily loaded ONNX classification network. It is safe for
// concurrent use: weights are loaded exactly once, and the session's reusable
// input/output tensors are guarded by a mutex. A failed load is cached, so
// every subsequent Predict fails fast with ErrModelUnavailable.
type Model struct {
	log          logs.Log
	modelPath    string
	configPath   string
	sharedLib    string // optional explicit path to the onnxruntime shared library
	loadOnce     sync.Once
	loadErr      error
	loaded       atomic.Bool
	runLock      sync.Mutex
	config       *ModelConfig
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewModel creates a Model without touching the disk. The weights are loaded
// on the first call to Load or Predict.
func NewModel(log logs.Log, modelPath, configPath, sharedLibPath string) *Model {
	return &Model{
		log:        log,
		modelPath:  modelPath,
		configPath: configPath,
		sharedLib:  sharedLibPath,
	}
}

// Load loads the weights if they have not been loaded yet. Safe to call from
// multiple goroutines; only the first call does work.
func (m *Model) Load() error {
	m.loadOnce.Do(func() {
		m.loadErr = m.load()
		if m.loadErr != nil {
			m.log.Errorf("Failed to load model %v: %v", m.modelPath, m.loadErr)
			m.loadErr = fmt.Errorf("%w: %v", ErrModelUnavailable, m.loadErr)
		} else {
			m.log.Infof("Loaded model %v (classes %v)", m.modelPath, m.config.Classes)
			m.loaded.Store(true)
		}
	})
	return m.loadErr
}

func (m *Model) load() error {
	cfg, err := LoadModelConfig(m.configPath)
	if err != nil {
		return err
	}
	if err := initOrtEnvironment(m.sharedLib); err != nil {
		return fmt.Errorf("Failed to initialize ONNX runtime: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return fmt.Errorf("Failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("Failed to create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(m.modelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("Failed to create ONNX session from %v: %w", m.modelPath, err)
	}
	m.config = cfg
	m.session = session
	m.inputTensor = inputTensor
	m.outputTensor = outputTensor
	return nil
}

// Loaded reports whether the weights are resident. False before the first
// Predict when loading is lazy.
func (m *Model) Loaded() bool {
	return m.loaded.Load()
}

// Classes returns the class list, or nil if the model is not loaded.
func (m *Model) Classes() []string {
	if !m.Loaded() {
		return nil
	}
	return m.config.Classes
}

// Predict runs one forward pass. Pure function of the tensor and the loaded
// weights: identical inputs give identical outputs.
func (m *Model) Predict(t *xray.Tensor) (*Result, error) {
	if err := m.Load(); err != nil {
		return nil, err
	}

	var input []float32
	if m.config.ChannelsFirst() {
		input = t.NCHW()
	} else {
		input = t.NHWC()
	}
	if len(input) != m.config.inputLen() {
		return nil, &InferenceError{Err: fmt.Errorf("tensor has %v values, model expects %v", len(input), m.config.inputLen())}
	}

	m.runLock.Lock()
	defer m.runLock.Unlock()

	copy(m.inputTensor.GetData(), input)
	if err := m.session.Run(); err != nil {
		return nil, &InferenceError{Err: err}
	}
	raw := m.outputTensor.GetData()
	probs := make([]float32, len(raw))
	copy(probs, raw)
	if m.config.RawLogits {
		probs = Softmax(probs)
	}
	return deriveResult(m.config.Classes, probs), nil
}

// Close releases the ONNX session. The process-wide runtime environment is
// left alive; it is torn down when the process exits.
func (m *Model) Close() {
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
	if m.session != nil {
		m.session.Destroy()
	}
	m.loaded.Store(false)
}
