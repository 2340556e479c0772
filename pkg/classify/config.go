// Package classify runs a 3-way dental classification network (healthy,
// cavity, gum_disease) over preprocessed X-ray tensors, via ONNX Runtime.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelConfig is the JSON side-car that ships with the ONNX weights. It tells
// us the tensor names and shapes, and the class list in output order.
type ModelConfig struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`  // eg [1,3,224,224] (NCHW) or [1,224,224,3] (NHWC)
	OutputShape []int64  `json:"output_shape"` // eg [1,3]
	Classes     []string `json:"classes"`      // In output-vector order
	RawLogits   bool     `json:"raw_logits"`   // True if the network emits unnormalized logits (we apply softmax)
}

// LoadModelConfig reads and sanity-checks a model config file.
func LoadModelConfig(filename string) (*ModelConfig, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Failed to read model config %v: %w", filename, err)
	}
	cfg := &ModelConfig{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Failed to parse model config %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid model config %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *ModelConfig) Validate() error {
	if c.InputName == "" || c.OutputName == "" {
		return fmt.Errorf("input_name and output_name are required")
	}
	if len(c.InputShape) != 4 {
		return fmt.Errorf("input_shape must have 4 dimensions, got %v", len(c.InputShape))
	}
	if c.InputShape[1] != 3 && c.InputShape[3] != 3 {
		return fmt.Errorf("input_shape must be NCHW or NHWC with 3 channels")
	}
	if len(c.Classes) < 2 {
		return fmt.Errorf("at least 2 classes are required, got %v", len(c.Classes))
	}
	if n := c.outputLen(); n != len(c.Classes) {
		return fmt.Errorf("output_shape yields %v values, but there are %v classes", n, len(c.Classes))
	}
	return nil
}

// ChannelsFirst reports whether the input layout is NCHW.
func (c *ModelConfig) ChannelsFirst() bool {
	return c.InputShape[1] == 3
}

func (c *ModelConfig) inputLen() int {
	n := int64(1)
	for _, d := range c.InputShape {
		n *= d
	}
	return int(n)
}

func (c *ModelConfig) outputLen() int {
	n := int64(1)
	for _, d := range c.OutputShape {
		n *= d
	}
	return int(n)
}
