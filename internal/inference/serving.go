package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trogers1052/market-forecast/internal/errs"
	"github.com/trogers1052/market-forecast/internal/feature"
)

// ServingLoader loads a model hosted by a TensorFlow Serving REST endpoint
type ServingLoader struct {
	BaseURL string
	Name    string
	Client  *http.Client
	// Shape skips metadata discovery when set
	Shape feature.Shape
}

// NewServingLoader creates a loader for the named model at baseURL
func NewServingLoader(baseURL, name string, timeout time.Duration) *ServingLoader {
	return &ServingLoader{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Name:    name,
		Client:  &http.Client{Timeout: timeout},
	}
}

type servingMetadata struct {
	Metadata struct {
		SignatureDef struct {
			SignatureDef map[string]struct {
				Inputs map[string]struct {
					TensorShape struct {
						Dim []struct {
							Size string `json:"size"`
						} `json:"dim"`
					} `json:"tensor_shape"`
				} `json:"inputs"`
			} `json:"signature_def"`
		} `json:"signature_def"`
	} `json:"metadata"`
}

// Load discovers the input shape from model metadata and returns a ready model
func (l *ServingLoader) Load(ctx context.Context) (Model, error) {
	shape := l.Shape
	if shape.Timesteps == 0 {
		var err error
		shape, err = l.discoverShape(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrModelUnavailable, err)
		}
	}
	if shape.Timesteps <= 0 || shape.NumFeatures != feature.NumFeatures {
		return nil, fmt.Errorf("%w: unsupported input shape %dx%d, want Nx%d",
			errs.ErrModelUnavailable, shape.Timesteps, shape.NumFeatures, feature.NumFeatures)
	}
	return &ServingModel{
		predictURL: fmt.Sprintf("%s/v1/models/%s:predict", l.BaseURL, url.PathEscape(l.Name)),
		client:     l.Client,
		shape:      shape,
	}, nil
}

func (l *ServingLoader) discoverShape(ctx context.Context) (feature.Shape, error) {
	u := fmt.Sprintf("%s/v1/models/%s/metadata", l.BaseURL, url.PathEscape(l.Name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return feature.Shape{}, err
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return feature.Shape{}, fmt.Errorf("model metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return feature.Shape{}, fmt.Errorf("model metadata: status %d: %s", resp.StatusCode, string(body))
	}

	var meta servingMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return feature.Shape{}, fmt.Errorf("model metadata decode: %w", err)
	}

	sig, ok := meta.Metadata.SignatureDef.SignatureDef["serving_default"]
	if !ok {
		return feature.Shape{}, fmt.Errorf("model metadata: no serving_default signature")
	}
	for _, input := range sig.Inputs {
		dims := input.TensorShape.Dim
		if len(dims) != 3 {
			return feature.Shape{}, fmt.Errorf("model metadata: expected 3 input dims, got %d", len(dims))
		}
		timesteps, err := strconv.Atoi(dims[1].Size)
		if err != nil {
			return feature.Shape{}, fmt.Errorf("model metadata: timesteps %q: %w", dims[1].Size, err)
		}
		features, err := strconv.Atoi(dims[2].Size)
		if err != nil {
			return feature.Shape{}, fmt.Errorf("model metadata: features %q: %w", dims[2].Size, err)
		}
		return feature.Shape{Timesteps: timesteps, NumFeatures: features}, nil
	}
	return feature.Shape{}, fmt.Errorf("model metadata: signature has no inputs")
}

// ServingModel runs inference against a TensorFlow Serving predict endpoint
type ServingModel struct {
	predictURL string
	client     *http.Client
	shape      feature.Shape
}

func (m *ServingModel) Shape() feature.Shape {
	return m.shape
}

// Infer sends one instance of shape [timesteps][features] and returns the first output
func (m *ServingModel) Infer(ctx context.Context, features []float64) (float64, error) {
	if len(features) != m.shape.Len() {
		return 0, &errs.FeatureLengthError{Got: len(features), Want: m.shape.Len()}
	}

	instance := make([][]float64, m.shape.Timesteps)
	for i := range instance {
		instance[i] = features[i*m.shape.NumFeatures : (i+1)*m.shape.NumFeatures]
	}
	body, err := json.Marshal(map[string]interface{}{"instances": [][][]float64{instance}})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal instances: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.predictURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("model predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("model predict: status %d: %s", resp.StatusCode, string(msg))
	}

	var out struct {
		Predictions []json.RawMessage `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("model predict decode: %w", err)
	}
	if len(out.Predictions) == 0 {
		return 0, fmt.Errorf("model predict: empty predictions")
	}
	return firstScalar(out.Predictions[0])
}

// firstScalar accepts either a bare number or a nested array of numbers
func firstScalar(raw json.RawMessage) (float64, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}
	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return 0, fmt.Errorf("model predict: unexpected output %s", string(raw))
	}
	if len(nested) == 0 {
		return 0, fmt.Errorf("model predict: empty output")
	}
	return firstScalar(nested[0])
}
