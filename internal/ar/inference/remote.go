package inference

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/banshee-data/carstom/internal/httputil"
)

// RemoteModel calls a TensorFlow Serving REST endpoint. Tensors travel in
// the columnar format as nested arrays.
//
//	GET  {base}/v1/models/{name}          model status
//	POST {base}/v1/models/{name}:predict  {"inputs": [[...]]} -> {"outputs": [[...]]}
type RemoteModel struct {
	client httputil.HTTPClient
	base   string
	name   string
}

type modelStatus struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

type predictRequest struct {
	Inputs wireTensor `json:"inputs"`
}

type predictResponse struct {
	Outputs *wireTensor `json:"outputs"`
}

// NewRemoteModel checks that the named model has an available version.
func NewRemoteModel(ctx context.Context, client httputil.HTTPClient, baseURL, name string) (*RemoteModel, error) {
	if baseURL == "" || name == "" {
		return nil, fmt.Errorf("%w: model url and name are required", ErrModelUnavailable)
	}
	m := &RemoteModel{
		client: client,
		base:   strings.TrimRight(baseURL, "/") + "/v1/models/" + url.PathEscape(name),
		name:   name,
	}
	var st modelStatus
	if err := httputil.DoJSON(ctx, client, http.MethodGet, m.base, nil, &st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	for _, v := range st.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no available version", ErrModelUnavailable, name)
}

// Name returns the served model name.
func (m *RemoteModel) Name() string { return m.name }

// Predict implements Model.
func (m *RemoteModel) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	var resp predictResponse
	if err := httputil.DoJSON(ctx, m.client, http.MethodPost, m.base+":predict", predictRequest{Inputs: wireTensor{in}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", m.name, err)
	}
	if resp.Outputs == nil || resp.Outputs.Tensor == nil {
		return nil, fmt.Errorf("%w: response has no outputs", ErrBadOutputShape)
	}
	return resp.Outputs.Tensor, nil
}
