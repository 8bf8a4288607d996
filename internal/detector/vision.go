// Package detector calls the Cloud Vision images:annotate endpoint for label
// and object detections.
package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/config"
)

type Vision struct {
	endpoint   string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

func NewVision(cfg config.VisionConfig, httpClient *http.Client) (*Vision, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision.api_key is required for the label_object pipeline")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Vision{endpoint: cfg.Endpoint, apiKey: cfg.APIKey, maxResults: cfg.MaxResults, httpClient: httpClient}, nil
}

type feature struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type imageContent struct {
	Content string `json:"content"`
}

type annotateItem struct {
	Image    imageContent `json:"image"`
	Features []feature    `json:"features"`
}

type annotateRequest struct {
	Requests []annotateItem `json:"requests"`
}

type annotateResponse struct {
	Responses []struct {
		LabelAnnotations []struct {
			Description string  `json:"description"`
			Score       float64 `json:"score"`
		} `json:"labelAnnotations"`
		LocalizedObjectAnnotations []struct {
			Name  string  `json:"name"`
			Score float64 `json:"score"`
		} `json:"localizedObjectAnnotations"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// Detect runs LABEL_DETECTION and OBJECT_LOCALIZATION on image.
func (v *Vision) Detect(ctx context.Context, image []byte) (analysis.Detections, error) {
	reqBody := annotateRequest{Requests: []annotateItem{{
		Image: imageContent{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []feature{
			{Type: "LABEL_DETECTION", MaxResults: v.maxResults},
			{Type: "OBJECT_LOCALIZATION", MaxResults: v.maxResults},
		},
	}}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return analysis.Detections{}, err
	}

	u, err := url.Parse(v.endpoint)
	if err != nil {
		return analysis.Detections{}, fmt.Errorf("invalid vision endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", v.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return analysis.Detections{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return analysis.Detections{}, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return analysis.Detections{}, fmt.Errorf("vision returned status %d: %s", resp.StatusCode, string(body))
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return analysis.Detections{}, fmt.Errorf("failed to decode vision response: %w", err)
	}
	if len(out.Responses) == 0 {
		return analysis.Detections{}, nil
	}
	r := out.Responses[0]
	if r.Error != nil {
		return analysis.Detections{}, fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}

	var d analysis.Detections
	for _, l := range r.LabelAnnotations {
		d.Labels = append(d.Labels, analysis.Annotation{Name: l.Description, Score: l.Score})
	}
	for _, o := range r.LocalizedObjectAnnotations {
		d.Objects = append(d.Objects, analysis.Annotation{Name: o.Name, Score: o.Score})
	}
	return d, nil
}
