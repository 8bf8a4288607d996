package analysis

import (
	"context"
	"fmt"
	"time"

	"cleancity/backend/internal/metrics"

	"go.uber.org/zap"
)

// ImageStore fetches the evidence image bytes for a stored path.
type ImageStore interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// Detector returns label and object detections for an image.
type Detector interface {
	Detect(ctx context.Context, image []byte) (Detections, error)
}

// Reasoner asks a language model for a structured verdict about an image.
type Reasoner interface {
	Judge(ctx context.Context, image []byte, description string) (*AIVerdict, error)
	ModelName() string
}

// Request identifies the evidence to gather for one submission.
type Request struct {
	ImagePath   string
	Description string
}

// Pipeline gathers evidence for a submission. Gather never fails: collaborator
// errors are absorbed into the pipeline's fallback evidence.
type Pipeline interface {
	Gather(ctx context.Context, req Request) Evidence
}

// LabelObjectPipeline runs the detector and fuses its output.
type LabelObjectPipeline struct {
	Images   ImageStore
	Detector Detector
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (p *LabelObjectPipeline) Gather(ctx context.Context, req Request) Evidence {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	dets, err := p.detect(ctx, req.ImagePath)
	metrics.UpstreamDuration.WithLabelValues("detector").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamDegraded.WithLabelValues("detector").Inc()
		p.Logger.Warn("Detector unavailable, fusing empty detection set",
			zap.String("image_path", req.ImagePath), zap.Error(err))
		dets = Detections{}
	}

	signals, matched := Fuse(dets)
	return LabelObjectEvidence{Signals: signals, MatchedLabels: matched}
}

func (p *LabelObjectPipeline) detect(ctx context.Context, path string) (Detections, error) {
	if p.Detector == nil {
		return Detections{}, fmt.Errorf("no detector configured")
	}
	img, err := p.Images.Get(ctx, path)
	if err != nil {
		return Detections{}, fmt.Errorf("fetch image: %w", err)
	}
	return p.Detector.Detect(ctx, img)
}

// VerdictPipeline asks the reasoning model for a verdict and passes it through.
type VerdictPipeline struct {
	Images   ImageStore
	Reasoner Reasoner
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (p *VerdictPipeline) Gather(ctx context.Context, req Request) Evidence {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	var model string
	if p.Reasoner != nil {
		model = p.Reasoner.ModelName()
	}

	start := time.Now()
	verdict, err := p.judge(ctx, req)
	metrics.UpstreamDuration.WithLabelValues("reasoner").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamDegraded.WithLabelValues("reasoner").Inc()
		p.Logger.Warn("Reasoning model unavailable, scoring without verdict",
			zap.String("image_path", req.ImagePath), zap.Error(err))
		return VerdictEvidence{Model: model}
	}
	return VerdictEvidence{Verdict: verdict, Model: model}
}

func (p *VerdictPipeline) judge(ctx context.Context, req Request) (*AIVerdict, error) {
	if p.Reasoner == nil {
		return nil, fmt.Errorf("no reasoning model configured")
	}
	img, err := p.Images.Get(ctx, req.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	return p.Reasoner.Judge(ctx, img, req.Description)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
