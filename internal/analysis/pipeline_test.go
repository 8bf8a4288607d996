package analysis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cleancity/backend/internal/analysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockImages struct{ mock.Mock }

func (m *MockImages) Get(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockDetector struct{ mock.Mock }

func (m *MockDetector) Detect(ctx context.Context, image []byte) (analysis.Detections, error) {
	args := m.Called(ctx, image)
	return args.Get(0).(analysis.Detections), args.Error(1)
}

type MockReasoner struct{ mock.Mock }

func (m *MockReasoner) Judge(ctx context.Context, image []byte, description string) (*analysis.AIVerdict, error) {
	args := m.Called(ctx, image, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analysis.AIVerdict), args.Error(1)
}

func (m *MockReasoner) ModelName() string { return "test-model" }

var img = []byte{0xff, 0xd8, 0xff}

func TestLabelObjectPipeline_FusesDetections(t *testing.T) {
	images := new(MockImages)
	det := new(MockDetector)
	images.On("Get", mock.Anything, "complaints/u1/a.jpg").Return(img, nil)
	det.On("Detect", mock.Anything, img).Return(analysis.Detections{
		Labels: []analysis.Annotation{{Name: "Rubbish", Score: 0.66}},
	}, nil)

	p := &analysis.LabelObjectPipeline{Images: images, Detector: det, Timeout: time.Second, Logger: zap.NewNop()}
	ev := p.Gather(context.Background(), analysis.Request{ImagePath: "complaints/u1/a.jpg"})

	lo, ok := ev.(analysis.LabelObjectEvidence)
	require.True(t, ok)
	assert.Equal(t, 0.66, lo.Signals.Confidence)
	assert.Equal(t, []string{"rubbish"}, lo.MatchedLabels)
	det.AssertExpectations(t)
}

func TestLabelObjectPipeline_DetectorFailureUsesFallback(t *testing.T) {
	images := new(MockImages)
	det := new(MockDetector)
	images.On("Get", mock.Anything, "p").Return(img, nil)
	det.On("Detect", mock.Anything, img).Return(analysis.Detections{}, errors.New("vision: 503"))

	p := &analysis.LabelObjectPipeline{Images: images, Detector: det, Timeout: time.Second, Logger: zap.NewNop()}
	lo := p.Gather(context.Background(), analysis.Request{ImagePath: "p"}).(analysis.LabelObjectEvidence)

	assert.Equal(t, analysis.Signals{Confidence: 0.3}, lo.Signals)
}

func TestLabelObjectPipeline_ImageFetchFailureUsesFallback(t *testing.T) {
	images := new(MockImages)
	images.On("Get", mock.Anything, "missing").Return(nil, errors.New("NoSuchKey"))
	det := new(MockDetector)

	p := &analysis.LabelObjectPipeline{Images: images, Detector: det, Logger: zap.NewNop()}
	lo := p.Gather(context.Background(), analysis.Request{ImagePath: "missing"}).(analysis.LabelObjectEvidence)

	assert.Equal(t, 0.3, lo.Signals.Confidence)
	det.AssertNotCalled(t, "Detect", mock.Anything, mock.Anything)
}

func TestLabelObjectPipeline_TimeoutIsFailure(t *testing.T) {
	images := new(MockImages)
	images.On("Get", mock.Anything, "slow").Return(img, nil)
	det := new(MockDetector)
	det.On("Detect", mock.Anything, img).
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return(analysis.Detections{}, context.DeadlineExceeded)

	p := &analysis.LabelObjectPipeline{Images: images, Detector: det, Timeout: 20 * time.Millisecond, Logger: zap.NewNop()}
	start := time.Now()
	lo := p.Gather(context.Background(), analysis.Request{ImagePath: "slow"}).(analysis.LabelObjectEvidence)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0.3, lo.Signals.Confidence)
}

func TestVerdictPipeline_PassesVerdictThrough(t *testing.T) {
	images := new(MockImages)
	r := new(MockReasoner)
	v := &analysis.AIVerdict{IsPublicGarbage: true, Confidence: 0.9, Severity: analysis.VerdictHigh, Reason: "bags on curb"}
	images.On("Get", mock.Anything, "p").Return(img, nil)
	r.On("Judge", mock.Anything, img, "bins overflowing").Return(v, nil)

	p := &analysis.VerdictPipeline{Images: images, Reasoner: r, Timeout: time.Second, Logger: zap.NewNop()}
	ev := p.Gather(context.Background(), analysis.Request{ImagePath: "p", Description: "bins overflowing"}).(analysis.VerdictEvidence)

	assert.Same(t, v, ev.Verdict)
	assert.Equal(t, "test-model", ev.Model)
}

func TestVerdictPipeline_FailureYieldsNilVerdict(t *testing.T) {
	images := new(MockImages)
	r := new(MockReasoner)
	images.On("Get", mock.Anything, "p").Return(img, nil)
	r.On("Judge", mock.Anything, img, "").Return(nil, errors.New("quota exceeded"))

	p := &analysis.VerdictPipeline{Images: images, Reasoner: r, Logger: zap.NewNop()}
	ev := p.Gather(context.Background(), analysis.Request{ImagePath: "p"}).(analysis.VerdictEvidence)

	assert.Nil(t, ev.Verdict)
}

func TestVerdictPipeline_NoReasonerConfigured(t *testing.T) {
	p := &analysis.VerdictPipeline{Images: new(MockImages), Logger: zap.NewNop()}
	ev := p.Gather(context.Background(), analysis.Request{ImagePath: "p"}).(analysis.VerdictEvidence)
	assert.Nil(t, ev.Verdict)
}
