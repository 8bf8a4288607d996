package analysis_test

import (
	"fmt"
	"testing"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestFuse_EmptyDetectionsFallBackToWeakBaseline(t *testing.T) {
	s, matched := analysis.Fuse(analysis.Detections{})

	assert.Equal(t, 0.3, s.Confidence, "fallback must be exactly 0.3, not 0 or 0.5")
	assert.Zero(t, s.ObjectCount)
	assert.False(t, s.PersonPresent)
	assert.Empty(t, matched)
}

func TestFuse_MaxKeywordConfidence(t *testing.T) {
	s, matched := analysis.Fuse(analysis.Detections{
		Labels: []analysis.Annotation{
			{Name: "Trash", Score: 0.55},
			{Name: "Street", Score: 0.99},
			{Name: "Plastic bag", Score: 0.72},
			{Name: "Illegal dumping", Score: 0.61},
		},
	})

	assert.Equal(t, 0.72, s.Confidence)
	assert.Equal(t, []string{"trash", "plastic bag", "illegal dumping"}, matched)
	assert.Zero(t, s.ObjectCount)
}

func TestFuse_PersonSuppressesFallback(t *testing.T) {
	tests := []struct {
		name string
		d    analysis.Detections
	}{
		{"person label", analysis.Detections{Labels: []analysis.Annotation{{Name: "Person", Score: 0.9}}}},
		{"face label", analysis.Detections{Labels: []analysis.Annotation{{Name: "Face", Score: 0.8}}}},
		{"person object", analysis.Detections{Objects: []analysis.Annotation{{Name: "Person", Score: 0.7}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := analysis.Fuse(tt.d)
			assert.True(t, s.PersonPresent)
			assert.Zero(t, s.Confidence, "no baseline when a person was seen")
		})
	}
}

func TestFuse_ObjectCounting(t *testing.T) {
	s, _ := analysis.Fuse(analysis.Detections{
		Objects: []analysis.Annotation{
			{Name: "Bottle", Score: 0.5},
			{Name: "Plastic bag", Score: 0.6},
			{Name: "Car", Score: 0.9},
		},
	})
	assert.Equal(t, 2, s.ObjectCount)
	assert.Zero(t, s.Confidence, "objects alone below the strong threshold keep label confidence")
}

func TestFuse_StrongSignal(t *testing.T) {
	for n := config.StrongObjectCount; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d objects", n), func(t *testing.T) {
			var objs []analysis.Annotation
			for i := 0; i < n; i++ {
				objs = append(objs, analysis.Annotation{Name: "Waste container", Score: 0.4})
			}
			s, _ := analysis.Fuse(analysis.Detections{
				Labels:  []analysis.Annotation{{Name: "litter", Score: 0.2}},
				Objects: objs,
			})
			assert.Equal(t, n, s.ObjectCount)
			assert.GreaterOrEqual(t, s.Confidence, 0.8)
		})
	}
}

func TestFuse_StrongSignalKeepsHigherLabel(t *testing.T) {
	s, _ := analysis.Fuse(analysis.Detections{
		Labels: []analysis.Annotation{{Name: "trash", Score: 0.9}},
		Objects: []analysis.Annotation{
			{Name: "bottle", Score: 0.5}, {Name: "bottle", Score: 0.6}, {Name: "bottle", Score: 0.4},
		},
	})
	assert.Equal(t, 0.9, s.Confidence)
	assert.Equal(t, 3, s.ObjectCount)
}

func TestVerdictEvidence_Summary(t *testing.T) {
	none := analysis.VerdictEvidence{Model: "gemini-2.5-flash"}
	s := none.Summary()
	assert.Equal(t, config.PipelineAIVerdict, s.Pipeline)
	assert.Nil(t, s.IsPublicGarbage)

	withVerdict := analysis.VerdictEvidence{
		Model:   "gemini-2.5-flash",
		Verdict: &analysis.AIVerdict{IsPublicGarbage: true, Confidence: 0.8, Severity: analysis.VerdictHigh, Reason: "pile on sidewalk"},
	}
	s = withVerdict.Summary()
	assert.True(t, *s.IsPublicGarbage)
	assert.Equal(t, "HIGH", s.Severity)
	assert.Equal(t, "pile on sidewalk", s.Reason)
}

func TestLabelObjectEvidence_Summary(t *testing.T) {
	e := analysis.LabelObjectEvidence{Signals: analysis.Signals{Confidence: 0.8, ObjectCount: 3}}
	s := e.Summary()
	assert.Equal(t, config.PipelineLabelObject, s.Pipeline)
	assert.Equal(t, 3, s.ObjectCount)
	assert.Equal(t, config.PipelineLabelObject, e.Pipeline())
}
