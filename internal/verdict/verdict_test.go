package verdict

import (
	"context"
	"errors"
	"testing"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	answer string
	err    error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContents, f.gotConfig = model, contents, cfg
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(f.answer, genai.RoleModel),
		}},
	}, nil
}

func newTestGemini(t *testing.T, f *fakeModels) *Gemini {
	t.Helper()
	g, err := newGemini(f, config.GeminiConfig{Model: "gemini-2.5-flash", Temperature: 0.1})
	require.NoError(t, err)
	return g
}

func TestJudge(t *testing.T) {
	f := &fakeModels{answer: `{"isPublicGarbage":true,"confidence":0.86,"severity":"HIGH","reason":"Overflowing bins on the sidewalk."}`}
	g := newTestGemini(t, f)

	v, err := g.Judge(context.Background(), []byte{0xff, 0xd8, 0xff, 0xe0}, "near the school")
	require.NoError(t, err)
	assert.Equal(t, &analysis.AIVerdict{
		IsPublicGarbage: true,
		Confidence:      0.86,
		Severity:        analysis.VerdictHigh,
		Reason:          "Overflowing bins on the sidewalk.",
	}, v)

	assert.Equal(t, "gemini-2.5-flash", f.gotModel)
	assert.Equal(t, "application/json", f.gotConfig.ResponseMIMEType)
	require.Len(t, f.gotContents, 1)
	parts := f.gotContents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, "near the school")
}

func TestJudge_FencedAnswer(t *testing.T) {
	f := &fakeModels{answer: "```json\n{\"isPublicGarbage\":false,\"confidence\":0.9,\"severity\":\"LOW\",\"reason\":\"Clean street.\"}\n```"}
	v, err := newTestGemini(t, f).Judge(context.Background(), []byte("x"), "")
	require.NoError(t, err)
	assert.False(t, v.IsPublicGarbage)
}

func TestJudge_RejectsInvalidAnswers(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"not json", "I think this is garbage."},
		{"missing field", `{"isPublicGarbage":true,"confidence":0.9,"severity":"HIGH"}`},
		{"confidence out of range", `{"isPublicGarbage":true,"confidence":1.4,"severity":"HIGH","reason":"x"}`},
		{"unknown severity", `{"isPublicGarbage":true,"confidence":0.4,"severity":"EXTREME","reason":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGemini(t, &fakeModels{answer: tt.answer}).Judge(context.Background(), []byte("x"), "")
			assert.Error(t, err)
		})
	}
}

func TestJudge_UpstreamError(t *testing.T) {
	_, err := newTestGemini(t, &fakeModels{err: errors.New("RESOURCE_EXHAUSTED")}).Judge(context.Background(), []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), config.GeminiConfig{})
	assert.Error(t, err)
}
