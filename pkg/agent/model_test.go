package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/dotsetgreg/leadbot/pkg/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	messages []providers.Message
	options  map[string]interface{}
	resp     *providers.LLMResponse
	err      error
}

func (p *recordingProvider) Chat(_ context.Context, messages []providers.Message, _ string, options map[string]interface{}) (*providers.LLMResponse, error) {
	p.messages = messages
	p.options = options
	return p.resp, p.err
}

func (p *recordingProvider) GetDefaultModel() string { return "test-model" }

func TestProviderModel_GenerateReplyMapsRoles(t *testing.T) {
	prov := &recordingProvider{resp: &providers.LLMResponse{
		Content: "  hello there \n",
		Usage:   &providers.UsageInfo{PromptTokens: 1000, CompletionTokens: 200},
	}}
	pm := NewProviderModel(prov, ModelOptions{MaxTokens: 256, Temperature: 0.7, Opening: "hey"}, nil)

	reply, err := pm.GenerateReply(context.Background(), "be nice", []Turn{
		{Role: RoleAssistant, Content: "welcome back"},
		{Role: RoleCustomer, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	require.Len(t, prov.messages, 4)
	assert.Equal(t, providers.Message{Role: providers.RoleSystem, Content: "be nice"}, prov.messages[0])
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "hey"}, prov.messages[1])
	assert.Equal(t, providers.RoleAssistant, prov.messages[2].Role)
	assert.Equal(t, providers.RoleUser, prov.messages[3].Role)
	assert.Equal(t, 256, prov.options["max_tokens"])
}

func TestProviderModel_ExtractUsesAnalysisBudget(t *testing.T) {
	prov := &recordingProvider{resp: &providers.LLMResponse{Content: `{"summary":"x"}`}}
	pm := NewProviderModel(prov, ModelOptions{AnalysisTemperature: 0.2}, nil)

	raw, err := pm.ExtractFields(context.Background(), "extract", "Customer: hi")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"x"}`, raw)
	require.Len(t, prov.messages, 1)
	assert.Equal(t, "extract\n\nCustomer: hi", prov.messages[0].Content)
	assert.Equal(t, 500, prov.options["max_tokens"])
	assert.Equal(t, 0.2, prov.options["temperature"])
}

func TestProviderModel_Errors(t *testing.T) {
	pm := NewProviderModel(&recordingProvider{err: errors.New("rate limited")}, ModelOptions{}, nil)
	_, err := pm.GenerateReply(context.Background(), "", nil)
	assert.ErrorContains(t, err, "rate limited")

	pm = NewProviderModel(&recordingProvider{}, ModelOptions{}, nil)
	_, err = pm.ExtractFields(context.Background(), "", "")
	assert.Error(t, err)
}

func TestProviderModel_EstimateCost(t *testing.T) {
	pm := NewProviderModel(&recordingProvider{}, ModelOptions{InputCostPerMTok: 3, OutputCostPerMTok: 15}, nil)
	cost := pm.estimateCost(&providers.UsageInfo{PromptTokens: 1_000_000, CompletionTokens: 100_000})
	assert.InDelta(t, 4.5, cost, 1e-9)
}
