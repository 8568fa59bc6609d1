package di

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
)

func TestApplyFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-provider", "gemini", "-storage", "memory", "-top", "3"}))

	cfg := config.NewFromViper(config.NewEmptyViper())
	applyFlags(cfg, flags)

	assert.Equal(t, "gemini", cfg.GetLLM().EmbeddingProvider)
	assert.Equal(t, "memory", cfg.GetStorage().Type)
	assert.Equal(t, 3, cfg.GetBrief().TopN)
	assert.Equal(t, "gmail", cfg.GetMail().Connector)
}

func TestBriefOptions(t *testing.T) {
	v := config.NewEmptyViper()
	v.Set("brief.top_n", 5)
	v.Set("delivery.recipient", "me@example.com")
	v.Set("scoring.workers", 2)

	opts := BriefOptions(config.NewFromViper(v))
	assert.Equal(t, 5, opts.TopN)
	assert.Equal(t, "me@example.com", opts.Recipient)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 0.7, opts.CriticalScore)
}

func TestBuildCLIContainer(t *testing.T) {
	t.Setenv("DAILY_BRIEF_OPENAI_API_KEY", "")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-storage", "memory", "-connector", "none"}))

	container, err := BuildCLIContainer(flags)
	require.NoError(t, err)

	err = container.Invoke(func(briefs *core.BriefService, feedback *core.FeedbackService, store core.Storage) {
		assert.NotNil(t, briefs)
		assert.NotNil(t, feedback)
		assert.NotNil(t, store)
	})
	assert.NoError(t, err)
}
