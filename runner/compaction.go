package runner

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/fennelworks/claude-go/anthropic"
)

// DefaultCompactionThreshold is the token count at which compaction fires
// when CompactionControl does not set one.
const DefaultCompactionThreshold = 100_000

// DefaultSummaryPrompt instructs the model to write the continuation
// summary that replaces the conversation history.
const DefaultSummaryPrompt = `You have been working on the task described above but have not yet completed it. Write a continuation summary that will allow you (or another instance of yourself) to resume work efficiently in a future context window where the conversation history will be replaced with this summary. Your summary should be structured, concise, and actionable. Include:
1. Task Overview
The user's core request and success criteria
Any clarifications or constraints they specified
2. Current State
What has been completed so far
Files created, modified, or analyzed (with paths if relevant)
Key outputs or artifacts produced
3. Important Discoveries
Technical constraints or requirements uncovered
Decisions made and their rationale
Errors encountered and how they were resolved
What approaches were tried that didn't work (and why)
4. Next Steps
Specific actions needed to complete the task
Any blockers or open questions to resolve
Priority order if multiple steps remain
5. Context to Preserve
User preferences or style requirements
Domain-specific details that aren't obvious
Any promises made to the user
Be concise but complete—err on the side of including information that would prevent duplicate work or repeated mistakes. Write in a way that enables immediate resumption of the task.
Wrap your summary in <summary></summary> tags.`

// CompactionControl configures automatic conversation compaction. When the
// cumulative token usage of the last response crosses the threshold, the
// message history is summarised by a one-shot request and replaced with a
// single user message carrying the summary.
type CompactionControl struct {
	// Enabled turns compaction on.
	Enabled bool
	// ContextTokenThreshold overrides DefaultCompactionThreshold.
	ContextTokenThreshold int64
	// Model for the summary request; defaults to the loop's model.
	Model string
	// SummaryPrompt overrides DefaultSummaryPrompt.
	SummaryPrompt string
}

func usageTokens(u anthropic.Usage) int64 {
	return u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens + u.OutputTokens
}

// blockIsToolUse reports whether a request content block is a tool_use,
// including opaque raw blocks.
func blockIsToolUse(p *anthropic.ContentBlockParam) bool {
	if len(p.Raw) > 0 {
		return gjson.GetBytes(p.Raw, "type").String() == anthropic.BlockTypeToolUse
	}
	return p.Type == anthropic.BlockTypeToolUse
}

// checkAndCompact compacts the conversation when the threshold is crossed.
// Returns true when compaction replaced the history, in which case tool
// response generation is skipped for this iteration. Compaction failures
// are logged and the loop continues with the history untouched.
func (b *base) checkAndCompact(ctx context.Context) bool {
	cc := b.opts.compaction
	if cc == nil || !cc.Enabled {
		return false
	}

	var tokens int64
	if b.lastMessage != nil {
		tokens = usageTokens(b.lastMessage.Usage)
	}
	tokens += b.carryTokens
	b.carryTokens = 0

	threshold := cc.ContextTokenThreshold
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	if tokens < threshold {
		return false
	}

	b.opts.log.Info().Int64("tokens", tokens).Int64("threshold", threshold).
		Msg("token usage has exceeded the threshold, performing compaction")

	model := cc.Model
	if model == "" {
		model = b.params.Model
	}
	prompt := cc.SummaryPrompt
	if prompt == "" {
		prompt = DefaultSummaryPrompt
	}

	messages := append([]anthropic.MessageParam(nil), b.params.Messages...)
	if n := len(messages); n > 0 && messages[n-1].Role == anthropic.RoleAssistant {
		// Strip tool_use blocks from the trailing assistant message: they
		// have no tool_result yet and the API rejects the dangling pair.
		var kept []anthropic.ContentBlockParam
		for i := range messages[n-1].Content {
			if !blockIsToolUse(&messages[n-1].Content[i]) {
				kept = append(kept, messages[n-1].Content[i])
			}
		}
		if len(kept) > 0 {
			messages[n-1].Content = kept
		} else {
			messages = messages[:n-1]
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	resp, err := b.caller.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		Messages:  messages,
		MaxTokens: b.params.MaxTokens,
	})
	if err != nil {
		b.opts.log.Error().Err(err).Msg("compaction request failed, keeping history")
		return false
	}
	b.carryTokens = usageTokens(resp.Usage)

	if len(resp.Content) == 0 || resp.Content[0].Type != anthropic.BlockTypeText {
		b.opts.log.Error().Msg("compaction response content is not of type 'text', keeping history")
		return false
	}

	b.opts.log.Info().Int64("output_tokens", resp.Usage.OutputTokens).Msg("compaction complete")
	b.params.Messages = []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(resp.Content[0].Text)),
	}
	return true
}
