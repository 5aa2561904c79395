// Package runner drives the agentic tool-use loop: send the conversation,
// execute requested tools, append the results, repeat until the model stops
// asking for tools or an iteration cap is hit. An optional compaction
// control summarises the conversation when token usage crosses a threshold.
package runner
