// Package anthropic defines the wire types for the Messages API: messages,
// content blocks, raw server-sent stream events, and request parameters.
//
// Content blocks and stream events are tagged unions discriminated by their
// "type" field. They are represented as flat structs carrying the superset of
// variant fields; consumers dispatch on Type. Unrecognised block variants are
// preserved verbatim so server additions round-trip untouched.
package anthropic
