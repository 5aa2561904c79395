// Package tools defines tool contracts and implementations.
//
// Includes:
//   - Tool: name, request descriptor, handler.
//   - NewTool / GenerateSchema[T](): function tools with JSON Schema derived
//     from Go structs.
//   - Registry: name-addressed tool set; duplicate names rejected.
//   - MemoryTool: the memory_20250818 builtin dispatching commands to a
//     pluggable backend.
//   - File tools: read_file, list_files (non-recursive), edit_file over a
//     fsio sandbox.
package tools
