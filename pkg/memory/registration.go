package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/open-assistants-lab/executive-assistant-sub000/pkg/toolexecutor"
)

// ToolExecutor interface for registering tools
// This avoids circular dependency with pkg/toolexecutor
type ToolExecutor interface {
	RegisterTool(def toolexecutor.ToolDefinition) error
}

// RegisterMemoryTools registers all memory tools with the tool executor.
// The resolver binds each call to a user's store; pass nil to use the
// context binding set by WithStore.
func RegisterMemoryTools(executor ToolExecutor, resolver StoreResolver) error {
	if resolver == nil {
		resolver = ResolveFromContext
	}

	tools := []toolexecutor.ToolDefinition{
		{
			Name:        "memory_search",
			Description: "Search memories by query using hybrid keyword and semantic search. Returns an index of matching records; use memory_get for full detail.",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "query",
					Type:        "string",
					Description: "Search query; omit to list memories by date",
					Required:    false,
				},
				{
					Name:        "type",
					Type:        "string",
					Description: fmt.Sprintf("Filter by memory type (%s)", joinTypes()),
					Required:    false,
				},
				{
					Name:        "project",
					Type:        "string",
					Description: "Filter by project tag",
					Required:    false,
				},
				{
					Name:        "date_start",
					Type:        "string",
					Description: "Only memories on or after this date (YYYY-MM-DD)",
					Required:    false,
				},
				{
					Name:        "date_end",
					Type:        "string",
					Description: "Only memories on or before this date (YYYY-MM-DD)",
					Required:    false,
				},
				{
					Name:        "limit",
					Type:        "integer",
					Description: "Maximum number of results to return",
					Required:    false,
					Default:     defaultSearchLimit,
				},
				{
					Name:        "offset",
					Type:        "integer",
					Description: "Number of results to skip, for paging",
					Required:    false,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				store, err := resolver(ctx)
				if err != nil {
					return nil, err
				}
				var searchParams MemorySearchParams
				if err := decodeParams(params, &searchParams); err != nil {
					return nil, err
				}
				return MemorySearch(ctx, store, searchParams)
			},
		},
		{
			Name:        "memory_timeline",
			Description: "Show memories chronologically around an anchor memory, located by id or by search query",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "anchor_id",
					Type:        "string",
					Description: "Id of the memory to anchor the timeline on",
					Required:    false,
				},
				{
					Name:        "query",
					Type:        "string",
					Description: "Search query to locate the anchor when no id is known",
					Required:    false,
				},
				{
					Name:        "depth_before",
					Type:        "integer",
					Description: "Number of memories to show before the anchor",
					Required:    false,
					Default:     defaultTimelineDepth,
				},
				{
					Name:        "depth_after",
					Type:        "integer",
					Description: "Number of memories to show after the anchor",
					Required:    false,
					Default:     defaultTimelineDepth,
				},
				{
					Name:        "project",
					Type:        "string",
					Description: "Restrict the timeline to one project",
					Required:    false,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				store, err := resolver(ctx)
				if err != nil {
					return nil, err
				}
				var timelineParams MemoryTimelineParams
				if err := decodeParams(params, &timelineParams); err != nil {
					return nil, err
				}
				return MemoryTimeline(ctx, store, timelineParams)
			},
		},
		{
			Name:        "memory_get",
			Description: fmt.Sprintf("Retrieve full detail for specific memories by id (up to %d per call)", MaxBatchGet),
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "ids",
					Type:        "array",
					Description: "Memory ids to retrieve",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				store, err := resolver(ctx)
				if err != nil {
					return nil, err
				}
				var getParams MemoryGetParams
				if err := decodeParams(params, &getParams); err != nil {
					return nil, err
				}
				return MemoryGet(ctx, store, getParams)
			},
		},
		{
			Name:        "memory_save",
			Description: "Save a new memory record",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "title",
					Type:        "string",
					Description: "Short headline for the memory",
					Required:    true,
				},
				{
					Name:        "type",
					Type:        "string",
					Description: fmt.Sprintf("Memory type (%s)", joinTypes()),
					Required:    true,
				},
				{
					Name:        "subtitle",
					Type:        "string",
					Description: "One-line elaboration of the title",
					Required:    false,
				},
				{
					Name:        "narrative",
					Type:        "string",
					Description: "Full prose account of the memory",
					Required:    false,
				},
				{
					Name:        "project",
					Type:        "string",
					Description: "Project tag",
					Required:    false,
				},
				{
					Name:        "facts",
					Type:        "array",
					Description: "Discrete factual statements",
					Required:    false,
				},
				{
					Name:        "concepts",
					Type:        "array",
					Description: "Topic keywords",
					Required:    false,
				},
				{
					Name:        "entities",
					Type:        "array",
					Description: "People, systems, or organizations mentioned",
					Required:    false,
				},
				{
					Name:        "occurred_at",
					Type:        "string",
					Description: "When the remembered event happened (YYYY-MM-DD)",
					Required:    false,
				},
				{
					Name:        "confidence",
					Type:        "number",
					Description: "Confidence in the memory (0-1)",
					Required:    false,
				},
				{
					Name:        "source",
					Type:        "string",
					Description: fmt.Sprintf("How the memory was obtained (%s)", joinSources()),
					Required:    false,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				store, err := resolver(ctx)
				if err != nil {
					return nil, err
				}
				var saveParams MemorySaveParams
				if err := decodeParams(params, &saveParams); err != nil {
					return nil, err
				}
				return MemorySave(ctx, store, saveParams)
			},
		},
		{
			Name:        "memory_delete",
			Description: "Archive a memory so it no longer appears in search, timeline, or retrieval",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "id",
					Type:        "string",
					Description: "Id of the memory to archive",
					Required:    true,
				},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				store, err := resolver(ctx)
				if err != nil {
					return nil, err
				}
				var deleteParams MemoryDeleteParams
				if err := decodeParams(params, &deleteParams); err != nil {
					return nil, err
				}
				return MemoryDelete(ctx, store, deleteParams)
			},
		},
	}

	// Register each tool
	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}

	return nil
}

func joinTypes() string {
	return strings.Join(ValidTypes(), ", ")
}

func joinSources() string {
	return strings.Join(ValidSources(), ", ")
}
