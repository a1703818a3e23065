package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchPassagesTool returns the search_passages tool definition.
func createSearchPassagesTool() mcp.Tool {
	return mcp.NewTool("search_passages",
		mcp.WithDescription("Search indexed clinical document passages by free-text query, optionally scoped to one patient"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text search query, e.g. \"hemoglobin trend\" or \"chest x-ray findings\""),
		),
		mcp.WithString("patient_id",
			mcp.Description("Restrict the search to this patient's documents"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("Maximum passages to return (default: 5, max: 25)"),
		),
	)
}

// createGetPatientDocumentsTool returns the get_patient_documents tool definition.
func createGetPatientDocumentsTool() mcp.Tool {
	return mcp.NewTool("get_patient_documents",
		mcp.WithDescription("List the documents on file for a patient, most recent first, with type and processing status"),
		mcp.WithString("patient_id",
			mcp.Required(),
			mcp.Description("Patient identifier"),
		),
	)
}

// createPreviewContextTool returns the preview_context tool definition.
func createPreviewContextTool() mcp.Tool {
	return mcp.NewTool("preview_context",
		mcp.WithDescription("Dry-run the retrieval pipeline for a question: shows the strategy, items, and token usage a chat turn would inject, without calling the model"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to preview context for"),
		),
		mcp.WithString("patient_id",
			mcp.Description("Patient to retrieve context for; patient-scoped strategies require it"),
		),
		mcp.WithString("strategy",
			mcp.Description("Force a strategy instead of automatic selection: vectors_only, full_docs_only, hybrid_smart, hybrid_priority_vectors, hybrid_priority_full"),
		),
	)
}
