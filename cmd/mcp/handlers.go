package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

const (
	searchDefaultTopN = 5
	searchMaxTopN     = 25
)

// handleSearchPassages implements the search_passages tool.
func handleSearchPassages(vectors ports.VectorIndex) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return textResult("Error: query parameter is required"), nil
		}

		topN := request.GetInt("top_n", searchDefaultTopN)
		if topN < 1 {
			topN = searchDefaultTopN
		}
		if topN > searchMaxTopN {
			topN = searchMaxTopN
		}
		patientID := request.GetString("patient_id", "")

		passages, err := vectors.Search(ctx, query, topN, domain.SearchFilter{PatientID: patientID})
		if err != nil {
			slog.Error("mcp_search_passages_failed", "error", err)
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatPassages(query, passages)), nil
	}
}

// handleGetPatientDocuments implements the get_patient_documents tool.
func handleGetPatientDocuments(documents ports.DocumentReader) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patientID, err := request.RequireString("patient_id")
		if err != nil || strings.TrimSpace(patientID) == "" {
			return textResult("Error: patient_id parameter is required"), nil
		}

		docs, err := documents.ListByPatient(ctx, patientID)
		if err != nil {
			slog.Error("mcp_get_patient_documents_failed", "patient_id", patientID, "error", err)
			return textResult(fmt.Sprintf("Lookup error: %v", err)), nil
		}

		return textResult(formatPatientDocuments(patientID, docs)), nil
	}
}

// handlePreviewContext implements the preview_context tool. Strategy and
// patient validation stay in the use case, the handler only relays its
// verdict.
func handlePreviewContext(previewer ports.ContextPreviewer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return textResult("Error: question parameter is required"), nil
		}

		preview, err := previewer.Preview(ctx, domain.ChatRequest{
			PatientID: request.GetString("patient_id", ""),
			Strategy:  request.GetString("strategy", ""),
			Messages:  []domain.ChatMessage{{Role: domain.RoleUser, Content: question}},
		})
		if err != nil {
			slog.Error("mcp_preview_context_failed", "error", err)
			return textResult(fmt.Sprintf("Preview error: %v", err)), nil
		}

		return textResult(formatContextPreview(question, preview)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
