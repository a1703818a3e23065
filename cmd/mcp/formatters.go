package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

const passagePreviewRunes = 300

// formatPassages renders search hits as markdown, one section per passage.
func formatPassages(query string, passages []domain.RetrievedPassage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Passages for %q (%d results)\n\n", query, len(passages)))

	if len(passages) == 0 {
		sb.WriteString("No indexed passages matched.\n")
		return sb.String()
	}

	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, p.Filename))
		sb.WriteString(fmt.Sprintf("**Document:** %s (chunk %d)\n", p.DocumentID, p.ChunkIndex))
		if p.DocumentType != "" {
			sb.WriteString(fmt.Sprintf("**Type:** %s\n", p.DocumentType))
		}
		if !p.DocumentDate.IsZero() {
			sb.WriteString(fmt.Sprintf("**Date:** %s\n", p.DocumentDate.Format("2006-01-02")))
		}
		sb.WriteString(fmt.Sprintf("**Score:** %.2f (confidence %.2f)\n\n", p.Score, p.Confidence))
		sb.WriteString(clip(p.Text, passagePreviewRunes))
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatPatientDocuments renders a patient's document list as markdown.
func formatPatientDocuments(patientID string, docs []domain.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Documents for patient %s (%d)\n\n", patientID, len(docs)))

	if len(docs) == 0 {
		sb.WriteString("No documents on file.\n")
		return sb.String()
	}

	for i, d := range docs {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, d.Filename))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", d.ID))
		sb.WriteString(fmt.Sprintf("**Status:** %s\n", d.Status))
		if d.Type != "" {
			sb.WriteString(fmt.Sprintf("**Type:** %s (confidence %.2f)\n", d.Type, d.Confidence))
		}
		if !d.DocumentDate.IsZero() {
			sb.WriteString(fmt.Sprintf("**Date:** %s\n", d.DocumentDate.Format("2006-01-02")))
		}
		if d.Summary != "" {
			sb.WriteString(fmt.Sprintf("**Summary:** %s\n", d.Summary))
		}
		if d.Status == domain.StatusFailed && d.Error != "" {
			sb.WriteString(fmt.Sprintf("**Error:** %s\n", d.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatContextPreview renders the dry-run assembly verdict: the chosen
// strategy, aggregate shape, then each item the turn would inject.
func formatContextPreview(question string, preview *domain.ContextPreview) string {
	var sb strings.Builder
	meta := preview.Context

	sb.WriteString(fmt.Sprintf("## Context preview for %q\n\n", question))

	strategy := string(meta.Strategy)
	if meta.Explicit {
		strategy += " (explicit)"
	}
	if meta.Substituted {
		strategy += " (substituted)"
	}
	sb.WriteString(fmt.Sprintf("**Strategy:** %s\n", strategy))
	if len(meta.Reasons) > 0 {
		sb.WriteString(fmt.Sprintf("**Reasons:** %s\n", strings.Join(meta.Reasons, "; ")))
	}

	if !meta.ContextUsed {
		sb.WriteString("\nNo context would be injected for this question.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("**Items:** %d passages, %d full documents\n", meta.PassageCount, meta.FullDocumentCount))
	sb.WriteString(fmt.Sprintf("**Tokens:** %d of %d budget\n", meta.TokenEstimate, meta.BudgetTokens))
	sb.WriteString(fmt.Sprintf("**Confidence:** %.2f\n", meta.Confidence))
	sb.WriteString(fmt.Sprintf("**Relevance:** %d high / %d medium / %d low\n",
		preview.Buckets.High, preview.Buckets.Medium, preview.Buckets.Low))
	if breakdown := formatTypeBreakdown(preview.TypeBreakdown); breakdown != "" {
		sb.WriteString(fmt.Sprintf("**Document types:** %s\n", breakdown))
	}
	if meta.Truncated {
		sb.WriteString("**Truncated:** the token budget cut one or more candidate items\n")
	}
	for _, warning := range meta.Warnings {
		sb.WriteString(fmt.Sprintf("**Warning:** %s\n", warning))
	}
	sb.WriteString("\n")

	for i, item := range preview.Items {
		sb.WriteString(fmt.Sprintf("### %d. %s [%s]\n", i+1, item.Filename, item.Kind))
		sb.WriteString(fmt.Sprintf("**Document:** %s\n", item.DocumentID))
		if item.DocumentType != "" {
			sb.WriteString(fmt.Sprintf("**Type:** %s\n", item.DocumentType))
		}
		sb.WriteString(fmt.Sprintf("**Confidence:** %.2f (~%d tokens)\n", item.Confidence, item.TokenEstimate))
		if item.Excerpt != "" {
			sb.WriteString("\n")
			sb.WriteString(item.Excerpt)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatTypeBreakdown flattens the per-type counts in stable order.
func formatTypeBreakdown(breakdown map[domain.DocumentType]int) string {
	if len(breakdown) == 0 {
		return ""
	}
	types := make([]string, 0, len(breakdown))
	for t := range breakdown {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", t, breakdown[domain.DocumentType(t)]))
	}
	return strings.Join(parts, ", ")
}

func clip(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
