package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

// SessionRepository stores chat turns keyed by session id.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) AppendTurn(ctx context.Context, turn domain.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_turns (
	id, session_id, patient_id, question, answer, strategy, context_used,
	confidence, context_tokens, prompt_tokens, completion_tokens, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		turn.ID, turn.SessionID, turn.PatientID, turn.Question, turn.Answer,
		string(turn.Strategy), turn.ContextUsed, turn.Confidence,
		turn.ContextTokens, turn.PromptTokens, turn.CompletionTokens, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

func (r *SessionRepository) RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, patient_id, question, answer, strategy, context_used,
	confidence, context_tokens, prompt_tokens, completion_tokens, created_at
FROM chat_turns
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatTurn, 0, limit)
	for rows.Next() {
		var turn domain.ChatTurn
		var strategy string
		if err := rows.Scan(
			&turn.ID, &turn.SessionID, &turn.PatientID, &turn.Question, &turn.Answer,
			&strategy, &turn.ContextUsed, &turn.Confidence,
			&turn.ContextTokens, &turn.PromptTokens, &turn.CompletionTokens, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		turn.Strategy = domain.ContextStrategy(strategy)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
