package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/duongtq7/CapstoneProject/internal/domain/port"
)

// KeyframeStore persists selected keyframes and their embeddings in a single
// transaction so a job never leaves half of its keyframes behind.
type KeyframeStore struct {
	pool *pgxpool.Pool
}

func NewKeyframeStore(pool *pgxpool.Pool) *KeyframeStore {
	return &KeyframeStore{pool: pool}
}

func (s *KeyframeStore) SaveKeyframes(ctx context.Context, records []port.KeyframeRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin keyframe tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertKeyframe := `
		INSERT INTO keyframes (media_id, job_id, frame_idx)
		VALUES ($1, $2, $3)
		RETURNING id`

	insertEmbedding := `
		INSERT INTO keyframe_embeddings (keyframe_id, embedding)
		VALUES ($1, $2)`

	for _, rec := range records {
		var keyframeID int64
		err := tx.QueryRow(ctx, insertKeyframe, rec.MediaID, rec.JobID, rec.FrameIdx).Scan(&keyframeID)
		if err != nil {
			return fmt.Errorf("insert keyframe %d: %w", rec.FrameIdx, err)
		}
		if len(rec.Embedding) == 0 {
			continue
		}
		_, err = tx.Exec(ctx, insertEmbedding, keyframeID, pgvector.NewVector(rec.Embedding))
		if err != nil {
			return fmt.Errorf("insert embedding for keyframe %d: %w", rec.FrameIdx, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit keyframe tx: %w", err)
	}
	return nil
}
