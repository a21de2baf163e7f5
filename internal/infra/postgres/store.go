package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/session"
)

// Store is the Postgres implementation of session.Store. A successful session
// update fans out through the configured publisher (Redis pub/sub in
// production) so watchers on any instance see the change.
type Store struct {
	pool *pgxpool.Pool
	pub  session.Publisher
}

func NewStore(pool *pgxpool.Pool, pub session.Publisher) *Store {
	return &Store{pool: pool, pub: pub}
}

const sessionColumns = `id, pin, quiz_id, host_id, mode, status, current_question_index, created_at, updated_at`

func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id))
}

func (s *Store) GetSessionByPIN(ctx context.Context, pin string) (domain.Session, error) {
	return s.scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE pin=$1`, pin))
}

func (s *Store) scanSession(row pgx.Row) (domain.Session, error) {
	var (
		sess domain.Session
		idx  sql.NullInt32
	)
	err := row.Scan(&sess.ID, &sess.PIN, &sess.QuizID, &sess.HostID, &sess.Mode,
		&sess.Status, &idx, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.CurrentQuestionIndex = domain.NoQuestion
	if idx.Valid {
		sess.CurrentQuestionIndex = int(idx.Int32)
	}
	return sess, nil
}

func (s *Store) PutSession(ctx context.Context, sess domain.Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sess.ID, sess.PIN, sess.QuizID, sess.HostID, sess.Mode, sess.Status,
		indexValue(sess.CurrentQuestionIndex), sess.CreatedAt, sess.UpdatedAt)
	var pgErr *pgconn.PgError
	// 23505 unique_violation on the pin index
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "sessions_pin_idx" {
		return fmt.Errorf("%w: %s", domain.ErrPINTaken, sess.PIN)
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, sess domain.Session) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status=$2, current_question_index=$3, updated_at=$4 WHERE id=$1`,
		sess.ID, sess.Status, indexValue(sess.CurrentQuestionIndex), sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	if s.pub != nil {
		s.pub.Publish(ctx, sess)
	}
	return nil
}

func (s *Store) InsertParticipant(ctx context.Context, p domain.Participant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO participants (id, session_id, display_name, email, phone, dedup_key, score, joined_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.SessionID, p.DisplayName, nullIfEmpty(p.Email), nullIfEmpty(p.Phone),
		nullIfEmpty(p.DedupKey), p.Score, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Store) FindParticipantByDedupKey(ctx context.Context, sessionID, key string) (domain.Participant, error) {
	var (
		p     domain.Participant
		email sql.NullString
		phone sql.NullString
		dedup sql.NullString
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, display_name, email, phone, dedup_key, score, joined_at
		 FROM participants WHERE session_id=$1 AND dedup_key=$2 LIMIT 1`,
		sessionID, key).
		Scan(&p.ID, &p.SessionID, &p.DisplayName, &email, &phone, &dedup, &p.Score, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	p.Email, p.Phone, p.DedupKey = email.String, phone.String, dedup.String
	return p, nil
}

func (s *Store) FindAnswer(ctx context.Context, sessionID, participantID string, questionIndex int) (domain.Answer, error) {
	var a domain.Answer
	err := s.pool.QueryRow(ctx,
		`SELECT id, session_id, participant_id, question_id, question_index, option_id, created_at
		 FROM answers WHERE session_id=$1 AND participant_id=$2 AND question_index=$3
		 ORDER BY created_at LIMIT 1`,
		sessionID, participantID, questionIndex).
		Scan(&a.ID, &a.SessionID, &a.ParticipantID, &a.QuestionID, &a.QuestionIndex, &a.OptionID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.Answer{}, fmt.Errorf("scan answer: %w", err)
	}
	return a, nil
}

func (s *Store) InsertAnswer(ctx context.Context, a domain.Answer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO answers (id, session_id, participant_id, question_id, question_index, option_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.SessionID, a.ParticipantID, a.QuestionID, a.QuestionIndex, a.OptionID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func indexValue(idx int) interface{} {
	if idx < 0 {
		return nil
	}
	return idx
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
