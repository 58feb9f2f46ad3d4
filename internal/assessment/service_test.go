package assessment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/catalog"
	"github.com/kassandra-app/kassandra/internal/identity"
)

type storedAnswer struct {
	choiceID   int64
	answeredAt time.Time
}

type stubLedger struct {
	questions []*catalog.Question
	answers   map[string]storedAnswer
}

func newStubLedger(questions ...*catalog.Question) *stubLedger {
	return &stubLedger{
		questions: questions,
		answers:   make(map[string]storedAnswer),
	}
}

func answerKey(userID uuid.UUID, questionID int64) string {
	return fmt.Sprintf("%s|%d", userID, questionID)
}

func (s *stubLedger) UpsertAnswer(_ context.Context, userID uuid.UUID, questionID, choiceID int64, at time.Time) error {
	s.answers[answerKey(userID, questionID)] = storedAnswer{choiceID: choiceID, answeredAt: at}
	return nil
}

func (s *stubLedger) FirstUnanswered(_ context.Context, userID uuid.UUID) (*catalog.Question, error) {
	for _, q := range s.questions {
		if _, ok := s.answers[answerKey(userID, q.ID)]; !ok {
			return q, nil
		}
	}
	return nil, nil
}

func (s *stubLedger) ListAnswered(_ context.Context, userID uuid.UUID) ([]AnsweredQuestion, error) {
	var out []AnsweredQuestion
	for _, q := range s.questions {
		a, ok := s.answers[answerKey(userID, q.ID)]
		if !ok {
			continue
		}
		aq := AnsweredQuestion{
			QuestionID: q.ID,
			Question:   q.Text,
			ChoiceID:   a.choiceID,
			AnsweredAt: a.answeredAt,
		}
		for _, c := range q.Choices {
			if c.ID == a.choiceID {
				aq.Choice = c.Text
				aq.Metadata = c.Metadata
			}
		}
		out = append(out, aq)
	}
	return out, nil
}

type stubCatalog struct {
	questions map[int64]*catalog.Question
	choices   map[int64]*catalog.Choice
}

func (s *stubCatalog) GetQuestion(_ context.Context, id int64) (*catalog.Question, error) {
	if q, ok := s.questions[id]; ok {
		return q, nil
	}
	return nil, apperr.NotFound("question %d", id)
}

func (s *stubCatalog) GetChoice(_ context.Context, id int64) (*catalog.Choice, error) {
	if c, ok := s.choices[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("choice %d", id)
}

type stubUsers struct {
	users map[uuid.UUID]*identity.User
}

func (s *stubUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %s", id)
}

func catalogForTest() (*stubLedger, *stubCatalog) {
	q1 := &catalog.Question{
		ID: 1, Text: "Q1", Category: "personality",
		Choices: []catalog.Choice{
			{ID: 11, QuestionID: 1, Text: "A"},
			{ID: 12, QuestionID: 1, Text: "B"},
		},
	}
	q2 := &catalog.Question{
		ID: 2, Text: "Q2", Category: "general",
		Choices: []catalog.Choice{
			{ID: 21, QuestionID: 2, Text: "C"},
			{ID: 22, QuestionID: 2, Text: "D"},
		},
	}

	cat := &stubCatalog{
		questions: map[int64]*catalog.Question{},
		choices:   map[int64]*catalog.Choice{},
	}
	for _, q := range []*catalog.Question{q1, q2} {
		cat.questions[q.ID] = q
		for i := range q.Choices {
			c := q.Choices[i]
			cat.choices[c.ID] = &c
		}
	}

	return newStubLedger(q1, q2), cat
}

func serviceForTest(t *testing.T) (*Service, *stubLedger, uuid.UUID) {
	t.Helper()

	ledger, cat := catalogForTest()
	userID := uuid.New()
	users := &stubUsers{users: map[uuid.UUID]*identity.User{
		userID: {ID: userID, Kind: identity.KindAnonymous},
	}}

	return NewService(ledger, cat, users), ledger, userID
}

func TestProgressionThroughCatalog(t *testing.T) {
	svc, _, userID := serviceForTest(t)
	ctx := context.Background()

	q, err := svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, q)
	require.EqualValues(t, 1, q.ID)

	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 11))

	q, err = svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, q)
	require.EqualValues(t, 2, q.ID)

	require.NoError(t, svc.RecordAnswer(ctx, userID, 2, 22))

	q, err = svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, q, "all questions answered")
}

func TestNextQuestionSkipsAnswered(t *testing.T) {
	svc, ledger, userID := serviceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 12))

	q, err := svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, q)
	_, answered := ledger.answers[answerKey(userID, q.ID)]
	require.False(t, answered, "next question must not be in the user's answer set")
}

func TestNextQuestionIsIdempotent(t *testing.T) {
	svc, _, userID := serviceForTest(t)
	ctx := context.Background()

	first, err := svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	second, err := svc.NextQuestion(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestNextQuestionEmptyCatalog(t *testing.T) {
	userID := uuid.New()
	users := &stubUsers{users: map[uuid.UUID]*identity.User{
		userID: {ID: userID, Kind: identity.KindAnonymous},
	}}
	svc := NewService(newStubLedger(), &stubCatalog{
		questions: map[int64]*catalog.Question{},
		choices:   map[int64]*catalog.Choice{},
	}, users)

	q, err := svc.NextQuestion(context.Background(), userID)
	require.NoError(t, err)
	require.Nil(t, q)
}

func TestRecordAnswerIdempotent(t *testing.T) {
	svc, ledger, userID := serviceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 11))
	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 11))

	require.Len(t, ledger.answers, 1, "exactly one row per (user, question)")
	require.EqualValues(t, 11, ledger.answers[answerKey(userID, 1)].choiceID)
}

func TestRecordAnswerOverwrites(t *testing.T) {
	svc, ledger, userID := serviceForTest(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 11))

	svc.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, svc.RecordAnswer(ctx, userID, 1, 12))

	require.Len(t, ledger.answers, 1)
	stored := ledger.answers[answerKey(userID, 1)]
	require.EqualValues(t, 12, stored.choiceID)
	require.Equal(t, base.Add(time.Minute), stored.answeredAt)
}

func TestRecordAnswerRejectsForeignChoice(t *testing.T) {
	svc, ledger, userID := serviceForTest(t)

	// Choice 21 belongs to question 2
	err := svc.RecordAnswer(context.Background(), userID, 1, 21)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Empty(t, ledger.answers)
}

func TestRecordAnswerRejectsUnknownQuestion(t *testing.T) {
	svc, ledger, userID := serviceForTest(t)

	err := svc.RecordAnswer(context.Background(), userID, 999, 11)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Empty(t, ledger.answers)
}

func TestRecordAnswerRejectsUnknownChoice(t *testing.T) {
	svc, _, userID := serviceForTest(t)

	err := svc.RecordAnswer(context.Background(), userID, 1, 999)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRecordAnswerUnknownUser(t *testing.T) {
	svc, _, _ := serviceForTest(t)

	err := svc.RecordAnswer(context.Background(), uuid.New(), 1, 11)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
