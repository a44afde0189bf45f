package service

import (
	"testing"

	"github.com/lshigami/Margays/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeAttemptMixedTypes(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.QuestionTypeMCQSingle, Points: 10, NegativeMarking: 2, CorrectAnswers: []string{"b"}},
		{ID: 2, Type: model.QuestionTypeMCQMultiple, Points: 10, NegativeMarking: 2, CorrectAnswers: []string{"a", "c"}},
		{ID: 3, Type: model.QuestionTypeShortText, Points: 5, CorrectAnswers: []string{"paris"}},
		{ID: 4, Type: model.QuestionTypeLongText, Points: 10},
	}
	answers := []model.Answer{
		{ID: 11, QuestionID: 1, AnswerData: "b"},
		{ID: 12, QuestionID: 2, AnswerData: `["b"]`},
		{ID: 13, QuestionID: 3, AnswerData: "  Paris "},
		{ID: 14, QuestionID: 4, AnswerData: "long essay text"},
	}

	outcome := NewGradingService().GradeAttempt(questions, answers)

	assert.Equal(t, 13.0, outcome.Score) // 10 - 2 + 5 + 0
	assert.Equal(t, 35.0, outcome.MaxScore)
	assert.Equal(t, 37, outcome.Percentage)

	byQuestion := map[uint]model.Answer{}
	for _, a := range outcome.Answers {
		byQuestion[a.QuestionID] = a
	}

	require.NotNil(t, byQuestion[1].IsCorrect)
	assert.True(t, *byQuestion[1].IsCorrect)
	assert.Equal(t, 10.0, byQuestion[1].PointsAwarded)

	require.NotNil(t, byQuestion[2].IsCorrect)
	assert.False(t, *byQuestion[2].IsCorrect)
	assert.Equal(t, -2.0, byQuestion[2].PointsAwarded)

	require.NotNil(t, byQuestion[3].IsCorrect)
	assert.True(t, *byQuestion[3].IsCorrect)
	assert.Equal(t, 5.0, byQuestion[3].PointsAwarded)

	assert.Nil(t, byQuestion[4].IsCorrect, "long text waits for manual grading")
	assert.Equal(t, 0.0, byQuestion[4].PointsAwarded)
}

func TestGradeAttemptDeterministic(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.QuestionTypeMCQSingle, Points: 4, NegativeMarking: 1, CorrectAnswers: []string{"a"}},
		{ID: 2, Type: model.QuestionTypeShortText, Points: 6, CorrectAnswers: []string{"mitochondria"}},
	}
	answers := []model.Answer{
		{ID: 1, QuestionID: 1, AnswerData: "c"},
		{ID: 2, QuestionID: 2, AnswerData: "Mitochondria"},
	}

	svc := NewGradingService()
	first := svc.GradeAttempt(questions, answers)
	second := svc.GradeAttempt(questions, answers)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Percentage, second.Percentage)
	assert.Equal(t, 5.0, first.Score)
}

func TestGradeAttemptMultipleChoiceSetEquality(t *testing.T) {
	question := model.Question{ID: 1, Type: model.QuestionTypeMCQMultiple, Points: 8, NegativeMarking: 3, CorrectAnswers: []string{"a", "c"}}
	svc := NewGradingService()

	cases := []struct {
		name    string
		payload string
		score   float64
	}{
		{"order does not matter", `["c","a"]`, 8},
		{"subset is wrong", `["a"]`, -3},
		{"superset is wrong", `["a","b","c"]`, -3},
		{"bare string tolerated", "a", -3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := svc.GradeAttempt([]model.Question{question}, []model.Answer{{ID: 1, QuestionID: 1, AnswerData: tc.payload}})
			assert.Equal(t, tc.score, outcome.Score)
		})
	}
}

func TestGradeAttemptBlanksCountIntoMaxOnly(t *testing.T) {
	questions := []model.Question{
		{ID: 1, Type: model.QuestionTypeMCQSingle, Points: 10, NegativeMarking: 5, CorrectAnswers: []string{"a"}},
		{ID: 2, Type: model.QuestionTypeMCQSingle, Points: 10, NegativeMarking: 5, CorrectAnswers: []string{"a"}},
	}
	outcome := NewGradingService().GradeAttempt(questions, []model.Answer{{ID: 1, QuestionID: 1, AnswerData: "a"}})

	assert.Equal(t, 10.0, outcome.Score, "blank must not attract negative marking")
	assert.Equal(t, 20.0, outcome.MaxScore)
	assert.Equal(t, 50, outcome.Percentage)
}

func TestGradeAttemptEmptyExam(t *testing.T) {
	outcome := NewGradingService().GradeAttempt(nil, nil)
	assert.Equal(t, 0.0, outcome.Score)
	assert.Equal(t, 0, outcome.Percentage, "zero max score maps to zero percent, not NaN")
}

func TestAggregateAfterManualGrading(t *testing.T) {
	svc := NewGradingService()
	answers := []model.Answer{
		{PointsAwarded: 10},
		{PointsAwarded: 7.5},
	}
	score, percentage := svc.Aggregate(answers, 25)
	assert.Equal(t, 17.5, score)
	assert.Equal(t, 70, percentage)
}

func TestPassedBoundary(t *testing.T) {
	svc := NewGradingService()
	assert.True(t, svc.Passed(50, 50))
	assert.False(t, svc.Passed(49, 50))
	assert.True(t, svc.Passed(0, 0))
}
