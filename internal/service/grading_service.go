package service

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/lshigami/Margays/internal/model"
)

// GradeOutcome is the result of one scoring pass. Answers carries the graded
// copies (correctness and awarded points filled in) for persistence.
type GradeOutcome struct {
	Score      float64
	MaxScore   float64
	Percentage int
	Answers    []model.Answer
}

// GradingService is a pure function over the exam's questions and the
// submitted answers. It holds no state and never touches storage, so repeated
// invocation with the same inputs yields the same outcome.
type GradingService interface {
	GradeAttempt(questions []model.Question, answers []model.Answer) GradeOutcome
	Aggregate(answers []model.Answer, maxScore float64) (score float64, percentage int)
	Passed(percentage int, passingScore int) bool
}

type gradingService struct{}

func NewGradingService() GradingService {
	return &gradingService{}
}

func (s *gradingService) GradeAttempt(questions []model.Question, answers []model.Answer) GradeOutcome {
	answerByQuestion := make(map[uint]*model.Answer, len(answers))
	graded := make([]model.Answer, len(answers))
	copy(graded, answers)
	for i := range graded {
		answerByQuestion[graded[i].QuestionID] = &graded[i]
	}

	var totalScore, maxScore float64
	for _, question := range questions {
		maxScore += question.Points

		answer, ok := answerByQuestion[question.ID]
		if !ok {
			// Unanswered questions contribute to the max score only; no
			// negative marking for a blank.
			continue
		}

		switch question.Type {
		case model.QuestionTypeMCQSingle:
			correct := len(question.CorrectAnswers) > 0 && answer.AnswerData == question.CorrectAnswers[0]
			awardChoice(answer, &question, correct)
			totalScore += answer.PointsAwarded

		case model.QuestionTypeMCQMultiple:
			correct := sameStringSet(decodeSelection(answer.AnswerData), question.CorrectAnswers)
			awardChoice(answer, &question, correct)
			totalScore += answer.PointsAwarded

		case model.QuestionTypeShortText:
			expected := ""
			if len(question.CorrectAnswers) > 0 {
				expected = question.CorrectAnswers[0]
			}
			correct := foldText(answer.AnswerData) == foldText(expected)
			isCorrect := correct
			answer.IsCorrect = &isCorrect
			if correct {
				answer.PointsAwarded = question.Points
			} else {
				answer.PointsAwarded = 0
			}
			totalScore += answer.PointsAwarded

		default:
			// Long text and file uploads wait for manual grading: correctness
			// unknown, zero points for now.
			answer.IsCorrect = nil
			answer.PointsAwarded = 0
		}
	}

	return GradeOutcome{
		Score:      totalScore,
		MaxScore:   maxScore,
		Percentage: percentageOf(totalScore, maxScore),
		Answers:    graded,
	}
}

// Aggregate recomputes the raw score and percentage after a manual grading
// adjustment. The max score is fixed at submission time and never changes.
func (s *gradingService) Aggregate(answers []model.Answer, maxScore float64) (float64, int) {
	var score float64
	for i := range answers {
		score += answers[i].PointsAwarded
	}
	return score, percentageOf(score, maxScore)
}

func (s *gradingService) Passed(percentage int, passingScore int) bool {
	return percentage >= passingScore
}

// awardChoice applies the shared reward/penalty rule of the choice types:
// full points when correct, the negative-marking magnitude deducted otherwise.
func awardChoice(answer *model.Answer, question *model.Question, correct bool) {
	isCorrect := correct
	answer.IsCorrect = &isCorrect
	if correct {
		answer.PointsAwarded = question.Points
	} else {
		answer.PointsAwarded = -question.NegativeMarking
	}
}

func percentageOf(score, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}
	return int(math.Round(score / maxScore * 100))
}

// decodeSelection parses a multiple-choice payload. The client sends a JSON
// array; a bare string is tolerated as a single selection.
func decodeSelection(payload string) []string {
	var selected []string
	if err := json.Unmarshal([]byte(payload), &selected); err != nil {
		if payload == "" {
			return nil
		}
		return []string{payload}
	}
	return selected
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func foldText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
