package app

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"

	"live-quiz-service/internal/domain"
)

// questionSubmissions maps player id to that player's latest submission.
type questionSubmissions map[int]*domain.Submission

// questionOutcome is the scoring of one question.
type questionOutcome struct {
	// correct holds the ids of correct submitters, fastest first.
	correct []int
	rank    map[int]int
	score   map[int]float64
}

// isCorrect reports whether answerIDs is exactly the question's correct set.
func isCorrect(q domain.Question, answerIDs []int) bool {
	want := q.CorrectAnswerIDs()
	if len(want) != len(answerIDs) {
		return false
	}
	chosen := make(map[int]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		chosen[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := chosen[id]; !ok {
			return false
		}
	}
	return true
}

// scoreQuestion ranks correct submissions by submission time and awards
// points/rank to each. Equal timestamps fall back to submission order.
func scoreQuestion(q domain.Question, subs questionSubmissions) questionOutcome {
	correct := make([]*domain.Submission, 0, len(subs))
	for _, sub := range subs {
		if sub.Correct {
			correct = append(correct, sub)
		}
	}
	sort.Slice(correct, func(i, j int) bool {
		if !correct[i].SubmittedAt.Equal(correct[j].SubmittedAt) {
			return correct[i].SubmittedAt.Before(correct[j].SubmittedAt)
		}
		return correct[i].Seq < correct[j].Seq
	})

	out := questionOutcome{
		correct: make([]int, len(correct)),
		rank:    make(map[int]int, len(correct)),
		score:   make(map[int]float64, len(correct)),
	}
	for i, sub := range correct {
		rank := i + 1
		out.correct[i] = sub.PlayerID
		out.rank[sub.PlayerID] = rank
		out.score[sub.PlayerID] = float64(q.Points) / float64(rank)
	}
	return out
}

func buildQuestionResults(q domain.Question, subs questionSubmissions, players *playerRegistry) domain.QuestionResults {
	outcome := scoreQuestion(q, subs)

	names := make([]string, 0, len(outcome.correct))
	for _, id := range outcome.correct {
		if p, ok := players.get(id); ok {
			names = append(names, p.Name)
		}
	}
	breakdown := []domain.CorrectBreakdown{}
	if ids := q.CorrectAnswerIDs(); len(ids) > 0 {
		breakdown = append(breakdown, domain.CorrectBreakdown{
			AnswerID:       ids[0],
			PlayersCorrect: names,
		})
	}

	var avg float64
	if len(subs) > 0 {
		var total float64
		for _, sub := range subs {
			total += sub.AnswerTime.Seconds()
		}
		avg = total / float64(len(subs))
	}

	percent := 0
	if n := players.count(); n > 0 {
		percent = int(math.Round(100 * float64(len(outcome.correct)) / float64(n)))
	}

	return domain.QuestionResults{
		QuestionID:               q.ID,
		QuestionCorrectBreakdown: breakdown,
		AverageAnswerTime:        avg,
		PercentCorrect:           percent,
	}
}

func buildSessionResults(snapshot domain.QuizSnapshot, subs map[int]questionSubmissions, players *playerRegistry) domain.SessionResults {
	totals := make(map[int]float64, players.count())
	questions := make([]domain.QuestionResults, 0, snapshot.NumQuestions())
	for i, q := range snapshot.Questions {
		position := i + 1
		for id, score := range scoreQuestion(q, subs[position]).score {
			totals[id] += score
		}
		questions = append(questions, buildQuestionResults(q, subs[position], players))
	}

	ranked := make([]domain.RankedPlayer, 0, players.count())
	for _, p := range players.all() {
		ranked = append(ranked, domain.RankedPlayer{Name: p.Name, Score: totals[p.ID]})
	}
	// players.all is in join order, so a stable sort keeps join order among ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return domain.SessionResults{
		UsersRankedByScore: ranked,
		QuestionResults:    questions,
	}
}

// buildResultsCSV renders one row per player sorted by name with a score and
// rank column per question. Incorrect or missing answers score 0 with rank 0.
func buildResultsCSV(snapshot domain.QuizSnapshot, subs map[int]questionSubmissions, players *playerRegistry) ([]byte, error) {
	outcomes := make([]questionOutcome, snapshot.NumQuestions())
	header := []string{"player"}
	for i, q := range snapshot.Questions {
		outcomes[i] = scoreQuestion(q, subs[i+1])
		header = append(header, fmt.Sprintf("question%dscore", i+1), fmt.Sprintf("question%drank", i+1))
	}

	sorted := players.all()
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	for _, p := range sorted {
		row := []string{p.Name}
		for _, outcome := range outcomes {
			row = append(row, formatScore(outcome.score[p.ID]), strconv.Itoa(outcome.rank[p.ID]))
		}
		_ = w.Write(row)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush buffer: %w", err)
	}
	return buf.Bytes(), nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
