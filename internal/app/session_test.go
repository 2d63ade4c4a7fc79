package app

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestSessionTransitions(t *testing.T) {
	s := newTestSession(0)

	requireState := func(want domain.SessionState, wantPos int) {
		t.Helper()
		state, pos := s.State()
		require.Equal(t, want, state)
		require.Equal(t, wantPos, pos)
	}

	requireState(domain.StateLobby, 0)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	requireState(domain.StateQuestionCountdown, 1)
	assert.Equal(t, DefaultCountdown, s.sched.last().d)

	s.sched.fireLast()
	requireState(domain.StateQuestionOpen, 1)
	assert.Equal(t, 5*time.Second, s.sched.last().d)

	s.sched.fireLast()
	requireState(domain.StateQuestionClose, 1)

	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	requireState(domain.StateAnswerShow, 1)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	requireState(domain.StateQuestionCountdown, 2)

	require.NoError(t, s.Apply(domain.ActionSkipCountdown))
	requireState(domain.StateQuestionOpen, 2)

	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	requireState(domain.StateAnswerShow, 2)

	err := s.Apply(domain.ActionNextQuestion)
	require.ErrorIs(t, err, domain.ErrInvalidState, "no questions remain")

	require.NoError(t, s.Apply(domain.ActionGoToFinalResults))
	requireState(domain.StateFinalResults, 0)

	require.NoError(t, s.Apply(domain.ActionEnd))
	requireState(domain.StateEnd, 0)
	assert.True(t, s.Ended())

	require.ErrorIs(t, s.Apply(domain.ActionEnd), domain.ErrInvalidState)
	require.ErrorIs(t, s.Apply(domain.ActionNextQuestion), domain.ErrInvalidState)
}

func TestSessionRejectsActionsOutsideTable(t *testing.T) {
	cases := []struct {
		name   string
		setup  []domain.Action
		action domain.Action
	}{
		{"skip in lobby", nil, domain.ActionSkipCountdown},
		{"answer in lobby", nil, domain.ActionGoToAnswer},
		{"final from lobby", nil, domain.ActionGoToFinalResults},
		{"next during countdown", []domain.Action{domain.ActionNextQuestion}, domain.ActionNextQuestion},
		{"answer during countdown", []domain.Action{domain.ActionNextQuestion}, domain.ActionGoToAnswer},
		{"next while open", []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown}, domain.ActionNextQuestion},
		{"final while open", []domain.Action{domain.ActionNextQuestion, domain.ActionSkipCountdown}, domain.ActionGoToFinalResults},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSession(0)
			for _, a := range tc.setup {
				require.NoError(t, s.Apply(a))
			}
			before, pos := s.State()
			require.ErrorIs(t, s.Apply(tc.action), domain.ErrInvalidState)
			after, afterPos := s.State()
			assert.Equal(t, before, after)
			assert.Equal(t, pos, afterPos)
		})
	}
}

func TestEndIsAcceptedFromEveryState(t *testing.T) {
	paths := [][]domain.Action{
		nil,
		{domain.ActionNextQuestion},
		{domain.ActionNextQuestion, domain.ActionSkipCountdown},
		{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer},
		{domain.ActionNextQuestion, domain.ActionSkipCountdown, domain.ActionGoToAnswer, domain.ActionGoToFinalResults},
	}
	for _, path := range paths {
		s := newTestSession(0)
		for _, a := range path {
			require.NoError(t, s.Apply(a))
		}
		require.NoError(t, s.Apply(domain.ActionEnd))
		assert.True(t, s.Ended())
		assert.False(t, s.timer.armed(), "END must cancel pending timers")
	}
}

func TestStaleTimerDoesNotAdvance(t *testing.T) {
	s := newTestSession(0)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	countdown := s.sched.last()
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))

	// The countdown callback lost the race with SKIP_COUNTDOWN.
	countdown.f()
	state, _ := s.State()
	assert.Equal(t, domain.StateQuestionOpen, state)

	open := s.sched.last()
	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	open.f()
	state, _ = s.State()
	assert.Equal(t, domain.StateAnswerShow, state)
}

func TestSessionTimersWithRealClock(t *testing.T) {
	quiz := testQuiz()
	quiz.Questions[0].Duration = 2
	s := NewSession(SessionParams{
		ID:           7,
		OwnerID:      "owner-1",
		Snapshot:     domain.NewSnapshot(quiz, time.Now()),
		AutoStartNum: 3,
		Countdown:    100 * time.Millisecond,
	})

	_, err := s.Join(1, "Joe")
	require.NoError(t, err)
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	state, _ := s.State()
	require.Equal(t, domain.StateQuestionCountdown, state)

	require.Eventually(t, func() bool {
		state, _ := s.State()
		return state == domain.StateQuestionOpen
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		state, pos := s.State()
		return state == domain.StateQuestionClose && pos == 1
	}, 4*time.Second, 10*time.Millisecond)
}

func TestTwoPlayerScoring(t *testing.T) {
	sched := &fakeScheduler{}
	clock := newFakeClock()
	quiz := domain.Quiz{
		ID: "quiz-b",
		Questions: []domain.Question{{
			ID: 1, Prompt: "Pick B", Duration: 2, Points: 6,
			Answers: []domain.Answer{{ID: 1, Text: "A"}, {ID: 2, Text: "B", Correct: true}},
		}},
	}
	s := newSession(SessionParams{ID: 2, Snapshot: domain.NewSnapshot(quiz, clock.Now()), Now: clock.Now}, newTimer(sched.schedule))

	_, _ = s.Join(1, "right")
	_, _ = s.Join(2, "wrong")
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	sched.fireLast()

	require.NoError(t, s.Submit(1, 1, []int{2}))
	clock.Advance(time.Second)
	require.NoError(t, s.Submit(2, 1, []int{1}))
	sched.fireLast()
	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	require.NoError(t, s.Apply(domain.ActionGoToFinalResults))

	final, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, []domain.RankedPlayer{{Name: "right", Score: 6}, {Name: "wrong", Score: 0}}, final.UsersRankedByScore)
	assert.Equal(t, 50, final.QuestionResults[0].PercentCorrect)
	assert.InDelta(t, 0.5, final.QuestionResults[0].AverageAnswerTime, 1e-9)
}

func TestJoinAutoStart(t *testing.T) {
	s := newTestSession(2)

	_, err := s.Join(1, "alice")
	require.NoError(t, err)
	state, _ := s.State()
	assert.Equal(t, domain.StateLobby, state)

	_, err = s.Join(2, "bob")
	require.NoError(t, err)
	state, pos := s.State()
	assert.Equal(t, domain.StateQuestionCountdown, state)
	assert.Equal(t, 1, pos)

	_, err = s.Join(3, "carol")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestJoinNames(t *testing.T) {
	s := newTestSession(0)

	_, err := s.Join(1, "alice")
	require.NoError(t, err)
	_, err = s.Join(2, "alice")
	require.ErrorIs(t, err, domain.ErrNameTaken)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	p, err := s.Join(3, "")
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z]{5}[0-9]{3}$`, p.Name)
	assert.Equal(t, []string{"alice", p.Name}, s.Status().Players)
}

func TestRandomNameUsesDistinctCharacters(t *testing.T) {
	for i := 0; i < 50; i++ {
		name := randomName()
		require.Len(t, name, 8)
		seen := map[rune]bool{}
		for _, r := range name {
			require.False(t, seen[r], "repeated %q in %s", r, name)
			seen[r] = true
		}
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newTestSession(0)
	_, err := s.Join(1, "alice")
	require.NoError(t, err)

	require.ErrorIs(t, s.Submit(99, 1, []int{2}), domain.ErrPlayerNotFound)
	require.ErrorIs(t, s.Submit(1, 1, []int{2}), domain.ErrInvalidState)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.ErrorIs(t, s.Submit(1, 1, []int{2}), domain.ErrInvalidState, "countdown is not open")

	require.NoError(t, s.Apply(domain.ActionSkipCountdown))
	require.ErrorIs(t, s.Submit(1, 2, []int{2}), domain.ErrInvalidInput)
	require.ErrorIs(t, s.Submit(1, 1, nil), domain.ErrInvalidInput)
	require.ErrorIs(t, s.Submit(1, 1, []int{2, 2}), domain.ErrInvalidInput)
	require.ErrorIs(t, s.Submit(1, 1, []int{9}), domain.ErrAnswerNotFound)
	require.NoError(t, s.Submit(1, 1, []int{2}))

	s.sched.fireLast()
	require.ErrorIs(t, s.Submit(1, 1, []int{2}), domain.ErrInvalidState, "closed question")
}

func TestQuestionResultsScenario(t *testing.T) {
	s := newTestSession(0)
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := s.Join(i+1, name)
		require.NoError(t, err)
	}
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))

	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(2, 1, []int{2}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(1, 1, []int{2}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(3, 1, []int{1}))

	_, err := s.QuestionResults(1)
	require.ErrorIs(t, err, domain.ErrInvalidState, "answer not shown yet")
	_, err = s.QuestionResults(3)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	res, err := s.QuestionResults(1)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionResults{
		QuestionID: 11,
		QuestionCorrectBreakdown: []domain.CorrectBreakdown{
			{AnswerID: 2, PlayersCorrect: []string{"bob", "alice"}},
		},
		AverageAnswerTime: 2,
		PercentCorrect:    67,
	}, res)

	_, err = s.Results()
	require.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, s.Apply(domain.ActionGoToFinalResults))
	final, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, []domain.RankedPlayer{
		{Name: "bob", Score: 10},
		{Name: "alice", Score: 5},
		{Name: "carol", Score: 0},
	}, final.UsersRankedByScore)
	require.Len(t, final.QuestionResults, 2)
	assert.Equal(t, 12, final.QuestionResults[1].QuestionID)
	assert.Equal(t, 0, final.QuestionResults[1].PercentCorrect)
	assert.Empty(t, final.QuestionResults[1].QuestionCorrectBreakdown[0].PlayersCorrect)

	csv, err := s.ResultsCSV()
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"player,question1score,question1rank,question2score,question2rank",
		"alice,5,2,0,0",
		"bob,10,1,0,0",
		"carol,0,0,0,0",
		"",
	}, "\n"), string(csv))
}

func TestResubmissionReplacesEarlierAnswer(t *testing.T) {
	s := newTestSession(0)
	_, _ = s.Join(1, "alice")
	_, _ = s.Join(2, "bob")
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))

	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(1, 1, []int{1}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(2, 1, []int{2}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(1, 1, []int{2}))

	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	res, err := s.QuestionResults(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice"}, res.QuestionCorrectBreakdown[0].PlayersCorrect)
	assert.Equal(t, 100, res.PercentCorrect)
	assert.InDelta(t, 2.5, res.AverageAnswerTime, 1e-9)
}

func TestEqualTimestampsRankBySubmissionOrder(t *testing.T) {
	s := newTestSession(0)
	_, _ = s.Join(1, "alice")
	_, _ = s.Join(2, "bob")
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))

	require.NoError(t, s.Submit(2, 1, []int{2}))
	require.NoError(t, s.Submit(1, 1, []int{2}))
	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	require.NoError(t, s.Apply(domain.ActionGoToFinalResults))

	final, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, []domain.RankedPlayer{{Name: "bob", Score: 10}, {Name: "alice", Score: 5}}, final.UsersRankedByScore)
}

func TestMultipleCorrectAnswersNeedExactSet(t *testing.T) {
	s := newTestSession(0)
	for i, name := range []string{"alice", "bob", "carol"} {
		_, err := s.Join(i+1, name)
		require.NoError(t, err)
	}
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))
	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	require.NoError(t, s.Apply(domain.ActionSkipCountdown))

	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(1, 2, []int{1}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(2, 2, []int{2, 1}))
	s.clock.Advance(time.Second)
	require.NoError(t, s.Submit(3, 2, []int{1, 2, 3}))

	require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	res, err := s.QuestionResults(2)
	require.NoError(t, err)
	assert.Equal(t, []domain.CorrectBreakdown{{AnswerID: 1, PlayersCorrect: []string{"bob"}}}, res.QuestionCorrectBreakdown)
	assert.Equal(t, 33, res.PercentCorrect)
}

func TestQuestionInfoHidesCorrectness(t *testing.T) {
	s := newTestSession(0)

	_, err := s.QuestionInfo(1)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	info, err := s.QuestionInfo(1)
	require.NoError(t, err)
	assert.Equal(t, 11, info.QuestionID)
	assert.Equal(t, "What is 2 + 2?", info.Question)
	assert.Equal(t, []domain.AnswerInfo{
		{ID: 1, Text: "3", Colour: "red"},
		{ID: 2, Text: "4", Colour: "blue"},
	}, info.Answers)

	_, err = s.QuestionInfo(2)
	require.ErrorIs(t, err, domain.ErrInvalidInput, "not the current question")
	_, err = s.QuestionInfo(0)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSessionChat(t *testing.T) {
	s := newTestSession(0)
	_, _ = s.Join(1, "alice")

	require.ErrorIs(t, s.SendChat(1, ""), domain.ErrInvalidInput)
	require.ErrorIs(t, s.SendChat(1, strings.Repeat("a", 101)), domain.ErrInvalidInput)
	require.ErrorIs(t, s.SendChat(2, "hi"), domain.ErrPlayerNotFound)

	require.NoError(t, s.SendChat(1, strings.Repeat("é", 100)))
	require.NoError(t, s.SendChat(1, "hello"))

	msgs, err := s.Chat(1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].MessageBody)
	assert.Equal(t, "alice", msgs[1].PlayerName)
	assert.Equal(t, s.clock.Now().Unix(), msgs[1].TimeSent)

	_, err = s.Chat(2)
	require.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	s := newTestSession(0)
	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	assert.Equal(t, domain.StateLobby, initial.State)

	_, _ = s.Join(1, "alice")
	joined := <-ch
	assert.Equal(t, 1, joined.NumPlayers)

	require.NoError(t, s.Apply(domain.ActionNextQuestion))
	ev := <-ch
	assert.Equal(t, domain.StateQuestionCountdown, ev.State)
	assert.Equal(t, 1, ev.AtQuestion)

	require.NoError(t, s.Apply(domain.ActionEnd))
	ev = <-ch
	assert.Equal(t, domain.StateEnd, ev.State)
	_, open := <-ch
	assert.False(t, open, "channel closes at END")

	late, lateCancel := s.Subscribe()
	defer lateCancel()
	ev = <-late
	assert.Equal(t, domain.StateEnd, ev.State)
	_, open = <-late
	assert.False(t, open)
}

func TestPositionInvariantUnderRandomActions(t *testing.T) {
	all := []domain.Action{
		domain.ActionNextQuestion,
		domain.ActionSkipCountdown,
		domain.ActionGoToAnswer,
		domain.ActionGoToFinalResults,
		domain.ActionEnd,
	}
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 200; run++ {
		s := newTestSession(0)
		n := s.snapshot.NumQuestions()
		lastPos := 0
		for step := 0; step < 20; step++ {
			if rng.IntN(3) == 0 {
				s.sched.fireLast()
			} else {
				_ = s.Apply(all[rng.IntN(len(all))])
			}

			state, pos := s.State()
			switch state {
			case domain.StateLobby, domain.StateFinalResults, domain.StateEnd:
				require.Equal(t, 0, pos, "state %s", state)
			default:
				require.GreaterOrEqual(t, pos, 1)
				require.LessOrEqual(t, pos, n)
				require.GreaterOrEqual(t, pos, lastPos, "position never moves backwards")
				lastPos = pos
			}
		}
	}
}

func TestSessionResultsMatchPerQuestionResults(t *testing.T) {
	s := newTestSession(0)
	for i, name := range []string{"alice", "bob"} {
		_, err := s.Join(i+1, name)
		require.NoError(t, err)
	}
	for pos := 1; pos <= 2; pos++ {
		require.NoError(t, s.Apply(domain.ActionNextQuestion))
		require.NoError(t, s.Apply(domain.ActionSkipCountdown))
		s.clock.Advance(time.Second)
		require.NoError(t, s.Submit(2, pos, []int{2}))
		s.clock.Advance(time.Second)
		require.NoError(t, s.Submit(1, pos, []int{1, 2}))
		require.NoError(t, s.Apply(domain.ActionGoToAnswer))
	}
	require.NoError(t, s.Apply(domain.ActionGoToFinalResults))

	final, err := s.Results()
	require.NoError(t, err)
	for pos := 1; pos <= 2; pos++ {
		single, err := s.QuestionResults(pos)
		require.NoError(t, err)
		assert.Equal(t, single, final.QuestionResults[pos-1])
	}
	// Q1: bob correct (10). Q2: alice correct (4).
	assert.Equal(t, []domain.RankedPlayer{{Name: "bob", Score: 10}, {Name: "alice", Score: 4}}, final.UsersRankedByScore)
}
