package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hession/deepr/internal/config"
	"github.com/hession/deepr/internal/websearch"
)

func TestPlanner_TruncatesToMaxCount(t *testing.T) {
	llm := &fakeLLM{plan: func(query string, count int) []SerpQuery { return queriesN(query, 5) }}
	p := NewPlanner(llm, testPrompts, fixedClock)

	queries, err := p.Plan(context.Background(), "topic", 3, nil)
	require.NoError(t, err)
	assert.Len(t, queries, 3)
	assert.Equal(t, "", llm.planCallsSnapshot()[0].Learnings, "no prior learnings section")
}

func TestPlanner_AcceptsFewerAndDropsBlank(t *testing.T) {
	llm := &fakeLLM{plan: func(string, int) []SerpQuery {
		return []SerpQuery{{Query: "  "}, {Query: " real ", ResearchGoal: "g"}}
	}}
	p := NewPlanner(llm, testPrompts, fixedClock)

	queries, err := p.Plan(context.Background(), "topic", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, []SerpQuery{{Query: "real", ResearchGoal: "g"}}, queries)
}

func TestPlanner_IncludesLearnings(t *testing.T) {
	llm := &fakeLLM{}
	p := NewPlanner(llm, testPrompts, fixedClock)

	_, err := p.Plan(context.Background(), "topic", 2, []string{"fact one", "fact two"})
	require.NoError(t, err)
	assert.Equal(t, "fact one\nfact two", llm.planCallsSnapshot()[0].Learnings)
}

func TestPlanner_ZeroCountSkipsModel(t *testing.T) {
	llm := &fakeLLM{err: errors.New("must not be called")}
	p := NewPlanner(llm, testPrompts, fixedClock)

	queries, err := p.Plan(context.Background(), "topic", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestPlanner_DefaultPrompt(t *testing.T) {
	llm := &fakeLLM{}
	p := NewPlanner(llm, config.DefaultPromptConfig().GetPrompts(), fixedClock)

	_, err := p.Plan(context.Background(), "quantum batteries", 4, []string{"prior"})
	require.NoError(t, err)
	require.Len(t, llm.users, 1)
	assert.Contains(t, llm.users[0], "Return a maximum of 4 queries")
	assert.Contains(t, llm.users[0], "<prompt>quantum batteries</prompt>")
	assert.True(t, strings.HasSuffix(llm.users[0], "more specific queries:\nprior"))
	assert.Contains(t, llm.systems[0], "Today is 2025-01-02T03:04:05Z")
}

func TestDistiller_WrapsEvidence(t *testing.T) {
	llm := &fakeLLM{distill: func(query, contents string) Distilled {
		return Distilled{Learnings: []string{"a", "b", "a", "c"}, FollowUpQuestions: []string{"q1", "q2", "q3"}}
	}}
	d := NewDistiller(llm, testPrompts, fixedClock)

	out, err := d.Distill(context.Background(), "topic", []websearch.Result{
		{Description: "first"},
		{Description: ""},
		{Description: "second"},
	}, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, out.Learnings)
	assert.Equal(t, []string{"q1", "q2", "q3"}, out.FollowUpQuestions, "follow-ups are not truncated")

	require.Len(t, llm.distillCalls, 1)
	assert.Equal(t, "<content>\nfirst\n</content>\n<content>\nsecond\n</content>", llm.distillCalls[0].Contents)
	assert.Equal(t, 2, llm.distillCalls[0].Max)
}

func TestDistiller_NoEvidenceSkipsModel(t *testing.T) {
	llm := &fakeLLM{err: errors.New("must not be called")}
	d := NewDistiller(llm, testPrompts, fixedClock)

	out, err := d.Distill(context.Background(), "topic", []websearch.Result{{URL: "https://x", Description: " "}}, 3, 1)
	require.NoError(t, err)
	assert.Empty(t, out.Learnings)
	assert.Empty(t, out.FollowUpQuestions)
}

func TestDistiller_Error(t *testing.T) {
	boom := errors.New("bad schema")
	d := NewDistiller(&fakeLLM{err: boom}, testPrompts, fixedClock)

	_, err := d.Distill(context.Background(), "topic", []websearch.Result{{Description: "x"}}, 3, 1)
	assert.ErrorIs(t, err, boom)
}

func TestSynthesizer_ReportAppendsSources(t *testing.T) {
	llm := &fakeLLM{report: "# Report\n\nBody"}
	s := NewSynthesizer(llm, testPrompts, fixedClock)

	report, err := s.Report(context.Background(), "the prompt", []string{"l1", "l2"}, []string{"https://a", "https://b"})
	require.NoError(t, err)

	assert.Equal(t, "# Report\n\nBody\n\n## Sources\n\n- https://a\n- https://b", report)
	assert.Equal(t, "prompt=the prompt\nlearnings=<learning>\nl1\n</learning>\n<learning>\nl2\n</learning>", llm.users[0])
}

func TestSynthesizer_Answer(t *testing.T) {
	llm := &fakeLLM{answer: "  42 \n"}
	s := NewSynthesizer(llm, testPrompts, fixedClock)

	answer, err := s.Answer(context.Background(), "meaning of life?", []string{"deep thought said so"})
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
	assert.Contains(t, llm.users[0], "<learning>\ndeep thought said so\n</learning>")
}

func TestClarifier_Questions(t *testing.T) {
	llm := &fakeLLM{questions: []string{"Which region?", " ", "What timeframe?", "Budget?"}}
	c := NewClarifier(llm, testPrompts, fixedClock)

	qs, err := c.Questions(context.Background(), "EV market", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Which region?", "What timeframe?"}, qs)
	assert.Equal(t, "count=2\nquery=EV market", llm.users[0])
}

func TestClarifier_ZeroQuestions(t *testing.T) {
	c := NewClarifier(&fakeLLM{err: errors.New("must not be called")}, testPrompts, fixedClock)

	qs, err := c.Questions(context.Background(), "EV market", 0)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestCombineQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		questions []string
		answer    string
		want      string
	}{
		{
			name:  "no questions",
			query: "  EV market ",
			want:  "EV market",
		},
		{
			name:      "with answer",
			query:     "EV market",
			questions: []string{"Which region?", "What timeframe?"},
			answer:    "Europe, 2020-2025",
			want: "User question:\nEV market\n\n" +
				"Follow-up questions:\n1. Which region?\n2. What timeframe?\n\n" +
				"Follow-up answer:\nEurope, 2020-2025",
		},
		{
			name:      "empty answer",
			query:     "EV market",
			questions: []string{"Which region?"},
			answer:    "   ",
			want:      "User question:\nEV market\n\nFollow-up questions:\n1. Which region?\n\nFollow-up answer:\nnone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CombineQuery(tt.query, tt.questions, tt.answer))
		})
	}
}
