package rank

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

func titles(ts []task.Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

func TestDedupKeepsHigherSource(t *testing.T) {
	in := []task.Task{
		{Title: "Write the SOP introduction", Source: task.SourceTemplate, Priority: 3},
		{Title: "Book a campus visit", Source: task.SourceTemplate},
		{Title: "write the SOP introduction!", Source: task.SourceUniqueGenerated, Priority: 2},
	}
	got := Dedup(in, 0.8)
	require.Len(t, got, 2)
	assert.Equal(t, task.SourceUniqueGenerated, got[0].Source, "position of first seen, copy of higher source")
	assert.Equal(t, "Book a campus visit", got[1].Title)
	assert.Equal(t, task.SourceTemplate, in[0].Source, "input untouched")
}

func TestDedupContainmentAndJaccard(t *testing.T) {
	in := []task.Task{
		{Title: "Email Professor Chen about research", Source: task.SourceCustom},
		{Title: "Email Professor Chen about research fit at MIT", Source: task.SourceTemplate},
		{Title: "Draft essay", Description: "alpha beta gamma delta epsilon zeta eta theta iota kappa", Source: task.SourceTemplate},
		{Title: "Draft essays", Description: "alpha beta gamma delta epsilon zeta eta theta iota kappa", Source: task.SourceTemplate},
		{Title: "Draft", Description: "unrelated words entirely", Source: task.SourceTemplate},
	}
	got := Dedup(in, 0.8)
	assert.Equal(t, []string{"Email Professor Chen about research", "Draft essay", "Draft"}, titles(got))
}

func TestDedupTieKeepsFirstSeen(t *testing.T) {
	in := []task.Task{
		{Title: "Write the essay", Description: "first", Source: task.SourceCustom, Priority: 4},
		{Title: "Write the essay", Description: "second", Source: task.SourceCustom, Priority: 4},
	}
	got := Dedup(in, 0.8)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Description)
}

func TestScore(t *testing.T) {
	c := profile.NewContext(map[string]any{
		profile.KeyHasStartup:           true,
		profile.KeyStartupName:          "Loopline",
		profile.KeyGPANeedsCompensation: true,
	})
	cases := []struct {
		t    task.Task
		want int
	}{
		{task.Task{Title: "Research programs", Source: task.SourceTemplate, Priority: 3}, 5},
		{task.Task{Title: "Research programs", Source: task.SourceCached, Priority: 3}, 0},
		{task.Task{Title: "Write the Founder essay", Source: task.SourceCustom, Priority: 5, RuleBonus: 15}, 20 + 15 + 15 + 10 + 10},
		{task.Task{Title: "Write the optional Academic Context essay on the GPA", Source: task.SourceCustom, Priority: 5, RuleBonus: 15}, 20 + 15 + 15 + 10 + 10},
		{task.Task{Title: "Quantify Loopline metrics", Source: task.SourceUniqueGenerated, Priority: 4}, 25 + 15 + 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Score(c, tc.t), tc.t.Title)
	}

	plain := profile.NewContext(nil)
	assert.Equal(t, 20+10+10, Score(plain, task.Task{Title: "Write the Founder essay", Source: task.SourceCustom, Priority: 5}))
}

func TestSmartFilter(t *testing.T) {
	c := profile.NewContext(map[string]any{
		profile.KeyHasStartup:           true,
		profile.MeetsTargetKey("ielts"): true,
		profile.MeetsTargetKey("gre"):   false,
		profile.PrepNeededKey("gre"):    true,
	})
	in := []task.Task{
		{Title: "Schedule IELTS prep with a diagnostic", Source: task.SourceTemplate},
		{Title: "Schedule GRE prep from 310 to 320", Source: task.SourceCustom},
		{Title: "Book the IELTS exam date", Source: task.SourceTemplate},
		{Title: "Update the LinkedIn headline to feature Loopline", Source: task.SourceCustom},
		{Title: "Rewrite the LinkedIn headline", Source: task.SourceTemplate},
	}
	got := SmartFilter(c, in)
	assert.Equal(t, []string{
		"Schedule GRE prep from 310 to 320",
		"Book the IELTS exam date",
		"Update the LinkedIn headline to feature Loopline",
	}, titles(got))

	// no custom LinkedIn task: the template one stays
	got = SmartFilter(c, in[4:])
	assert.Len(t, got, 1)
}

func TestRankOrderAndTruncate(t *testing.T) {
	c := profile.NewContext(nil)
	var in []task.Task
	for i := 0; i < 25; i++ {
		in = append(in, task.Task{Title: fmt.Sprintf("Template step %02d", i), Source: task.SourceTemplate, Priority: 3})
	}
	in = append(in,
		task.Task{Title: "Custom outreach to Dana", Source: task.SourceCustom, Priority: 3},
		task.Task{Title: "Generated idea for Dana", Source: task.SourceUniqueGenerated, Priority: 3},
	)
	r := New(DefaultConfig(), nil)
	got := r.Rank(c, in, 0)
	require.Len(t, got, 18)
	assert.Equal(t, "Generated idea for Dana", got[0].Title)
	assert.Equal(t, "Custom outreach to Dana", got[1].Title)
	assert.Equal(t, "Template step 00", got[2].Title, "stable among equals")

	assert.Len(t, r.Rank(c, in, 5), 12, "clamped up to MinTasks")
	assert.Len(t, r.Rank(c, in, 40), 18, "clamped down to MaxTasks")
	assert.Len(t, r.Rank(c, in[:3], 15), 3, "short lists are kept whole")
	assert.Zero(t, in[0].PersonalizationScore, "input untouched")
}

func TestRankIsDeterministic(t *testing.T) {
	c := profile.NewContext(map[string]any{profile.KeyHasStartup: true, profile.KeyStartupName: "Loopline"})
	in := []task.Task{
		{Title: "Write the Loopline essay", Source: task.SourceCustom, Priority: 5, RuleBonus: 15},
		{Title: "Research programs", Source: task.SourceTemplate, Priority: 4},
		{Title: "Draft a story about users", Source: task.SourceUniqueGenerated, Priority: 2},
	}
	r := New(Config{}, nil)
	first := r.Rank(c, in, 12)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, r.Rank(c, in, 12)); diff != "" {
			t.Fatalf("rank changed (-first +again):\n%s", diff)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := tokenize("write the essay")
	assert.InDelta(t, 1.0, jaccard(a, tokenize("Write, the essay!")), 1e-9)
	assert.InDelta(t, 0.5, jaccard(tokenize("aa bb"), tokenize("aa cc bb dd")), 1e-9)
	assert.Zero(t, jaccard(map[string]int{}, map[string]int{}))
}
