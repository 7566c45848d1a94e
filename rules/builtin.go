package rules

import (
	"fmt"
	"strings"

	"adaptive_task_generator/profile"
	"adaptive_task_generator/task"
)

func builtin() []Rule {
	rules := []Rule{
		{ID: "founder_essay", Applies: isFounder, Produce: founderEssay, Bonus: 15},
		{ID: "founder_impact", Applies: isFounder, Produce: founderImpact, Bonus: 10},
		{ID: "founder_advisor_recommendation", Applies: hasFunding, Produce: advisorRecommendation, Bonus: 10},
		{ID: "founder_linkedin", Applies: isFounder, Produce: founderLinkedIn, Bonus: 5},
		{ID: "gpa_compensation_essay", Applies: needsGPACompensation, Produce: gpaEssay, Bonus: 15},
		{ID: "gpa_recommender_briefing", Applies: needsGPACompensation, Produce: recommenderBriefing, Bonus: 10},
		{ID: "achievement_spotlight", Applies: hasAchievement, Produce: achievementSpotlight, Bonus: 10},
	}
	for _, test := range profile.Tests {
		rules = append(rules, testPrepRule(test))
	}
	return append(rules,
		Rule{ID: "career_referral_outreach", Applies: hasWarmIntro, Produce: referralOutreach, Bonus: 10},
		Rule{ID: "fitness_limitation_plan", Applies: hasLimitation, Produce: limitationPlan, Bonus: 10},
	)
}

func isFounder(c profile.Context) bool { return c.Bool(profile.KeyHasStartup) }

func hasFunding(c profile.Context) bool {
	if !isFounder(c) {
		return false
	}
	f := strings.TrimSpace(c.String(profile.KeyStartupFunding))
	switch strings.ToLower(f) {
	case "", "$0", "0", "none", "bootstrapped":
		return false
	}
	return true
}

func needsGPACompensation(c profile.Context) bool { return c.Bool(profile.KeyGPANeedsCompensation) }

func hasAchievement(c profile.Context) bool { return c.Has(profile.KeyTopAchievement) }

func hasWarmIntro(c profile.Context) bool {
	return c.String(profile.KeyCategory) == string(task.CategoryCareer) && c.Has(profile.KeyWarmIntro)
}

func hasLimitation(c profile.Context) bool {
	return c.String(profile.KeyCategory) == string(task.CategoryFitness) && c.Has(profile.KeyLimitation)
}

func startup(c profile.Context) string { return c.StringOr(profile.KeyStartupName, "the startup") }
func field(c profile.Context) string   { return c.StringOr(profile.KeyField, "the program") }

func usersPhrase(c profile.Context) string {
	if u := c.String(profile.KeyStartupUsers); u != "" {
		return " (" + u + ")"
	}
	return ""
}

func founderEssay(c profile.Context) []task.Task {
	name, f := startup(c), field(c)
	return []task.Task{{
		Title: fmt.Sprintf("Write the \"Founder Journey\" essay connecting %s to %s", name, f),
		Description: fmt.Sprintf(
			"You built %s%s. Structure 500-700 words: the problem %s addressed, building it from zero, "+
				"what growth taught you, the limits you hit, and how %s closes that gap.",
			name, usersPhrase(c), name, f),
		DefinitionOfDone: []string{
			"500-700 word draft complete",
			fmt.Sprintf("Connects %s technical challenges to %s", name, f),
			"Proofread",
		},
		TimeboxMinutes: 180,
		EnergyLevel:    task.EnergyHigh,
		Priority:       5,
		Kind:           "essay",
	}}
}

func founderImpact(c profile.Context) []task.Task {
	name := startup(c)
	return []task.Task{{
		Title: fmt.Sprintf("Quantify %s impact for the CV with 3-5 metric bullets", name),
		Description: fmt.Sprintf(
			"Calculate user growth%s, technical scale (requests/day, uptime, latency) and the share of the codebase you built. "+
				"Turn each into one resume bullet that starts with a verb.", usersPhrase(c)),
		DefinitionOfDone: []string{"3-5 quantified bullets", "Numbers verified", "CV updated"},
		TimeboxMinutes:   90,
		EnergyLevel:      task.EnergyMedium,
		Priority:         4,
		Kind:             "documentation",
	}}
}

func advisorRecommendation(c profile.Context) []task.Task {
	name, f := startup(c), field(c)
	return []task.Task{{
		Title: fmt.Sprintf("Request a recommendation letter from a %s investor or advisor", name),
		Description: fmt.Sprintf(
			"Email [Investor Name] asking for a letter for %s programs that speaks to execution on %s, "+
				"problem-solving under constraints and learning speed. Attach your SOP draft and a metrics summary.", f, name),
		DefinitionOfDone: []string{"Advisor identified", "Email sent", "Follow-up reminder set for 5 days"},
		TimeboxMinutes:   60,
		EnergyLevel:      task.EnergyMedium,
		Priority:         4,
		Kind:             "email",
	}}
}

func founderLinkedIn(c profile.Context) []task.Task {
	name := startup(c)
	role := c.StringOr(profile.KeyStartupRole, "Founder")
	return []task.Task{{
		Title: fmt.Sprintf("Update the LinkedIn headline to feature %s %s", name, strings.ToLower(role)),
		Description: fmt.Sprintf(
			"Headline: \"%s @ %s%s\". Open the About section with what you built and who uses it. "+
				"List %s under experience with metrics.", role, name, usersPhrase(c), name),
		DefinitionOfDone: []string{"Headline updated", "About section rewritten", name + " listed with metrics"},
		TimeboxMinutes:   45,
		EnergyLevel:      task.EnergyLow,
		Priority:         3,
		Kind:             "profile_update",
	}}
}

func gpaEssay(c profile.Context) []task.Task {
	gpa, f := c.String(profile.KeyGPA), field(c)
	var evidence string
	switch {
	case c.Has(profile.KeyTopAchievement) && c.Has(profile.KeyStartupName):
		evidence = fmt.Sprintf("%s and building %s", c.String(profile.KeyTopAchievement), c.String(profile.KeyStartupName))
	case c.Has(profile.KeyTopAchievement):
		evidence = c.String(profile.KeyTopAchievement)
	default:
		evidence = "building " + startup(c)
	}
	return []task.Task{{
		Title: fmt.Sprintf("Write the optional \"Academic Context\" essay addressing the %s GPA", gpa),
		Description: fmt.Sprintf(
			"Draft 250-400 words. Acknowledge the %s GPA in one sentence, give honest context, show growth in %s courses, "+
				"then present %s as evidence of capability.", gpa, f, evidence),
		DefinitionOfDone: []string{"250-400 word draft", "GPA acknowledged without excuses", "Evidence paragraph cites " + evidence},
		TimeboxMinutes:   120,
		EnergyLevel:      task.EnergyHigh,
		Priority:         5,
		Kind:             "essay",
	}}
}

func recommenderBriefing(c profile.Context) []task.Task {
	gpa, f := c.String(profile.KeyGPA), field(c)
	strength := c.StringOr(profile.KeyTopAchievement, startup(c))
	return []task.Task{{
		Title: fmt.Sprintf("Brief recommenders to emphasize practical skills over the %s GPA", gpa),
		Description: fmt.Sprintf(
			"Email each recommender for the %s applications with three talking points: problem-solving, technical depth and %s. "+
				"Attach your resume and SOP.", f, strength),
		DefinitionOfDone: []string{"Talking points sent to every recommender", "Resume and SOP attached"},
		TimeboxMinutes:   60,
		EnergyLevel:      task.EnergyMedium,
		Priority:         4,
		Kind:             "email",
	}}
}

func achievementSpotlight(c profile.Context) []task.Task {
	a := c.String(profile.KeyTopAchievement)
	return []task.Task{{
		Title: fmt.Sprintf("Draft a 200-word story about %s", a),
		Description: fmt.Sprintf(
			"Write the situation, your role, the measurable result and what %s says about how you work. "+
				"Reuse it in essays, interviews and your CV summary.", a),
		DefinitionOfDone: []string{"200-word story saved", "Result stated with a number"},
		TimeboxMinutes:   45,
		EnergyLevel:      task.EnergyMedium,
		Priority:         4,
		Kind:             "essay",
	}}
}

// testPrepRule emits a prep task only while the current score is below target.
func testPrepRule(test string) Rule {
	name := strings.ToUpper(test)
	return Rule{
		ID:      test + "_prep",
		Applies: func(c profile.Context) bool { return c.Bool(profile.PrepNeededKey(test)) },
		Produce: func(c profile.Context) []task.Task {
			cur, target := c.String(profile.ScoreKey(test)), c.String(profile.TargetKey(test))
			timebox := 240
			if test == "gre" {
				timebox = 600
			}
			return []task.Task{{
				Title: fmt.Sprintf("Schedule %s prep from %s to %s with a diagnostic test", name, cur, target),
				Description: fmt.Sprintf(
					"Take a full %s practice test, find the weakest section and spend 80%% of study time on it. "+
						"Benchmark weekly and stop once you hit %s consistently.", name, target),
				DefinitionOfDone: []string{"Diagnostic completed", "Weakest section identified", "Weekly practice test booked"},
				TimeboxMinutes:   timebox,
				EnergyLevel:      task.EnergyHigh,
				Priority:         3,
				Kind:             "test_prep",
			}}
		},
		Bonus: 5,
	}
}

func referralOutreach(c profile.Context) []task.Task {
	who := c.String(profile.KeyWarmIntro)
	role := c.StringOr(profile.KeyTargetRole, "the role")
	where := ""
	if co := c.String(profile.KeyTargetCompany); co != "" {
		where = " at " + co
	}
	return []task.Task{{
		Title:            fmt.Sprintf("Ask %s for a %s referral%s", who, role, where),
		Description:      fmt.Sprintf("Send %s a short note with the job link, two lines on fit and your tailored resume.", who),
		DefinitionOfDone: []string{"Message sent", "Follow-up date set"},
		TimeboxMinutes:   20,
		EnergyLevel:      task.EnergyMedium,
		Priority:         4,
		Kind:             "networking",
	}}
}

func limitationPlan(c profile.Context) []task.Task {
	lim := c.String(profile.KeyLimitation)
	goal := c.StringOr(profile.KeyFitnessGoal, "the training plan")
	return []task.Task{{
		Title:            fmt.Sprintf("Book a physio check on the %s before starting %s", lim, goal),
		Description:      fmt.Sprintf("Ask which movements to avoid with the %s and get two safe substitutes for each.", lim),
		DefinitionOfDone: []string{"Appointment booked", "Substitution list written"},
		TimeboxMinutes:   30,
		EnergyLevel:      task.EnergyLow,
		Priority:         4,
		Kind:             "safety",
	}}
}
