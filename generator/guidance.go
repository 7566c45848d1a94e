package generator

import (
	"fmt"

	"adaptive_task_generator/profile"
)

// ScenarioGuidance returns a prompt block steering generation for backgrounds
// the templates cover poorly. Unknown combinations get a generic transition note.
func ScenarioGuidance(bg profile.Background, field string) string {
	switch bg {
	case profile.BackgroundDesigner:
		return `DESIGNER -> HCI transition:
- Turn 2-3 existing design projects into HCI portfolio case studies (problem, research, process, outcome)
- Build or refresh a portfolio website that shows process, not only final screens
- Document a user research method you used and what it changed in the design
- Ask a mentor or HCI practitioner to review the portfolio before applying`
	case profile.BackgroundHealthcare:
		return `HEALTHCARE -> AI/ML transition:
- Write the essay around a specific clinical problem you saw that AI could address
- List 3 healthcare problems from your practice and sketch a data-driven approach for each
- Complete an online ML course and publish one small project on a public medical dataset
- Read and summarize 3 recent papers on AI in your clinical specialty`
	case profile.BackgroundTeacher:
		return `TEACHER -> EdTech transition:
- Quantify teaching impact (class sizes, grade improvements, programs launched)
- Document 2-3 classroom innovations and the evidence they worked
- Critique 3 EdTech tools you used in class: what worked, what failed, what you would build
- Draft the essay connecting classroom problems to the technology you want to study`
	case profile.BackgroundLawyer:
		return `LAWYER -> interdisciplinary transition:
- Pick 2-3 legal cases that shaped your interest in ` + orDefault(field, "the new field") + ` and summarize each
- Draft the essay explaining what legal practice taught you about the problems this field studies
- Complete an introductory course in the field and note how legal reasoning applies
- Request a recommendation from someone who has seen your interdisciplinary work`
	case profile.BackgroundCreative:
		return `CREATIVE -> technology transition:
- Catalog 3 creative projects where you used or wished for technology
- Publish a portfolio site that links the creative work to technical skills
- Complete a creative coding course and ship one small interactive piece
- Practice explaining your artistic process in technical terms for interviews and essays`
	}
	return fmt.Sprintf(`TRANSITION GUIDANCE:
- This user has a background in %s applying to %s
- Build bridges between the prior experience and the new field
- Prefer tasks that produce evidence (portfolio pieces, projects, writing) over generic preparation`,
		orDefault(string(bg), "an unrelated field"), orDefault(field, "a new field"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
