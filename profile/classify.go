package profile

import "strings"

// Background is the closed set of user backgrounds that routing switches on.
type Background string

const (
	BackgroundFounder      Background = "founder"
	BackgroundEngineer     Background = "engineer"
	BackgroundResearcher   Background = "researcher"
	BackgroundStudent      Background = "student"
	BackgroundDesigner     Background = "designer"
	BackgroundHealthcare   Background = "healthcare"
	BackgroundTeacher      Background = "teacher"
	BackgroundLawyer       Background = "lawyer"
	BackgroundCreative     Background = "creative"
	BackgroundProfessional Background = "professional"
	BackgroundUnknown      Background = "unknown"
)

func (b Background) String() string { return string(b) }

// Confidence says whether a classification came from an explicit signal.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Classification is the result of background inference.
type Classification struct {
	Background Background
	Confidence Confidence
	Keyword    string
}

// backgroundKeywords is checked in order; the first match wins.
var backgroundKeywords = []struct {
	bg       Background
	keywords []string
}{
	{BackgroundFounder, []string{"co-founder", "cofounder", "founder", "startup", "entrepreneur", "ceo", "cto"}},
	{BackgroundDesigner, []string{"designer", "ux", "ui", "product design", "graphic design"}},
	{BackgroundHealthcare, []string{"nurse", "doctor", "physician", "healthcare", "clinician"}},
	{BackgroundTeacher, []string{"teacher", "educator", "tutor", "lecturer", "professor"}},
	{BackgroundLawyer, []string{"lawyer", "attorney", "paralegal", "legal counsel"}},
	{BackgroundCreative, []string{"artist", "musician", "composer", "illustrator", "creative"}},
	{BackgroundEngineer, []string{"engineer", "developer", "programmer", "software", "data scientist", "ml engineer", "devops"}},
	{BackgroundResearcher, []string{"researcher", "research assistant", "research", "phd", "postdoc", "lab"}},
	{BackgroundStudent, []string{"student", "undergraduate", "bachelor", "master", "masters", "graduate"}},
}

// ParseBackground maps an explicit label onto the enum.
func ParseBackground(s string) (Background, bool) {
	s = normalizeText(s)
	if s == "" {
		return BackgroundUnknown, false
	}
	for _, e := range backgroundKeywords {
		if string(e.bg) == s {
			return e.bg, true
		}
	}
	if s == string(BackgroundProfessional) {
		return BackgroundProfessional, true
	}
	for _, e := range backgroundKeywords {
		for _, kw := range e.keywords {
			if containsWord(s, kw) {
				return e.bg, true
			}
		}
	}
	return BackgroundUnknown, false
}

// Classify infers the background from a profile.
func Classify(p Profile, startup bool) Classification {
	if bg, ok := ParseBackground(p.Background); ok {
		return Classification{Background: bg, Confidence: ConfidenceHigh, Keyword: normalizeText(p.Background)}
	}
	if startup {
		return Classification{Background: BackgroundFounder, Confidence: ConfidenceHigh, Keyword: "startup"}
	}
	text := normalizeText(strings.Join([]string{p.Role, p.WorkHistory}, " "))
	for _, e := range backgroundKeywords {
		for _, kw := range e.keywords {
			if containsWord(text, kw) {
				return Classification{Background: e.bg, Confidence: ConfidenceHigh, Keyword: kw}
			}
		}
	}
	if p.YearsOfExperience > 0 {
		return Classification{Background: BackgroundProfessional, Confidence: ConfidenceLow}
	}
	if p.ResearchExperience {
		return Classification{Background: BackgroundResearcher, Confidence: ConfidenceLow}
	}
	return Classification{Background: BackgroundStudent, Confidence: ConfidenceLow}
}

// FieldKey is the canonical field/domain identifier.
type FieldKey string

const (
	FieldCS                  FieldKey = "cs"
	FieldSoftwareEngineering FieldKey = "software_engineering"
	FieldAI                  FieldKey = "ai"
	FieldML                  FieldKey = "ml"
	FieldDataScience         FieldKey = "data_science"
	FieldBusiness            FieldKey = "business"
	FieldHCI                 FieldKey = "hci"
	FieldMedicalAI           FieldKey = "medical_ai"
	FieldEdTech              FieldKey = "edtech"
	FieldEducation           FieldKey = "education"
	FieldBioethics           FieldKey = "bioethics"
	FieldCreativeTech        FieldKey = "creative_tech"
	FieldMusicTech           FieldKey = "music_tech"
	FieldLaw                 FieldKey = "law"
	FieldEconomics           FieldKey = "economics"
	FieldMathematics         FieldKey = "mathematics"
	FieldPhysics             FieldKey = "physics"
	FieldEngineering         FieldKey = "engineering"
	FieldMedicine            FieldKey = "medicine"
	FieldFitness             FieldKey = "fitness"
	FieldOther               FieldKey = "other"
)

// fieldTable is ordered so specific phrases win over their substrings
// (medical ai before ai, human-computer interaction before computer science).
var fieldTable = []struct {
	key      FieldKey
	display  string
	keywords []string
}{
	{FieldHCI, "Human-Computer Interaction", []string{"hci", "human-computer interaction", "human computer interaction"}},
	{FieldMedicalAI, "Medical AI", []string{"medical ai", "health tech", "healthtech", "clinical ai", "digital health"}},
	{FieldEdTech, "EdTech", []string{"edtech", "educational technology", "learning technology"}},
	{FieldMusicTech, "Music Technology", []string{"music tech", "music technology"}},
	{FieldCreativeTech, "Creative Technology", []string{"creative tech", "creative technology", "creative computing"}},
	{FieldBioethics, "Bioethics", []string{"bioethics"}},
	{FieldDataScience, "Data Science", []string{"data science", "data scientist", "analytics"}},
	{FieldSoftwareEngineering, "Software Engineering", []string{"software engineering", "software development"}},
	{FieldML, "Machine Learning", []string{"machine learning", "ml"}},
	{FieldAI, "Artificial Intelligence", []string{"artificial intelligence", "ai"}},
	{FieldCS, "Computer Science", []string{"computer science", "cs", "computing"}},
	{FieldBusiness, "Business", []string{"business", "mba", "management", "product management"}},
	{FieldEducation, "Education", []string{"education", "teaching"}},
	{FieldLaw, "Law", []string{"law", "legal"}},
	{FieldEconomics, "Economics", []string{"economics", "finance"}},
	{FieldMathematics, "Mathematics", []string{"mathematics", "math", "statistics"}},
	{FieldPhysics, "Physics", []string{"physics"}},
	{FieldMedicine, "Medicine", []string{"medicine", "medical", "nursing"}},
	{FieldEngineering, "Engineering", []string{"engineering"}},
	{FieldFitness, "Fitness", []string{"fitness", "strength", "marathon", "running", "weight loss", "muscle"}},
}

// ClassifyField maps free text onto a canonical key and display name.
func ClassifyField(text string) (FieldKey, string, bool) {
	s := normalizeText(text)
	if s == "" {
		return "", "", false
	}
	for _, e := range fieldTable {
		for _, kw := range e.keywords {
			if containsWord(s, kw) {
				return e.key, e.display, true
			}
		}
	}
	return FieldOther, "", false
}

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("/", " ", ",", " ", ".", " ", "(", " ", ")", " ", "→", " ", "'", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// containsWord matches kw on word boundaries ("ai" matches "medical ai" but not "chair").
func containsWord(text, kw string) bool {
	return strings.Contains(" "+text+" ", " "+kw+" ")
}
