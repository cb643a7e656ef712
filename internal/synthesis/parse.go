package synthesis

import (
	"regexp"
	"strings"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// Unavailable fills any section whose header is missing from the response.
const Unavailable = "unavailable"

const (
	HeaderSummary  = "### EXECUTIVE SUMMARY ###"
	HeaderOverview = "### SITUATION OVERVIEW ###"
	HeaderEnglish  = "### COMMUNICATION TEMPLATES (ENGLISH) ###"
	HeaderPunjabi  = "### COMMUNICATION TEMPLATES (PUNJABI) ###"
	HeaderHindi    = "### COMMUNICATION TEMPLATES (HINDI) ###"
)

// Sections is the parsed narrative part of a plan.
type Sections struct {
	Summary   string
	Overview  string
	Templates map[string]string
	// Found counts the headers present in the response.
	Found int
}

var (
	reSummary  = headerPattern("EXECUTIVE SUMMARY")
	reOverview = headerPattern("SITUATION OVERVIEW")
	reEnglish  = headerPattern(`COMMUNICATION TEMPLATES \(ENGLISH\)`)
	rePunjabi  = headerPattern(`COMMUNICATION TEMPLATES \(PUNJABI\)`)
	reHindi    = headerPattern(`COMMUNICATION TEMPLATES \(HINDI\)`)
)

// headerPattern tolerates spacing and case drift in model output.
func headerPattern(title string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)###\s*` + title + `\s*###`)
}

// ParseSections extracts each section from its header up to the next "###"
// or the end of the text.
func ParseSections(text string) Sections {
	s := Sections{Templates: make(map[string]string, 3)}
	extract := func(re *regexp.Regexp) string {
		loc := re.FindStringIndex(text)
		if loc == nil {
			return Unavailable
		}
		s.Found++
		rest := text[loc[1]:]
		if end := strings.Index(rest, "###"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}

	s.Summary = extract(reSummary)
	s.Overview = extract(reOverview)
	s.Templates[models.LangEnglish] = extract(reEnglish)
	s.Templates[models.LangPunjabi] = extract(rePunjabi)
	s.Templates[models.LangHindi] = extract(reHindi)
	return s
}
