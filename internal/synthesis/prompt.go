package synthesis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Raafay-Qureshi/RapidResponseAI-sub000/internal/models"
)

// Display titles for the known stages. Unknown stages are titled by name.
var stageTitles = map[string]string{
	models.StageDamage:     "DAMAGE ASSESSMENT",
	models.StagePopulation: "POPULATION IMPACT",
	models.StagePrediction: "PREDICTION & TIMELINE",
	models.StageRouting:    "EVACUATION ROUTING",
	models.StageResources:  "RESOURCE ALLOCATION",
}

var stageOrder = []string{
	models.StageDamage,
	models.StagePopulation,
	models.StagePrediction,
	models.StageRouting,
	models.StageResources,
}

// BuildPrompt renders the disaster and every stage result into the
// coordinator prompt, ending with the section layout the parser expects.
func BuildPrompt(d models.Disaster, results map[string]models.StageResult) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "You are \"RapidResponseAI,\" an expert emergency response coordinator for the City of Brampton, Ontario. "+
		"Synthesize the raw data from %d analysis agents into a clear, actionable emergency plan.\n", len(results))
	fmt.Fprintf(&b, "The incident is a **%s** of **%s** severity detected at **%.4f, %.4f**.\n",
		d.Kind, d.Severity, d.Location.Lat, d.Location.Lon)
	if desc := d.MetadataString("description"); desc != "" {
		fmt.Fprintf(&b, "Reported description: %s\n", desc)
	}
	b.WriteString("Here is the raw data from your agents:\n")

	for i, name := range orderedStages(results) {
		body, err := json.MarshalIndent(results[name], "", "  ")
		if err != nil {
			return "", fmt.Errorf("error encoding %s result: %w", name, err)
		}
		title := stageTitles[name]
		if title == "" {
			title = strings.ToUpper(name)
		}
		fmt.Fprintf(&b, "### AGENT %d: %s ###\n%s\n", i+1, title, body)
	}

	b.WriteString("---\n**YOUR TASK:**\n")
	b.WriteString("Generate the complete emergency response plan formatted EXACTLY as follows, using the headers with `###` delimiters. " +
		"Be specific and use the exact figures provided by the agents.\n")
	b.WriteString(HeaderSummary + "\n(2-3 sentences: what is happening, who is at immediate risk, the #1 priority action.)\n")
	b.WriteString(HeaderOverview + "\n(Two paragraphs combining damage, population and prediction data.)\n")
	b.WriteString(HeaderEnglish + "\n(A concise public safety alert with clear instructions.)\n")
	b.WriteString(HeaderPunjabi + "\n(The English alert translated into Punjabi.)\n")
	b.WriteString(HeaderHindi + "\n(The English alert translated into Hindi.)\n")
	b.WriteString("---\n")

	return b.String(), nil
}

// orderedStages lists known stages first, then any others alphabetically.
func orderedStages(results map[string]models.StageResult) []string {
	out := make([]string, 0, len(results))
	seen := make(map[string]bool, len(stageOrder))
	for _, name := range stageOrder {
		if _, ok := results[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var extra []string
	for name := range results {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
