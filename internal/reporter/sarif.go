package reporter

import (
	"encoding/json"
	"io"

	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/taxonomy"
)

// FormatSARIF is the SARIF output format constant.
const FormatSARIF Format = "sarif"

// SARIF v2.1.0 types, the minimal subset GitHub code scanning consumes.

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string                     `json:"name"`
	InformationURI string                     `json:"informationUri,omitempty"`
	Rules          []sarifReportingDescriptor `json:"rules,omitempty"`
}

type sarifReportingDescriptor struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
	Kind               string `json:"kind,omitempty"`
}

func writeSARIF(w io.Writer, resp *audit.Response) error {
	// One SARIF rule per distinct code, described by its translation.
	var rules []sarifReportingDescriptor
	for _, issue := range resp.Issues {
		rules = append(rules, sarifReportingDescriptor{
			ID:               issue.Code,
			ShortDescription: sarifMessage{Text: ruleTitle(issue.Code, issue.Translation.Title)},
			DefaultConfig:    sarifDefaultConfig{Level: priorityToSARIFLevel(issue.Priority)},
		})
	}

	var results []sarifResult
	for _, issue := range resp.Issues {
		message := issue.Translation.Description
		if len(issue.Messages) > 0 {
			message = issue.Messages[0]
		}
		r := sarifResult{
			RuleID:  issue.Code,
			Level:   priorityToSARIFLevel(issue.Priority),
			Message: sarifMessage{Text: message},
		}
		loc := sarifLocation{
			PhysicalLocation: &sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: resp.URL},
			},
		}
		for _, sel := range issue.Samples {
			loc.LogicalLocations = append(loc.LogicalLocations, sarifLogicalLocation{
				FullyQualifiedName: sel,
				Kind:               "element",
			})
		}
		r.Locations = []sarifLocation{loc}
		results = append(results, r)
	}

	log := sarifLog{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:           "a11ylens",
					InformationURI: "https://github.com/okuzmin/a11ylens",
					Rules:          rules,
				},
			},
			Results: results,
		}},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func priorityToSARIFLevel(p taxonomy.Priority) string {
	switch p {
	case taxonomy.PriorityCritical:
		return "error"
	case taxonomy.PriorityWarning:
		return "warning"
	default:
		return "note"
	}
}

func ruleTitle(code, title string) string {
	if title != "" {
		return title
	}
	return taxonomy.StripCode(code)
}
