package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kukmin84ai/bibliotheca/model"
)

const maxPromptRunes = 3000

// TripletPrompt builds the LLM prompt asking for up to maxTriplets
// triplets from text. Text is cut to its first 3000 runes.
func TripletPrompt(text string, maxTriplets int) string {
	if runes := []rune(text); len(runes) > maxPromptRunes {
		text = string(runes[:maxPromptRunes])
	}

	var sb strings.Builder
	sb.WriteString("Extract knowledge graph triplets from the following academic text.\n\n")
	sb.WriteString("Entity types: " + strings.Join(model.EntityTypes, ", ") + "\n")
	sb.WriteString("Relationship types: " + strings.Join(model.RelationshipTypes, ", ") + "\n\n")
	sb.WriteString(fmt.Sprintf("Extract up to %d triplets in JSON format:\n", maxTriplets))
	sb.WriteString(`[{"subject": "...", "predicate": "...", "object": "..."}]` + "\n\n")
	sb.WriteString("Text:\n" + text + "\n\n")
	sb.WriteString("Triplets (JSON array only):")
	return sb.String()
}

// ParseTriplets reads the triplets from an LLM response. Code fences are
// ignored and prose around the JSON array is tolerated. Items missing a
// part are dropped. Unparsable responses yield nil.
func ParseTriplets(response string, sourceFile string, sourceChunkID string) []*model.Triplet {
	text := strings.TrimSpace(response)

	if strings.HasPrefix(text, "```") {
		var lines []string
		for _, line := range strings.Split(text, "\n") {
			if !strings.HasPrefix(strings.TrimSpace(line), "```") {
				lines = append(lines, line)
			}
		}
		text = strings.TrimSpace(strings.Join(lines, "\n"))
	}

	var raw []interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start == -1 || end <= start {
			return nil
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
			return nil
		}
	}

	var triplets []*model.Triplet
	for _, element := range raw {
		item, ok := element.(map[string]interface{})
		if !ok {
			continue
		}
		subject, okS := item["subject"]
		predicate, okP := item["predicate"]
		object, okO := item["object"]
		if !okS || !okP || !okO {
			continue
		}

		triplet := &model.Triplet{
			Subject:       stringValue(subject),
			Predicate:     stringValue(predicate),
			Object:        stringValue(object),
			SourceFile:    sourceFile,
			SourceChunkID: sourceChunkID,
			Confidence:    confidenceValue(item["confidence"]),
		}
		triplet.Normalize()
		if !triplet.Valid() {
			continue
		}
		triplets = append(triplets, triplet)
	}

	return triplets
}

func stringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func confidenceValue(v interface{}) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case string:
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return f
		}
	}
	return 1.0
}
