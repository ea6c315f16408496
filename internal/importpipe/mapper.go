package importpipe

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

// AIColumnMapper is the pluggable AI collaborator contract (spec §6):
// detect_entity_type classifies a file from its headers and sample rows,
// map_columns proposes a source-column -> target-field mapping. A concrete
// implementation calls out to whatever LLM provider a deployment wires in;
// Service falls back to fuzzyMapper when either call errors or returns an
// empty result (SPEC_FULL.md §12.9); mapped targets the entity does not
// declare are set to nil rather than sent to the fallback.
type AIColumnMapper interface {
	DetectEntityType(ctx context.Context, header []string, sample [][]string) (EntityType, error)
	MapColumns(ctx context.Context, entityType EntityType, header []string, sample [][]string) (map[string]*string, error)
}

// fuzzyMapper is the always-available, dependency-free AIColumnMapper
// fallback: heuristic entity detection plus Levenshtein-ratio column
// mapping. It never errors — Analyse uses it directly when no AIColumnMapper
// is configured, and as the recovery path when one is configured but fails.
type fuzzyMapper struct{}

func newFuzzyMapper() *fuzzyMapper { return &fuzzyMapper{} }

// entityHints lists header substrings that are distinctive of one entity
// type, used to score a file's most likely EntityType (SPEC_FULL.md §12.10).
// EMPLOYEE_TRANSACTION is checked first since its shape (employee_number +
// component + amount + effective_from) is the easiest to confuse with a
// plain EMPLOYEE sheet that happens to carry a salary column.
var entityHints = []struct {
	entity EntityType
	need   []string // every one of these must appear among the normalized headers
	any    []string // at least one of these must also appear
}{
	{
		entity: EntityEmployeeTransaction,
		need:   []string{"employee_number"},
		any:    []string{"component", "component_code", "override_amount", "amount"},
	},
	{
		entity: EntityBankAccount,
		need:   []string{"account_number"},
		any:    []string{"bank_code", "branch", "account_name"},
	},
	{
		entity: EntityBank,
		need:   []string{"bank_code"},
		any:    []string{"bank_name"},
	},
	{
		entity: EntityPayComponent,
		need:   []string{"code"},
		any:    []string{"component_type", "calc_kind", "category"},
	},
	{
		entity: EntityEmployee,
		need:   []string{"employee_number"},
		any:    []string{"first_name", "last_name", "date_of_joining", "grade_code"},
	},
}

func (f *fuzzyMapper) DetectEntityType(ctx context.Context, header []string, sample [][]string) (EntityType, error) {
	normalized := make(map[string]bool, len(header))
	for _, h := range header {
		normalized[normalizeHeader(h)] = true
	}

	has := func(needle string) bool {
		for h := range normalized {
			if strings.Contains(h, needle) {
				return true
			}
		}
		return false
	}

	for _, hint := range entityHints {
		allNeeded := true
		for _, n := range hint.need {
			if !has(n) {
				allNeeded = false
				break
			}
		}
		if !allNeeded {
			continue
		}
		if len(hint.any) == 0 {
			return hint.entity, nil
		}
		for _, a := range hint.any {
			if has(a) {
				return hint.entity, nil
			}
		}
	}

	// Nothing scored: default to the broadest entity type rather than error,
	// leaving the operator to correct the mapping by hand in Preview.
	return EntityEmployee, nil
}

func (f *fuzzyMapper) MapColumns(ctx context.Context, entityType EntityType, header []string, sample [][]string) (map[string]*string, error) {
	targets := TargetSchema[entityType]
	return fuzzyMapColumns(header, targets), nil
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSONObject recovers a JSON object from an LLM's raw text response,
// defensively: try the whole string, then a fenced ```json``` block, then
// the first brace-delimited substring (SPEC_FULL.md §12.9).
func extractJSONObject(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)

	var out map[string]any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	if m := jsonFenceRe.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &out); err == nil {
			return out, nil
		}
	}

	if m := jsonObjectRe.FindString(trimmed); m != "" {
		if err := json.Unmarshal([]byte(m), &out); err == nil {
			return out, nil
		}
	}

	return nil, errNoJSONObject
}

var errNoJSONObject = jsonExtractError("no JSON object found in response")

type jsonExtractError string

func (e jsonExtractError) Error() string { return string(e) }

// validateMapping drops any proposed target field that is not a declared
// field of the entity's schema (spec §4.M), returning the cleaned mapping.
func validateMapping(entityType EntityType, mapping map[string]*string) map[string]*string {
	allowed := make(map[string]bool, len(TargetSchema[entityType]))
	for _, f := range TargetSchema[entityType] {
		allowed[f] = true
	}

	cleaned := make(map[string]*string, len(mapping))
	for source, target := range mapping {
		if target == nil || !allowed[*target] {
			cleaned[source] = nil
			continue
		}
		cleaned[source] = target
	}
	return cleaned
}

// ParseAIMappingResponse recovers a source_column -> target_field mapping
// from an AI collaborator's raw text response, applying the defensive
// JSON-extraction chain of SPEC_FULL.md §12.9 and then validating every
// proposed target field against the entity's schema. HTTP transport to an
// actual AI provider is out of scope for this module (spec §1); this is
// the shared parsing seam a deployment's own AIColumnMapper implementation
// calls after it receives the provider's response text.
func ParseAIMappingResponse(entityType EntityType, raw string) (map[string]*string, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]*string, len(obj))
	for source, v := range obj {
		switch t := v.(type) {
		case string:
			target := t
			mapping[source] = &target
		case nil:
			mapping[source] = nil
		default:
			mapping[source] = nil
		}
	}
	return validateMapping(entityType, mapping), nil
}
