package electoral

import (
	"strconv"
	"strings"
)

// fieldSynonyms maps each logical output field to the candidate key names
// seen across authority response variants, in preference order. Matching is
// case-insensitive. Extend here when the authority grows new spellings.
var fieldSynonyms = []struct {
	field string
	keys  []string
}{
	{"voter_id", []string{"epicNumber", "epic", "epicNo"}},
	{"name", []string{"fullName", "name", "electorName", "voterName"}},
	{"first_name", []string{"applicantFirstName"}},
	{"last_name", []string{"applicantLastName"}},
	{"relative_name", []string{"relativeFullName", "relativeName", "relationName", "fatherName", "husbandName"}},
	{"relation_type", []string{"relationType"}},
	{"age", []string{"age"}},
	{"gender", []string{"gender"}},
	{"state", []string{"stateName", "state"}},
	{"district", []string{"districtValue", "district", "districtName"}},
	{"assembly_constituency", []string{"asmblyName", "assemblyConstituency", "constituency", "acName"}},
	{"ac_number", []string{"acNumber"}},
	{"parliament_constituency", []string{"prlmntName"}},
	{"parliament_number", []string{"prlmntNo"}},
	{"part_number", []string{"partNumber", "partNo"}},
	{"part_name", []string{"partName"}},
	{"serial_number", []string{"partSerialNumber", "serialNumber", "serialNo", "slNo"}},
	{"section_number", []string{"sectionNo"}},
	{"polling_station", []string{"psbuildingName", "pollingStation", "psName"}},
	{"polling_station_address", []string{"buildingAddress"}},
	{"polling_station_room", []string{"psRoomDetails"}},
	{"part_lat_long", []string{"partLatLong", "latLong"}},
}

// emptySentinels are the values the authority uses to mean "no data".
var emptySentinels = map[string]struct{}{
	"":     {},
	"N/A":  {},
	"NA":   {},
	"null": {},
	"None": {},
}

// unwrapStrategy locates the candidate record inside one known response
// shape. It returns the candidate and whether the shape applied.
type unwrapStrategy struct {
	name  string
	apply func(payload any) (map[string]any, bool)
}

// unwrapStrategies are tried in order; the first applicable one wins.
var unwrapStrategies = []unwrapStrategy{
	{"list-first", unwrapListFirst},
	{"dict-content", unwrapDictContent},
	{"dict-data", unwrapDictData},
	{"dict-response", unwrapDictResponse},
	{"identity", unwrapIdentity},
}

func unwrapListFirst(payload any) (map[string]any, bool) {
	list, ok := payload.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil, false
	}
	if content, ok := first["content"].(map[string]any); ok {
		return content, true
	}
	return first, true
}

func unwrapDictContent(payload any) (map[string]any, bool) {
	dict, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	content, ok := dict["content"].(map[string]any)
	return content, ok
}

func unwrapDictData(payload any) (map[string]any, bool) {
	dict, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	data, present := dict["data"]
	if !present {
		return nil, false
	}
	if list, ok := data.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		data = list[0]
	}
	inner, ok := data.(map[string]any)
	if !ok {
		return nil, false
	}
	if content, ok := inner["content"].(map[string]any); ok {
		return content, true
	}
	return inner, true
}

func unwrapDictResponse(payload any) (map[string]any, bool) {
	dict, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	response, present := dict["response"]
	if !present {
		return nil, false
	}
	if list, ok := response.([]any); ok {
		if len(list) == 0 {
			return nil, false
		}
		response = list[0]
	}
	inner, ok := response.(map[string]any)
	return inner, ok
}

func unwrapIdentity(payload any) (map[string]any, bool) {
	dict, ok := payload.(map[string]any)
	return dict, ok
}

// Normalize flattens a variably-shaped authority response into a consistent
// field set. The second return is false when no record structure could be
// located, in which case the caller must surface the raw payload instead of
// discarding it.
func Normalize(payload any) (map[string]string, bool) {
	var record map[string]any
	for _, strategy := range unwrapStrategies {
		if candidate, ok := strategy.apply(payload); ok {
			record = candidate
			break
		}
	}
	if record == nil {
		return nil, false
	}

	flat := make(map[string]string)
	for _, mapping := range fieldSynonyms {
		for _, key := range mapping.keys {
			value, ok := lookupFold(record, key)
			if !ok {
				continue
			}
			if text, ok := stringifyPrimitive(value); ok {
				flat[mapping.field] = text
				break
			}
		}
	}

	// No synonym matched anything; keep every primitive field verbatim so
	// the operator still sees the record.
	if len(flat) == 0 {
		for key, value := range record {
			if text, ok := stringifyPrimitive(value); ok {
				flat[key] = text
			}
		}
	}

	if len(flat) == 0 {
		return nil, false
	}
	return flat, true
}

// lookupFold finds a key in the record by case-insensitive comparison.
func lookupFold(record map[string]any, key string) (any, bool) {
	if value, ok := record[key]; ok {
		return value, true
	}
	for actual, value := range record {
		if strings.EqualFold(actual, key) {
			return value, true
		}
	}
	return nil, false
}

// stringifyPrimitive renders a string or numeric JSON value, dropping
// anything structured and anything carrying an empty-value sentinel.
func stringifyPrimitive(value any) (string, bool) {
	var text string
	switch v := value.(type) {
	case string:
		text = strings.TrimSpace(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", false
	}
	if _, sentinel := emptySentinels[text]; sentinel {
		return "", false
	}
	return text, true
}
