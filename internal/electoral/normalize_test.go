package electoral

import (
	"encoding/json"
	"testing"
)

func decodePayload(t *testing.T, raw string) any {
	t.Helper()
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad test payload: %v", err)
	}
	return payload
}

func TestNormalizeDictContent(t *testing.T) {
	payload := decodePayload(t, `{"content": {"fullName": "A", "age": "N/A"}}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["name"] != "A" {
		t.Fatalf("expected name A, got %q", record["name"])
	}
	if _, present := record["age"]; present {
		t.Fatalf("sentinel-valued age must be omitted, got %q", record["age"])
	}
}

func TestNormalizeListOfEnvelopes(t *testing.T) {
	payload := decodePayload(t, `[{"content": {"epicNumber": "XWC0001", "electorName": "Asha Rao", "age": 42}}]`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["voter_id"] != "XWC0001" {
		t.Fatalf("unexpected voter_id: %q", record["voter_id"])
	}
	if record["name"] != "Asha Rao" {
		t.Fatalf("unexpected name: %q", record["name"])
	}
	if record["age"] != "42" {
		t.Fatalf("expected numeric age stringified, got %q", record["age"])
	}
}

func TestNormalizeDictDataListWithContent(t *testing.T) {
	payload := decodePayload(t, `{"data": [{"content": {"psName": "Ward School", "districtName": "Pune"}}]}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["polling_station"] != "Ward School" {
		t.Fatalf("unexpected polling_station: %q", record["polling_station"])
	}
	if record["district"] != "Pune" {
		t.Fatalf("unexpected district: %q", record["district"])
	}
}

func TestNormalizeDictResponseList(t *testing.T) {
	payload := decodePayload(t, `{"response": [{"voterName": "B", "stateName": "Kerala"}]}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["name"] != "B" || record["state"] != "Kerala" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestNormalizeContentBeatsDataAndResponse(t *testing.T) {
	payload := decodePayload(t, `{
		"content": {"fullName": "From Content"},
		"data": {"fullName": "From Data"},
		"response": {"fullName": "From Response"}
	}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["name"] != "From Content" {
		t.Fatalf("content must win, got %q", record["name"])
	}
}

func TestNormalizeFlatRecord(t *testing.T) {
	payload := decodePayload(t, `{"FULLNAME": "Case Insensitive", "Gender": "F"}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["name"] != "Case Insensitive" {
		t.Fatalf("case-insensitive key match failed: %v", record)
	}
	if record["gender"] != "F" {
		t.Fatalf("unexpected gender: %v", record)
	}
}

func TestNormalizeFallsBackToPrimitives(t *testing.T) {
	payload := decodePayload(t, `{"content": {"unknownKey": "kept", "nested": {"x": 1}, "blank": "NA", "num": 7}}`)
	record, ok := Normalize(payload)
	if !ok {
		t.Fatal("expected a record")
	}
	if record["unknownKey"] != "kept" || record["num"] != "7" {
		t.Fatalf("fallback should keep primitives: %v", record)
	}
	if _, present := record["nested"]; present {
		t.Fatal("structured values must not appear in the fallback")
	}
	if _, present := record["blank"]; present {
		t.Fatal("sentinel values must be filtered in the fallback")
	}
}

func TestNormalizeUnparseablePayload(t *testing.T) {
	for _, raw := range []string{`"just a string"`, `[]`, `[1, 2]`, `42`, `null`} {
		if record, ok := Normalize(decodePayload(t, raw)); ok {
			t.Fatalf("payload %s: expected no record, got %v", raw, record)
		}
	}
}

func TestRegionCodeTable(t *testing.T) {
	if code, ok := RegionCode(" Maharashtra "); !ok || code != "S13" {
		t.Fatalf("expected S13, got %q ok=%v", code, ok)
	}
	if code, ok := RegionCode("TAMIL NADU"); !ok || code != "S22" {
		t.Fatalf("expected S22, got %q ok=%v", code, ok)
	}
	if _, ok := RegionCode("atlantis"); ok {
		t.Fatal("unknown regions must not map")
	}
	if _, ok := RegionCode(""); ok {
		t.Fatal("empty region must not map")
	}
}
