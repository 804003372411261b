package electoral

import "strings"

// regionCodes maps free-text state names to the codes the authority's search
// API expects. Names outside the table are simply omitted from the query.
var regionCodes = map[string]string{
	"andhra pradesh":   "S01",
	"himachal pradesh": "S02",
	"assam":            "S03",
	"bihar":            "S04",
	"goa":              "S05",
	"gujarat":          "S06",
	"delhi":            "S07",
	"haryana":          "S08",
	"jharkhand":        "S09",
	"karnataka":        "S10",
	"kerala":           "S11",
	"madhya pradesh":   "S12",
	"maharashtra":      "S13",
	"odisha":           "S18",
	"punjab":           "S19",
	"rajasthan":        "S20",
	"tamil nadu":       "S22",
	"uttar pradesh":    "S24",
	"west bengal":      "S25",
	"chhattisgarh":     "S26",
	"uttarakhand":      "S28",
	"telangana":        "S29",
}

// RegionCode resolves a region name to its authority code. The second return
// reports whether the name is in the table.
func RegionCode(name string) (string, bool) {
	code, ok := regionCodes[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}
