package core

import "time"

// SuggestedColumn is the detector's guess for one file column: the rule key
// that every sampled value satisfies, plus its parameters for rules that
// need them (date formats).
type SuggestedColumn struct {
	Name    string     `json:"name"`
	RuleKey string     `json:"ruleKey"`
	Params  RuleParams `json:"params,omitempty"`
}

// detectSampleRows caps how many rows the detector inspects per column.
const detectSampleRows = 200

// DetectColumns inspects a grid and suggests one rule binding per column,
// used to pre-fill a new template from an uploaded file. Detection checks
// the most specific type first and falls back to text. A column whose
// sampled values are all empty is suggested as text.
func DetectColumns(g *Grid) []SuggestedColumn {
	out := make([]SuggestedColumn, len(g.Headers))
	for col, name := range g.Headers {
		out[col] = SuggestedColumn{Name: name, RuleKey: detectColumn(g, col)}
		if out[col].RuleKey == RuleDate {
			format := detectDateFormat(g, col)
			out[col].Params = RuleParams{"format": format}
		}
	}
	return out
}

func detectColumn(g *Grid, col int) string {
	values := sampleColumn(g, col)
	if len(values) == 0 {
		return RuleText
	}

	allInt, allNum, allBool, allEmail, allAlnum := true, true, true, true, true
	for _, v := range values {
		if _, ok := ParseInt(v); !ok {
			allInt = false
		}
		if _, ok := ParseNumber(v); !ok {
			allNum = false
		}
		if _, ok := ParseBool(v); !ok {
			allBool = false
		}
		if !IsEmail(v) {
			allEmail = false
		}
		if !IsAlphanumeric(v) {
			allAlnum = false
		}
	}

	switch {
	case allBool:
		return RuleBoolean
	case allInt:
		return RuleInteger
	case allNum:
		return RuleDecimal
	case allEmail:
		return RuleEmail
	case detectDateFormat(g, col) != "":
		return RuleDate
	case allAlnum:
		return RuleAlphanumeric
	default:
		return RuleText
	}
}

// detectDateFormat returns the first display format every sampled value in
// the column parses under, or "" when none fits.
func detectDateFormat(g *Grid, col int) string {
	values := sampleColumn(g, col)
	if len(values) == 0 {
		return ""
	}
	for _, format := range DateFormats() {
		layout, _ := DateLayout(format)
		ok := true
		for _, v := range values {
			if _, err := time.Parse(layout, v); err != nil {
				ok = false
				break
			}
		}
		if ok {
			return format
		}
	}
	return ""
}

func sampleColumn(g *Grid, col int) []string {
	var out []string
	for row := 0; row < len(g.Rows) && row < detectSampleRows; row++ {
		v, ok := g.Cell(row, col)
		if !ok {
			continue
		}
		v = CleanValue(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
