package workflows

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NotApplicable is rendered for absent values.
const NotApplicable = "N/A"

// FormatAmount renders a currency amount with two fraction digits, or N/A when absent.
func FormatAmount(v *float64) string {
	if v == nil {
		return NotApplicable
	}
	return FormatCurrency(*v)
}

// FormatCurrency renders v as US dollars, e.g. $1,234.50.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	fixed := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	intPart, frac, _ := strings.Cut(fixed, ".")
	if intPart == "0" && frac == "00" {
		sign = ""
	}
	return sign + "$" + groupThousands(intPart) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatTime renders a backend timestamp as M/D/YYYY, h:mm:ss AM. Unparseable input is returned as-is.
func FormatTime(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return NotApplicable
	}
	t, ok := ParseTime(raw)
	if !ok {
		return raw
	}
	return t.Format("1/2/2006, 3:04:05 PM")
}

// OrNA returns s, or N/A when s is empty.
func OrNA(s string) string {
	if s == "" {
		return NotApplicable
	}
	return s
}

// StageEntry is a renderable stage result.
type StageEntry struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// StageEntries renders non-empty stages in backend order with upper-cased names.
func StageEntries(stages Stages) []StageEntry {
	out := make([]StageEntry, 0, len(stages))
	for _, st := range stages {
		if isEmptyJSON(st.Data) {
			continue
		}
		out = append(out, StageEntry{Name: strings.ToUpper(st.Name), Data: PrettyJSON(st.Data)})
	}
	return out
}

// PrettyJSON indents raw JSON by two spaces.
func PrettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
