package report

import (
	"fmt"
	"strings"

	"accidentbot/internal/catalog"
)

// Summary renders every draft field for review. It does not modify d.
func (m *Machine) Summary(d *Draft) string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Accident report summary\nCheck the information before submitting:\n\n")

	if d.OccurredAt != nil {
		fmt.Fprintf(&sb, "Date and time (UTC): %s (%s local)\n", FormatTimestamp(*d.OccurredAt), FormatLocal(*d.OccurredAt, m.loc))
	} else {
		sb.WriteString("Date and time (UTC): N/A\n")
	}
	fmt.Fprintf(&sb, "Victim sex: %s\n", orNA(d.VictimSex))
	if d.VictimAge != nil {
		fmt.Fprintf(&sb, "Victim age: %d years\n", *d.VictimAge)
	} else {
		sb.WriteString("Victim age: N/A\n")
	}
	if d.VictimCount != nil {
		fmt.Fprintf(&sb, "Number of victims: %d\n", *d.VictimCount)
	} else {
		sb.WriteString("Number of victims: N/A\n")
	}
	fmt.Fprintf(&sb, "Victim condition: %s\n", labelFor(m.cat.VictimConditions, d.VictimConditionID))
	fmt.Fprintf(&sb, "Gravity: %s\n", labelFor(m.cat.Gravities, d.GravityID))
	fmt.Fprintf(&sb, "Accident type: %s\n", labelFor(m.cat.AccidentTypes, d.AccidentTypeID))

	switch {
	case d.LocationID == 0:
		sb.WriteString("Location: N/A")
	case d.LocationLabel != "":
		fmt.Fprintf(&sb, "Location: %s (ID %d)", d.LocationLabel, d.LocationID)
	default:
		fmt.Fprintf(&sb, "Location: ID %d", d.LocationID)
	}
	return sb.String()
}

func labelFor(v catalog.Vocabulary, id int) string {
	if id == 0 {
		return "N/A"
	}
	if label, ok := v.Label(id); ok {
		return label
	}
	return fmt.Sprintf("ID %d", id)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
