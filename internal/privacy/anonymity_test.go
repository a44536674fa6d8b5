package privacy

import "testing"

type sessionRecord struct {
	subject string
	service string
}

func bySvc(r sessionRecord) string { return r.service }

func makeServiceGroups(sizes map[string]int) []sessionRecord {
	// Deterministic ordering so order-preservation checks are meaningful
	services := []string{"individual_therapy", "group_therapy", "crisis_line", "case_management"}
	var records []sessionRecord
	for _, svc := range services {
		for i := 0; i < sizes[svc]; i++ {
			records = append(records, sessionRecord{subject: svc + "-subj", service: svc})
		}
	}
	return records
}

func TestApplyKAnonymity_SuppressesSmallGroups(t *testing.T) {
	records := makeServiceGroups(map[string]int{
		"individual_therapy": 3,
		"group_therapy":      6,
		"crisis_line":        2,
		"case_management":    10,
	})

	kept, suppressed := ApplyKAnonymity(records, bySvc, 5)

	if len(kept) != 16 {
		t.Errorf("kept %d records, want 16 (groups of 6 and 10)", len(kept))
	}
	if suppressed != 2 {
		t.Errorf("suppressed %d groups, want 2", suppressed)
	}
	for _, r := range kept {
		if r.service == "individual_therapy" || r.service == "crisis_line" {
			t.Errorf("record from suppressed group %q survived", r.service)
		}
	}
}

func TestApplyKAnonymity_PreservesInputOrder(t *testing.T) {
	records := []sessionRecord{
		{subject: "a", service: "big"},
		{subject: "b", service: "small"},
		{subject: "c", service: "big"},
		{subject: "d", service: "big"},
		{subject: "e", service: "small"},
	}

	kept, suppressed := ApplyKAnonymity(records, bySvc, 3)

	if suppressed != 1 {
		t.Fatalf("suppressed %d groups, want 1", suppressed)
	}
	want := []string{"a", "c", "d"}
	if len(kept) != len(want) {
		t.Fatalf("kept %d records, want %d", len(kept), len(want))
	}
	for i, r := range kept {
		if r.subject != want[i] {
			t.Errorf("kept[%d].subject = %q, want %q (input order must survive)", i, r.subject, want[i])
		}
	}
}

func TestApplyKAnonymity_PassThroughWhenDisabled(t *testing.T) {
	records := makeServiceGroups(map[string]int{
		"individual_therapy": 1,
		"crisis_line":        2,
	})

	for _, k := range []int{0, 1} {
		kept, suppressed := ApplyKAnonymity(records, bySvc, k)
		if len(kept) != len(records) || suppressed != 0 {
			t.Errorf("k=%d: kept %d with %d suppressed, want passthrough of %d with 0",
				k, len(kept), suppressed, len(records))
		}
	}

	kept, suppressed := ApplyKAnonymity(nil, bySvc, 5)
	if len(kept) != 0 || suppressed != 0 {
		t.Errorf("empty input: kept %d with %d suppressed, want 0 and 0", len(kept), suppressed)
	}
}
