package appointments

import (
	"sort"
	"strings"
)

// Reconcile merges the legacy per-patient documents with the two global-query
// result sets into one logical appointment list, keyed by the merge key: a
// legacy document's globalAppointmentId when present, else its own id.
//
// The two global result sets may overlap when both owner-key fields are
// populated on a document; the union deduplicates by document id. Global
// fields win for matched pairs, except a blank global reason adopts the
// legacy one. The returned list is sorted by date descending with insertion
// order breaking ties. The second return value counts documents dropped
// because no date could be resolved.
//
// A global document with an unparsable date suppresses the whole merged
// record, even when a legacy twin under the same key carries a valid date.
// That matches the portal's historical behavior; see DESIGN.md before
// changing it.
func Reconcile(legacy, globalByPatientID, globalByPatientUID []Document) ([]Record, int) {
	dropped := 0
	merged := make(map[string]*Record)
	rejected := make(map[string]struct{})
	var order []string

	seen := make(map[string]struct{})
	for _, docs := range [][]Document{globalByPatientID, globalByPatientUID} {
		for _, doc := range docs {
			if _, dup := seen[doc.ID]; dup {
				continue
			}
			seen[doc.ID] = struct{}{}

			rec, err := Normalize(doc)
			if err != nil {
				dropped++
				rejected[doc.ID] = struct{}{}
				continue
			}
			rec.ID = doc.ID
			rec.GlobalAppointmentID = doc.ID
			rec.PatientDocID = doc.ID
			merged[doc.ID] = &rec
			order = append(order, doc.ID)
		}
	}

	for _, doc := range legacy {
		rec, err := Normalize(doc)
		if err != nil {
			dropped++
			continue
		}

		key := rec.GlobalAppointmentID
		if _, gone := rejected[key]; gone {
			dropped++
			continue
		}
		if existing, ok := merged[key]; ok {
			if strings.TrimSpace(existing.Reason) == "" {
				existing.Reason = rec.Reason
			}
			// Later writes must target the correct legacy document.
			existing.PatientDocID = doc.ID
			continue
		}

		rec.ID = key
		rec.GlobalAppointmentID = key
		rec.PatientDocID = doc.ID
		merged[key] = &rec
		order = append(order, key)
	}

	out := make([]Record, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, dropped
}
