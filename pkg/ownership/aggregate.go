// Package ownership turns a submission record into the beneficial-ownership
// disclosure a banking partner expects: role-holders deduplicated by taxpayer
// identity, each carrying the full set of compliance prongs they satisfy.
package ownership

import (
	"sort"

	"github.com/lemma-health/go-onboarding/pkg/entity"
	"github.com/lemma-health/go-onboarding/pkg/fields"
)

// RoleHolder is one deduplicated individual with every prong they hold.
type RoleHolder struct {
	Person entity.PersonRecord
	Prongs []entity.Prong
}

// HasProng reports whether the holder carries the given prong.
func (h RoleHolder) HasProng(p entity.Prong) bool {
	for _, got := range h.Prongs {
		if got == p {
			return true
		}
	}
	return false
}

// Aggregate folds the control person and beneficial owners into a single
// holder list keyed by normalized SSN. The control person is seeded first
// with the control prong, plus ownership when they also own a qualifying
// share. Owners sharing the control person's SSN merge into that entry
// rather than appearing twice. Individuals without an SSN are skipped, and
// output order is control person first, then owner insertion order.
func Aggregate(rec entity.Record) []RoleHolder {
	type slot struct {
		holder RoleHolder
		prongs map[entity.Prong]struct{}
	}

	var order []string
	index := map[string]*slot{}

	add := func(person entity.PersonRecord, prongs ...entity.Prong) {
		key := fields.StripNonDigits(person.SSN)
		if key == "" {
			return
		}
		entry, ok := index[key]
		if !ok {
			entry = &slot{
				holder: RoleHolder{Person: person},
				prongs: map[entity.Prong]struct{}{},
			}
			index[key] = entry
			order = append(order, key)
		}
		for _, p := range prongs {
			entry.prongs[p] = struct{}{}
		}
	}

	controlProngs := []entity.Prong{entity.ProngControl}
	if rec.ControlPersonOwnsBusiness {
		controlProngs = append(controlProngs, entity.ProngOwnership)
	}
	add(rec.ControlPerson, controlProngs...)

	for _, owner := range rec.BeneficialOwners {
		add(owner, entity.ProngOwnership)
	}

	holders := make([]RoleHolder, 0, len(order))
	for _, key := range order {
		entry := index[key]
		for p := range entry.prongs {
			entry.holder.Prongs = append(entry.holder.Prongs, p)
		}
		sort.Slice(entry.holder.Prongs, func(i, j int) bool {
			return entry.holder.Prongs[i] < entry.holder.Prongs[j]
		})
		holders = append(holders, entry.holder)
	}
	return holders
}
