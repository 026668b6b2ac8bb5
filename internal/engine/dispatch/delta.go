// internal/engine/dispatch/delta.go
package dispatch

import (
	"math"
	"strings"

	"subtrack-notifier/internal/models"
)

// computeEvents maps a coarse mutation plus the observed field deltas to the
// fine-grained matrix events. An update with several deltas fans out into one
// event per delta; each gets its own recipient aggregation downstream.
func computeEvents(kind models.ChangeKind, newSnap, oldSnap *models.Entity) []models.LifecycleEvent {
	switch kind {
	case models.ChangeCreate:
		return []models.LifecycleEvent{models.EventCreated}
	case models.ChangeCancel:
		return []models.LifecycleEvent{models.EventCancelled}
	case models.ChangeDelete:
		return []models.LifecycleEvent{models.EventDeleted}
	case models.ChangeUpdate:
		return updateEvents(newSnap, oldSnap)
	default:
		return nil
	}
}

// updateEvents diffs the snapshots against the fields tracked for the
// entity's type. Amount and quantity are subscription commercial terms; on a
// compliance filing an amount edit is just a field change. Types with no
// tracked fields produce nothing for an update.
func updateEvents(newSnap, oldSnap *models.Entity) []models.LifecycleEvent {
	if oldSnap == nil {
		// No prior snapshot to diff against; report a generic field change
		// where the type has one.
		return untrackedUpdate(newSnap.Type)
	}

	var events []models.LifecycleEvent

	switch newSnap.Type {
	case models.EntitySubscription:
		if ownerChanged(oldSnap.Owner, newSnap.Owner) {
			events = append(events, models.EventOwnerChanged)
		}
		if amountChanged(oldSnap.Amount, newSnap.Amount) {
			events = append(events, models.EventPriceChanged)
		}
		if oldSnap.Quantity != newSnap.Quantity {
			events = append(events, models.EventQuantityChanged)
		}
	case models.EntityCompliance:
		if ownerChanged(oldSnap.Owner, newSnap.Owner) {
			events = append(events, models.EventOwnerChanged)
		}
		if submittedTransition(oldSnap.Status, newSnap.Status) {
			events = append(events, models.EventSubmitted)
		}
	}

	if len(events) == 0 {
		events = untrackedUpdate(newSnap.Type)
	}
	return events
}

// untrackedUpdate is the event for an update with no tracked delta. Only
// compliance filings surface generic field changes; for the other types an
// untracked edit notifies nobody.
func untrackedUpdate(t models.EntityType) []models.LifecycleEvent {
	if t == models.EntityCompliance {
		return []models.LifecycleEvent{models.EventOtherFields}
	}
	return nil
}

// ownerChanged compares owner references case- and whitespace-insensitively.
// Empty-to-empty is no change; empty-to-set and set-to-empty both count.
func ownerChanged(old, new string) bool {
	oldNorm := strings.ToLower(strings.TrimSpace(old))
	newNorm := strings.ToLower(strings.TrimSpace(new))
	if oldNorm == "" && newNorm == "" {
		return false
	}
	return oldNorm != newNorm
}

// amountChanged compares at 2-decimal precision so float noise from the CRUD
// layer's serialization does not produce phantom price changes.
func amountChanged(old, new float64) bool {
	return math.Round(old*100) != math.Round(new*100)
}

// submittedTransition fires only when the status flips to submitted from a
// different prior value.
func submittedTransition(old, new string) bool {
	return new == models.StatusSubmitted && old != models.StatusSubmitted
}
