package presence

import (
	"github.com/sharetube/watchroom/internal/domain"
	"golang.org/x/exp/slices"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortParticipants orders list in place: the owner first, then selfID when
// selfFirst is set, then by status (online, away, offline) and finally by display
// name in collation order.
func SortParticipants(list []domain.Participant, selfID string, selfFirst bool, col *collate.Collator) {
	if col == nil {
		col = collate.New(language.Und)
	}

	slices.SortStableFunc(list, func(a, b domain.Participant) int {
		if a.IsOwner != b.IsOwner {
			if a.IsOwner {
				return -1
			}
			return 1
		}

		if selfFirst {
			aSelf, bSelf := a.ID == selfID, b.ID == selfID
			if aSelf != bSelf {
				if aSelf {
					return -1
				}
				return 1
			}
		}

		if c := domain.CompareStatus(a.Status, b.Status); c != 0 {
			return c
		}

		return col.CompareString(a.DisplayName, b.DisplayName)
	})
}
