/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

// ViewFor returns the snapshot as playerID is allowed to see it.
//
// Until the round reaches results, only the viewer's own secret role is
// kept, the shared word is kept only for players who are not the impostor,
// and the impostor's id is hidden. Observers that are not on the roster
// pass an empty playerID and see no secrets at all.
func (s Snapshot) ViewFor(playerID string) Snapshot {
	if s.Stage == StageResults {
		return s
	}

	v := s
	v.ImpostorID = ""
	v.CurrentWord = ""

	v.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		if p.ID != playerID {
			p.Word = ""
		} else if p.Word != "" && p.Word != ImpostorRole {
			v.CurrentWord = s.CurrentWord
		}
		v.Players[i] = p
	}

	if s.CurrentQuestioner != nil {
		q := *s.CurrentQuestioner
		if q.ID != playerID {
			q.Word = ""
		}
		v.CurrentQuestioner = &q
	}

	return v
}
