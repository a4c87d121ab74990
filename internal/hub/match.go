package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edvart/cardhub/internal/herr"
	"github.com/edvart/cardhub/internal/store"
)

const (
	historyWin      = "勝利"
	historyLose     = "敗北"
	historyCancel   = "対戦中止"
	historyDisputed = "結果不一致"
)

// createMatch implements §4.D's creation step: mint a match row,
// cross-link the two sessions' opponent pointers, and notify both
// connections with match_found — p1 is the earlier arrival and is
// assigned the signaling initiator role.
func (h *Hub) createMatch(p1ID, p1Conn, p2ID, p2Conn string) {
	matchID := uuid.New().String()
	if err := h.store.InsertMatch(h.ctx, matchID, p1ID, p2ID); err != nil {
		h.log.WithError(err).Error("insert match failed")
		return
	}

	u1, err1 := h.store.FetchUser(h.ctx, p1ID)
	u2, err2 := h.store.FetchUser(h.ctx, p2ID)
	if err1 != nil || err2 != nil || u1 == nil || u2 == nil {
		h.log.WithField("matchId", matchID).Error("fetch paired users failed")
		return
	}

	if err := h.store.PatchUser(h.ctx, p1ID, store.UserPatch{CurrentMatchID: &matchID}); err != nil {
		h.log.WithError(err).Warn("patch currentMatchId failed")
	}
	if err := h.store.PatchUser(h.ctx, p2ID, store.UserPatch{CurrentMatchID: &matchID}); err != nil {
		h.log.WithError(err).Warn("patch currentMatchId failed")
	}

	if s1 := h.state.session(p1Conn); s1 != nil {
		s1.OppConn = p2Conn
		s1.MatchID = matchID
	}
	if s2 := h.state.session(p2Conn); s2 != nil {
		s2.OppConn = p1Conn
		s2.MatchID = matchID
	}

	h.pusher.Send(p1Conn, MatchFoundEvent{
		Type: "match_found", MatchID: matchID,
		Opponent: Player{ID: p2ID, Name: u2.Name}, IsInitiator: true,
	})
	h.pusher.Send(p2Conn, MatchFoundEvent{
		Type: "match_found", MatchID: matchID,
		Opponent: Player{ID: p1ID, Name: u1.Name}, IsInitiator: false,
	})

	h.log.WithField("matchId", matchID).Info("match created")
}

// handleReportResult implements §4.D's report handling and, once both
// slots are filled, resolution.
func (h *Hub) handleReportResult(c ReportResult) (any, error) {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("%w: not logged in", herr.Auth)
	}
	if c.Result != "win" && c.Result != "lose" && c.Result != "cancel" {
		return nil, fmt.Errorf("%w: result must be win, lose, or cancel", herr.Validation)
	}

	match, err := store.Retry(func() (*store.Match, error) { return h.store.FetchMatch(h.ctx, c.MatchID) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if match == nil {
		return nil, fmt.Errorf("%w: unknown match", herr.NotFound)
	}
	if match.ResolvedAt != nil {
		return nil, fmt.Errorf("%w: match already resolved", herr.State)
	}

	var slot int
	switch sess.UserID {
	case match.P1:
		slot = 1
	case match.P2:
		slot = 2
	default:
		return nil, fmt.Errorf("%w: not a participant in this match", herr.State)
	}

	existing := match.P1Report
	if slot == 2 {
		existing = match.P2Report
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: duplicate report", herr.Conflict)
	}

	wrote, err := store.Retry(func() (bool, error) { return h.store.PatchMatchReport(h.ctx, c.MatchID, slot, c.Result) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", herr.Transient, err)
	}
	if !wrote {
		return nil, fmt.Errorf("%w: duplicate report", herr.Conflict)
	}

	match, err = h.store.FetchMatch(h.ctx, c.MatchID)
	if err != nil || match == nil {
		return nil, fmt.Errorf("%w: %v", herr.Internal, err)
	}

	if match.P1Report == nil || match.P2Report == nil {
		return map[string]string{"status": "pending"}, nil
	}

	return h.resolveMatch(match)
}

// resolveMatch applies §4.D's resolution rules in strict order, once
// both reports are present. The outcome is a pure function of the two
// slot reports and the players' current rates — the order in which the
// reports arrived has no effect.
func (h *Hub) resolveMatch(match *store.Match) (any, error) {
	p1Report, p2Report := *match.P1Report, *match.P2Report

	u1, err1 := h.store.FetchUser(h.ctx, match.P1)
	u2, err2 := h.store.FetchUser(h.ctx, match.P2)
	if err1 != nil || err2 != nil || u1 == nil || u2 == nil {
		return nil, fmt.Errorf("%w: could not load match participants", herr.Internal)
	}

	var outcome string
	rate1, rate2 := u1.Rate, u2.Rate
	hist1, hist2 := historyCancel, historyCancel

	switch {
	case p1Report == "cancel" && p2Report == "cancel":
		outcome = "cancel"
		hist1, hist2 = historyCancel, historyCancel
	case (p1Report == "win" && p2Report == "lose") || (p1Report == "lose" && p2Report == "win"):
		outcome = "consistent"
		p1Wins := p1Report == "win"
		var winnerRate, loserRate int
		if p1Wins {
			winnerRate, loserRate = u1.Rate, u2.Rate
		} else {
			winnerRate, loserRate = u2.Rate, u1.Rate
		}
		delta := eloDelta(winnerRate, loserRate)
		if p1Wins {
			rate1, rate2 = u1.Rate+delta, u2.Rate-delta
			hist1 = fmt.Sprintf("%s %d→%d", historyWin, u1.Rate, rate1)
			hist2 = fmt.Sprintf("%s %d→%d", historyLose, u2.Rate, rate2)
		} else {
			rate2, rate1 = u2.Rate+delta, u1.Rate-delta
			hist2 = fmt.Sprintf("%s %d→%d", historyWin, u2.Rate, rate2)
			hist1 = fmt.Sprintf("%s %d→%d", historyLose, u1.Rate, rate1)
		}
	default:
		outcome = "disputed"
		hist1, hist2 = historyDisputed, historyDisputed
	}

	newHist1 := prependHistory(u1.MatchHistory, hist1)
	newHist2 := prependHistory(u2.MatchHistory, hist2)
	clearedMatch := ""

	if err := h.store.PatchUser(h.ctx, u1.ID, store.UserPatch{
		Rate: &rate1, MatchHistory: &newHist1, CurrentMatchID: &clearedMatch,
	}); err != nil {
		h.log.WithError(err).Warn("patch user after resolution failed")
	}
	if err := h.store.PatchUser(h.ctx, u2.ID, store.UserPatch{
		Rate: &rate2, MatchHistory: &newHist2, CurrentMatchID: &clearedMatch,
	}); err != nil {
		h.log.WithError(err).Warn("patch user after resolution failed")
	}

	if _, err := h.store.MarkResolved(h.ctx, match.ID, time.Now()); err != nil {
		h.log.WithError(err).Warn("mark resolved failed")
	}

	h.clearOpponentPointer(u1.ID)
	h.clearOpponentPointer(u2.ID)

	h.notifyResolution(u1.ID, match.ID, outcome, rate1, rate1-u1.Rate, newHist1)
	h.notifyResolution(u2.ID, match.ID, outcome, rate2, rate2-u2.Rate, newHist2)

	h.log.WithField("matchId", match.ID).WithField("outcome", outcome).Info("match resolved")

	return map[string]string{"status": outcome}, nil
}

// clearOpponentPointer drops the runtime opponent/match hint on
// userID's live connection, if any. A no-op if the connection has
// since closed — the persisted state is authoritative regardless.
func (h *Hub) clearOpponentPointer(userID string) {
	connID, ok := h.state.byUser[userID]
	if !ok {
		return
	}
	if sess := h.state.session(connID); sess != nil {
		sess.OppConn = ""
		sess.MatchID = ""
	}
}

func (h *Hub) notifyResolution(userID, matchID, outcome string, rate, rateChange int, history []string) {
	connID, ok := h.state.byUser[userID]
	if !ok {
		return
	}
	h.pusher.Send(connID, MatchResolvedEvent{
		Type: "match_resolved", MatchID: matchID, Outcome: outcome,
		Rate: rate, RateChange: rateChange, MatchHistory: history,
	})
}

func prependHistory(old []string, entry string) []string {
	h := append([]string{entry}, old...)
	if len(h) > store.HistoryCap {
		h = h[:store.HistoryCap]
	}
	return h
}

func (h *Hub) handleClearMatchInfo(c ClearMatchInfo) error {
	sess := h.state.session(c.ConnID)
	if sess == nil || sess.UserID == "" {
		return fmt.Errorf("%w: not logged in", herr.Auth)
	}

	cleared := ""
	if err := h.store.PatchUser(h.ctx, sess.UserID, store.UserPatch{CurrentMatchID: &cleared}); err != nil {
		return fmt.Errorf("%w: %v", herr.Internal, err)
	}
	sess.OppConn = ""
	sess.MatchID = ""
	return nil
}
