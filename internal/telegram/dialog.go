package telegram

import (
	"sync"
)

// Force-sub setup is a two-step linear dialogue: the owner picks the
// channel type from buttons, then sends the channel ID as a follow-up
// message. State lives in memory keyed by (chat, user); an abandoned
// dialogue leaves no partial channel record because nothing is written
// until the final step.

type dialogPhase int

const (
	phaseChoosingType dialogPhase = iota + 1
	phaseWaitingChannelID
)

type dialogKey struct {
	chatID int64
	userID int64
}

type setupDialog struct {
	phase       dialogPhase
	channelType string
}

type setupDialogs struct {
	mu     sync.Mutex
	active map[dialogKey]*setupDialog
}

func newSetupDialogs() *setupDialogs {
	return &setupDialogs{active: make(map[dialogKey]*setupDialog)}
}

// begin opens (or restarts) a dialogue at the type-selection step.
func (d *setupDialogs) begin(chatID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[dialogKey{chatID, userID}] = &setupDialog{phase: phaseChoosingType}
}

// chooseType advances to the channel-ID step. Returns false when no
// dialogue is at the selection step.
func (d *setupDialogs) chooseType(chatID, userID int64, channelType string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	dlg, ok := d.active[dialogKey{chatID, userID}]
	if !ok || dlg.phase != phaseChoosingType {
		return false
	}
	dlg.phase = phaseWaitingChannelID
	dlg.channelType = channelType
	return true
}

// awaitingChannelID reports whether the next text message from this user
// in this chat is the channel ID.
func (d *setupDialogs) awaitingChannelID(chatID, userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	dlg, ok := d.active[dialogKey{chatID, userID}]
	return ok && dlg.phase == phaseWaitingChannelID
}

// finish closes the dialogue and returns the chosen channel type.
func (d *setupDialogs) finish(chatID, userID int64) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := dialogKey{chatID, userID}
	dlg, ok := d.active[key]
	if !ok {
		return "", false
	}
	delete(d.active, key)
	return dlg.channelType, true
}
