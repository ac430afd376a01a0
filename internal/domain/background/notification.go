package background

// Notification is the persistent transport-control notification model.
type Notification struct {
	ItemID         string `json:"itemId"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	PlayPauseLabel string `json:"playPauseLabel"`
	Playing        bool   `json:"playing"`
	Ongoing        bool   `json:"ongoing"`
	Foreground     bool   `json:"foreground"`
}

// Actions lists the notification buttons in display order.
func (n Notification) Actions() []Action {
	return []Action{ActionPrevious, ActionPlayPause, ActionNext, ActionStop}
}

// ToJSON returns the notification as sent to clients.
func (n Notification) ToJSON() map[string]interface{} {
	actions := make([]string, 0, 4)
	for _, a := range n.Actions() {
		actions = append(actions, string(a))
	}
	return map[string]interface{}{
		"itemId":         n.ItemID,
		"title":          n.Title,
		"text":           n.Text,
		"playPauseLabel": n.PlayPauseLabel,
		"playing":        n.Playing,
		"ongoing":        n.Ongoing,
		"foreground":     n.Foreground,
		"actions":        actions,
	}
}

// Notifier displays the notification. Cancel removes it.
type Notifier interface {
	Notify(n Notification)
	Cancel()
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(Notification) {}
func (NopNotifier) Cancel()             {}
